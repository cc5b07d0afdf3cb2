package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"simulchat/internal/message"
	"simulchat/internal/simulcast"
)

func init() {
	// Disable color output for deterministic test assertions
	color.NoColor = true
}

func testPrinter() (*Printer, *bytes.Buffer) {
	p := NewPrinter()
	buf := &bytes.Buffer{}
	p.out = buf
	return p, buf
}

func testMessage(t *testing.T, platform message.Platform, author string, segments ...message.Segment) *message.Message {
	t.Helper()
	m, err := message.New(platform,
		message.Author{Name: author, ID: "id-" + author},
		segments, time.Date(2025, 1, 15, 14, 30, 45, 0, time.UTC), nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPrintTwitch(t *testing.T) {
	p, buf := testPrinter()
	m := testMessage(t, message.Twitch, "testuser", message.Text{Text: "hello chat"})
	p.Print(simulcast.SourceID{Platform: message.Twitch, Name: "somechannel"}, m)

	output := buf.String()
	if !strings.Contains(output, "[TTV]") {
		t.Errorf("expected [TTV] tag, got: %s", output)
	}
	if !strings.Contains(output, "testuser") {
		t.Errorf("expected username, got: %s", output)
	}
	if !strings.Contains(output, "hello chat") {
		t.Errorf("expected message content, got: %s", output)
	}
}

func TestPrintYouTube(t *testing.T) {
	p, buf := testPrinter()
	m := testMessage(t, message.YouTube, "ytuser", message.Text{Text: "yt message"})
	p.Print(simulcast.SourceID{Platform: message.YouTube, Name: "somevideo"}, m)

	if !strings.Contains(buf.String(), "[YT_]") {
		t.Errorf("expected [YT_] tag, got: %s", buf.String())
	}
}

func TestPrintOutputFormat(t *testing.T) {
	p, buf := testPrinter()
	m := testMessage(t, message.Twitch, "someone", message.Text{Text: "test content"})
	p.Print(simulcast.SourceID{Platform: message.Twitch, Name: "chan"}, m)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "someone") {
		t.Errorf("line 1 missing username: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "    ") {
		t.Errorf("line 2 should be indented: %q", lines[1])
	}
	if !strings.Contains(lines[1], "test content") {
		t.Errorf("line 2 missing content: %q", lines[1])
	}
	if !strings.Contains(lines[2], "────") {
		t.Errorf("line 3 should be separator: %q", lines[2])
	}
}

func TestPrintSegments(t *testing.T) {
	p, buf := testPrinter()
	m := testMessage(t, message.Twitch, "emoter",
		message.Emote{ID: "25", Code: "Kappa"},
		message.Text{Text: " no way"},
	)
	p.Print(simulcast.SourceID{Platform: message.Twitch, Name: "chan"}, m)

	if !strings.Contains(buf.String(), "Kappa no way") {
		t.Errorf("expected rendered segments, got: %s", buf.String())
	}
}

func TestPrintSticker(t *testing.T) {
	p, buf := testPrinter()
	m := testMessage(t, message.YouTube, "sticky", message.Sticker{ID: "dancing cat"})
	p.Print(simulcast.SourceID{Platform: message.YouTube, Name: "vid"}, m)

	if !strings.Contains(buf.String(), "[sticker: dancing cat]") {
		t.Errorf("expected sticker placeholder, got: %s", buf.String())
	}
}

func TestPrintBadges(t *testing.T) {
	p, buf := testPrinter()
	m, err := message.New(message.Twitch,
		message.Author{Name: "mod", ID: "id-mod", Badges: []string{"moderator", "subscriber"}},
		[]message.Segment{message.Text{Text: "behave"}},
		time.Now(), nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Print(simulcast.SourceID{Platform: message.Twitch, Name: "chan"}, m)

	if !strings.Contains(buf.String(), "(moderator)") {
		t.Errorf("expected leading badge, got: %s", buf.String())
	}
}

func TestPrintError(t *testing.T) {
	p, buf := testPrinter()
	p.PrintError(simulcast.SourceID{Platform: message.YouTube, Name: "deadvideo"},
		errors.New("retry budget exhausted"))

	output := buf.String()
	if !strings.Contains(output, "deadvideo disconnected") {
		t.Errorf("expected disconnect notice, got: %s", output)
	}
	if !strings.Contains(output, "retry budget exhausted") {
		t.Errorf("expected error detail, got: %s", output)
	}
}

func TestRun(t *testing.T) {
	p, buf := testPrinter()
	ch := make(chan simulcast.Event, 3)
	ch <- simulcast.Event{
		Source:  simulcast.SourceID{Platform: message.Twitch, Name: "a"},
		Message: testMessage(t, message.Twitch, "a", message.Text{Text: "msg1"}),
	}
	ch <- simulcast.Event{
		Source:  simulcast.SourceID{Platform: message.YouTube, Name: "b"},
		Message: testMessage(t, message.YouTube, "b", message.Text{Text: "msg2"}),
	}
	ch <- simulcast.Event{
		Source: simulcast.SourceID{Platform: message.YouTube, Name: "b"},
		Err:    errors.New("gone"),
	}
	close(ch)

	p.Run(ch)

	output := buf.String()
	if !strings.Contains(output, "msg1") || !strings.Contains(output, "msg2") {
		t.Errorf("Run should print all messages, got: %s", output)
	}
	if !strings.Contains(output, "b disconnected: gone") {
		t.Errorf("Run should print terminal errors, got: %s", output)
	}
}
