package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"simulchat/internal/message"
)

func newTestClient(server *httptest.Server, target string, mode ModeSelect) *Client {
	c := NewClient(target, mode)
	c.httpClient = server.Client()
	c.baseURL = server.URL
	c.floor = time.Millisecond
	return c
}

// runConnect drives Connect in a goroutine and returns everything it
// delivered plus its final error.
func runConnect(t *testing.T, c *Client) ([]*message.Message, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages := make(chan *message.Message, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- c.Connect(ctx, messages)
		close(messages)
	}()

	err := <-errc
	var got []*message.Message
	for m := range messages {
		got = append(got, m)
	}
	return got, err
}

func TestConnectDeliversUntilChatEnds(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, watchPageLive)
	})
	mux.HandleFunc(liveChatPath, func(w http.ResponseWriter, r *http.Request) {
		switch polls.Add(1) {
		case 1:
			io.WriteString(w, livePage("page2", 1,
				textItem("m1", "Alice", "UC-alice", "1700000000000000", "one"),
				textItem("m2", "Bob", "UC-bob", "1700000001000000", "two"),
			))
		case 2:
			// The endpoint re-delivers m2; it must be dropped, and m3's
			// older wall timestamp must be clamped forward.
			io.WriteString(w, livePage("page3", 1,
				textItem("m2", "Bob", "UC-bob", "1700000001000000", "two"),
				textItem("m3", "Carol", "UC-carol", "1699999999000000", "three"),
			))
		default:
			io.WriteString(w, `{"continuationContents":null}`)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(server, "dQw4w9WgXcQ", Auto)
	got, err := runConnect(t, c)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(got), got)
	}
	texts := []string{got[0].Text(), got[1].Text(), got[2].Text()}
	if texts[0] != "one" || texts[1] != "two" || texts[2] != "three" {
		t.Errorf("texts = %v", texts)
	}
	if got[2].Timestamp.Before(got[1].Timestamp) {
		t.Errorf("timestamps not monotonic: %v then %v", got[1].Timestamp, got[2].Timestamp)
	}
}

func TestConnectRetriesThenGivesUp(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, watchPageLive)
	})
	mux.HandleFunc(liveChatPath, func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(server, "dQw4w9WgXcQ", Auto)
	c.makeEngine = func(mode Mode) *engine {
		e := newEngine(mode, time.Millisecond)
		e.maxRetries = 2
		e.retry.InitialInterval = time.Millisecond
		e.retry.MaxInterval = 2 * time.Millisecond
		e.retry.Reset()
		return e
	}

	got, err := runConnect(t, c)
	if err == nil {
		t.Fatal("Connect() = nil, want retry budget error")
	}
	var pe *PollError
	if !errors.As(err, &pe) || pe.Kind != Transport {
		t.Errorf("Connect() error = %v, want wrapped Transport PollError", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages after failure, want 0", len(got))
	}
	if n := polls.Load(); n != 2 {
		t.Errorf("polled %d times, want 2 with a 2-retry budget", n)
	}
}

func TestConnectReplayPacesByOffset(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, watchPageReplay)
	})
	mux.HandleFunc(replayChatPath, func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) > 1 {
			io.WriteString(w, `{"continuationContents":null}`)
			return
		}
		io.WriteString(w, `{"continuationContents":{"liveChatContinuation":{
			"continuations":[{"liveChatReplayContinuationData":{"timeUntilLastMessageMsec":100,"continuation":"replay2"}}],
			"actions":[
				{"replayChatItemAction":{"videoOffsetTimeMsec":"0","actions":[`+textItem("r1", "Dan", "UC-dan", "1700000000000000", "early")+`]}},
				{"replayChatItemAction":{"videoOffsetTimeMsec":"40","actions":[`+textItem("r2", "Eve", "UC-eve", "1700000001000000", "late")+`]}}
			]}}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(server, "dQw4w9WgXcQ", Auto)
	start := time.Now()
	got, err := runConnect(t, c)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Text() != "early" || got[1].Text() != "late" {
		t.Errorf("order = %q, %q", got[0].Text(), got[1].Text())
	}
	// The second message sits 40ms into the recording; it may not be
	// released before the virtual clock reaches it.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("replay finished in %v, want >= 40ms", elapsed)
	}
}

func TestConnectNotLiveVideo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, watchPageNotLive)
	}))
	defer server.Close()

	c := newTestClient(server, "dQw4w9WgXcQ", Auto)
	_, err := runConnect(t, c)
	var ce *ConnectError
	if !errors.As(err, &ce) {
		t.Fatalf("Connect() error = %v, want ConnectError", err)
	}
}

func TestConnectStopsOnCancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, watchPageLive)
	})
	mux.HandleFunc(liveChatPath, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, livePage("again", 10))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(server, "dQw4w9WgXcQ", Auto)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- c.Connect(ctx, make(chan *message.Message, 1))
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Connect() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after cancel")
	}
}
