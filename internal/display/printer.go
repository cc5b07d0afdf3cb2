package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"simulchat/internal/message"
	"simulchat/internal/simulcast"
)

type Printer struct {
	out io.Writer

	twitchColor   *color.Color
	youtubeColor  *color.Color
	usernameColor *color.Color
	badgeColor    *color.Color
	emoteColor    *color.Color
	errorColor    *color.Color
	dimColor      *color.Color
}

func NewPrinter() *Printer {
	return &Printer{
		out:           os.Stdout,
		twitchColor:   color.New(color.FgMagenta, color.Bold),
		youtubeColor:  color.New(color.FgRed, color.Bold),
		usernameColor: color.New(color.FgCyan),
		badgeColor:    color.New(color.FgYellow),
		emoteColor:    color.New(color.FgGreen),
		errorColor:    color.New(color.FgRed),
		dimColor:      color.New(color.FgHiBlack),
	}
}

func (p *Printer) platformTag(platform message.Platform) string {
	switch platform {
	case message.Twitch:
		return p.twitchColor.Sprint("[TTV]")
	case message.YouTube:
		return p.youtubeColor.Sprint("[YT_]")
	}
	return p.dimColor.Sprint("[???]")
}

// Print renders one message.
//
//	Line 1: [TTV] username (badges) • HH:MM:SS
//	Line 2:     message content (indented)
//	Line 3: thin separator
func (p *Printer) Print(source simulcast.SourceID, msg *message.Message) {
	header := p.platformTag(source.Platform) + " " + p.usernameColor.Sprint(msg.Author.Name)
	if len(msg.Author.Badges) > 0 {
		header += " " + p.badgeColor.Sprintf("(%s)", msg.Author.Badges[0])
	}
	fmt.Fprintf(p.out, "%s %s %s\n",
		header,
		p.dimColor.Sprint("•"),
		p.dimColor.Sprint(msg.Timestamp.Local().Format("15:04:05")),
	)
	fmt.Fprintf(p.out, "    %s\n", p.renderSegments(msg.Segments))
	fmt.Fprintln(p.out, p.dimColor.Sprint("────────────────────────────────"))
}

func (p *Printer) renderSegments(segments []message.Segment) string {
	var line string
	for _, seg := range segments {
		switch s := seg.(type) {
		case message.Emote:
			line += p.emoteColor.Sprint(s.Code)
		case message.Sticker:
			line += p.emoteColor.Sprintf("[sticker: %s]", s.ID)
		default:
			line += seg.String()
		}
	}
	return line
}

// PrintError reports a source's terminal failure inline with the chat.
func (p *Printer) PrintError(source simulcast.SourceID, err error) {
	fmt.Fprintf(p.out, "%s %s\n",
		p.platformTag(source.Platform),
		p.errorColor.Sprintf("%s disconnected: %v", source.Name, err),
	)
}

// Run prints every event until the merged stream closes.
func (p *Printer) Run(events <-chan simulcast.Event) {
	for ev := range events {
		if ev.Err != nil {
			p.PrintError(ev.Source, ev.Err)
			continue
		}
		p.Print(ev.Source, ev.Message)
	}
}
