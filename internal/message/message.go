// Package message defines the platform-agnostic chat event model shared by
// every source. A Message is immutable once constructed; the constructor
// here is the only way the platform decoders produce one.
package message

import (
	"errors"
	"strings"
	"time"
)

type Platform int

const (
	Twitch Platform = iota
	YouTube
)

func (p Platform) String() string {
	switch p {
	case Twitch:
		return "twitch"
	case YouTube:
		return "youtube"
	default:
		return "unknown"
	}
}

// Author identifies who sent a message. ID is the platform's stable
// identifier (Twitch user-id tag, YouTube external channel id); Name is the
// display name shown in chat.
type Author struct {
	Name string
	// ID is never empty on a constructed Message.
	ID     string
	Badges []string
	// Color is an optional "#RRGGBB" string; empty when the platform did not
	// report one.
	Color string
}

// Segment is one piece of a message body. A body is an ordered sequence of
// segments whose concatenated String() values reproduce the visible text.
type Segment interface {
	String() string
	segment()
}

type Text struct {
	Text string
}

// Emote is a platform emote embedded in the body. Code is the visible
// shortcode (e.g. "Kappa"), ID the platform's emote identifier.
type Emote struct {
	ID   string
	Code string
}

// Sticker is a sticker-only body element. It has no visible text.
type Sticker struct {
	ID string
}

func (t Text) String() string    { return t.Text }
func (e Emote) String() string   { return e.Code }
func (s Sticker) String() string { return "" }

func (Text) segment()    {}
func (Emote) segment()   {}
func (Sticker) segment() {}

var ErrNoAuthorID = errors.New("message: author id is empty")

// Message is one normalized chat event.
type Message struct {
	Platform  Platform
	Author    Author
	Segments  []Segment
	Timestamp time.Time
	// RawTags carries platform-specific key/value metadata verbatim. It is
	// pass-through only and never interpreted by this module.
	RawTags map[string]string
}

// New validates and constructs a Message. The segment slice and tag map are
// copied so later mutation by the caller cannot reach the constructed event.
// An empty segment list is valid (pure-sticker messages may carry no text).
func New(platform Platform, author Author, segments []Segment, ts time.Time, tags map[string]string) (*Message, error) {
	if author.ID == "" {
		return nil, ErrNoAuthorID
	}
	m := &Message{
		Platform:  platform,
		Author:    author,
		Timestamp: ts,
	}
	if len(segments) > 0 {
		m.Segments = make([]Segment, len(segments))
		copy(m.Segments, segments)
	}
	if len(tags) > 0 {
		m.RawTags = make(map[string]string, len(tags))
		for k, v := range tags {
			m.RawTags[k] = v
		}
	}
	return m, nil
}

// Text returns the visible text of the body: every segment concatenated in
// order, emotes rendered as their shortcode.
func (m *Message) Text() string {
	var b strings.Builder
	for _, s := range m.Segments {
		b.WriteString(s.String())
	}
	return b.String()
}
