package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// JSON interchange encoding. This is a pass-through convenience for
// forwarding events out of process; nothing in the pipeline depends on it.

type segmentJSON struct {
	Type string `json:"t"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
}

type messageJSON struct {
	Platform  string            `json:"platform"`
	Author    authorJSON        `json:"author"`
	Segments  []segmentJSON     `json:"segments"`
	Text      string            `json:"text"`
	Timestamp string            `json:"timestamp"`
	RawTags   map[string]string `json:"raw_tags,omitempty"`
}

type authorJSON struct {
	Name   string   `json:"name"`
	ID     string   `json:"id"`
	Badges []string `json:"badges,omitempty"`
	Color  string   `json:"color,omitempty"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		Platform: m.Platform.String(),
		Author: authorJSON{
			Name:   m.Author.Name,
			ID:     m.Author.ID,
			Badges: m.Author.Badges,
			Color:  m.Author.Color,
		},
		Segments:  make([]segmentJSON, 0, len(m.Segments)),
		Text:      m.Text(),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
		RawTags:   m.RawTags,
	}
	for _, s := range m.Segments {
		switch s := s.(type) {
		case Text:
			out.Segments = append(out.Segments, segmentJSON{Type: "text", Text: s.Text})
		case Emote:
			out.Segments = append(out.Segments, segmentJSON{Type: "emote", ID: s.ID, Code: s.Code})
		case Sticker:
			out.Segments = append(out.Segments, segmentJSON{Type: "sticker", ID: s.ID})
		default:
			return nil, fmt.Errorf("message: unknown segment type %T", s)
		}
	}
	return json.Marshal(out)
}
