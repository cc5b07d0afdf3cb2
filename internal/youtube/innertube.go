package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"simulchat/internal/message"
)

const (
	liveChatPath   = "/youtubei/v1/live_chat/get_live_chat"
	replayChatPath = "/youtubei/v1/live_chat/get_live_chat_replay"

	clientName = "WEB"
	locale     = "en-US"
	region     = "US"
)

// Mode selects which continuation protocol a source follows.
type Mode int

const (
	// Live polls the live endpoint on the server's suggested cadence.
	Live Mode = iota
	// Replay pages through archived chat and paces delivery by video offset.
	Replay
)

func (m Mode) String() string {
	if m == Replay {
		return "replay"
	}
	return "live"
}

// Continuation is the opaque cursor state for one poll. A token is consumed
// by exactly one poll and replaced by the token in its response.
type Continuation struct {
	Token string
	Mode  Mode
	// Hint is the server-suggested delay before the next poll.
	Hint time.Duration
}

type PollErrorKind int

const (
	// Transport covers request failures and non-2xx statuses.
	Transport PollErrorKind = iota
	// MalformedResponse covers bodies that fail structural validation.
	MalformedResponse
)

// PollError is a retryable failure of one poll cycle; the pacing engine
// decides how to retry it.
type PollError struct {
	Kind PollErrorKind
	Err  error
}

func (e *PollError) Error() string {
	kind := "transport"
	if e.Kind == MalformedResponse {
		kind = "malformed response"
	}
	return fmt.Sprintf("youtube: poll (%s): %v", kind, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// TimedMessage pairs a converted message with replay metadata.
type TimedMessage struct {
	Message *message.Message
	// Offset is the position in the video the message was sent at; zero for
	// live chat.
	Offset time.Duration
	// ID is the platform item id, used to de-duplicate re-delivered live
	// actions.
	ID string
}

// PollOutcome is the result of one poll cycle. It is consumed immediately:
// messages are forwarded and Continuation replaces the engine's cursor.
type PollOutcome struct {
	Messages     []TimedMessage
	Continuation Continuation
	// Terminal is set when the response carries no further continuation:
	// the chat has ended or the VOD is fully replayed.
	Terminal bool
}

// poller issues continuation requests against the innertube chat endpoint.
type poller struct {
	http    *http.Client
	baseURL string
	chat    *ChatContext
}

// Poll executes one poll cycle for the given continuation.
func (p *poller) Poll(ctx context.Context, cont Continuation) (*PollOutcome, error) {
	body, err := json.Marshal(chatRequest{
		Context: chatRequestContext{
			Client: chatRequestClient{
				ClientName:    clientName,
				ClientVersion: p.chat.ClientVersion,
				HL:            locale,
				GL:            region,
			},
		},
		Continuation: cont.Token,
	})
	if err != nil {
		return nil, &PollError{Kind: MalformedResponse, Err: err}
	}

	path := liveChatPath
	if cont.Mode == Replay {
		path = replayChatPath
	}
	endpoint := fmt.Sprintf("%s%s?%s", p.baseURL, path, url.Values{
		"key":         {p.chat.APIKey},
		"prettyPrint": {"false"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &PollError{Kind: Transport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, &PollError{Kind: Transport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &PollError{Kind: Transport, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &PollError{Kind: MalformedResponse, Err: err}
	}

	return p.outcome(&decoded, cont.Mode)
}

func (p *poller) outcome(resp *chatResponse, mode Mode) (*PollOutcome, error) {
	if resp.ContinuationContents == nil {
		return &PollOutcome{Terminal: true}, nil
	}
	lc := &resp.ContinuationContents.LiveChatContinuation

	next, ok := nextContinuation(lc, mode)
	if !ok {
		return &PollOutcome{Terminal: true}, nil
	}

	out := &PollOutcome{Continuation: next}
	for _, raw := range lc.Actions {
		out.Messages = append(out.Messages, decodeAction(raw, 0)...)
	}
	return out, nil
}

func nextContinuation(lc *liveChatContinuation, mode Mode) (Continuation, bool) {
	if len(lc.Continuations) == 0 {
		return Continuation{}, false
	}
	c := lc.Continuations[0]
	switch {
	case c.Invalidation != nil:
		return Continuation{Token: c.Invalidation.Continuation, Mode: Live,
			Hint: time.Duration(c.Invalidation.TimeoutMS) * time.Millisecond}, true
	case c.Timed != nil:
		return Continuation{Token: c.Timed.Continuation, Mode: Live,
			Hint: time.Duration(c.Timed.TimeoutMS) * time.Millisecond}, true
	case c.Replay != nil:
		return Continuation{Token: c.Replay.Continuation, Mode: Replay}, true
	default:
		// Player-seek continuations terminate a linear read.
		return Continuation{}, false
	}
}

// decodeAction converts one raw action into zero or more timed messages.
// Malformed or unrecognized actions are skipped with a warning; the protocol
// evolves outside this client's control and one bad action must not fail the
// cycle.
func decodeAction(raw json.RawMessage, offset time.Duration) []TimedMessage {
	var action chatAction
	if err := json.Unmarshal(raw, &action); err != nil {
		slog.Warn("skipping malformed chat action", slog.Any("err", err))
		return nil
	}

	switch {
	case action.ReplayChat != nil:
		ms, err := action.ReplayChat.VideoOffsetTimeMsec.Int64()
		if err != nil {
			slog.Warn("skipping replay action with bad offset",
				slog.String("offset", action.ReplayChat.VideoOffsetTimeMsec.String()))
			return nil
		}
		at := time.Duration(ms) * time.Millisecond
		var out []TimedMessage
		for _, inner := range action.ReplayChat.Actions {
			out = append(out, decodeAction(inner, at)...)
		}
		return out
	case action.AddChatItem != nil:
		tm, ok := convertItem(&action.AddChatItem.Item, offset)
		if !ok {
			return nil
		}
		return []TimedMessage{tm}
	default:
		// Ticker items, moderation commands, kinds added after this client
		// was written: not chat, not errors.
		return nil
	}
}

func convertItem(item *chatItem, offset time.Duration) (TimedMessage, bool) {
	var (
		base   *rendererBase
		runs   *messageRuns
		extras = map[string]string{}
	)
	var segments []message.Segment

	switch {
	case item.TextMessage != nil:
		base = &item.TextMessage.rendererBase
		runs = item.TextMessage.Message
		extras["kind"] = "textMessage"
	case item.PaidMessage != nil:
		base = &item.PaidMessage.rendererBase
		runs = item.PaidMessage.Message
		extras["kind"] = "paidMessage"
		if item.PaidMessage.PurchaseAmountText != nil {
			extras["purchaseAmount"] = item.PaidMessage.PurchaseAmountText.SimpleText
		}
	case item.PaidSticker != nil:
		base = &item.PaidSticker.rendererBase
		extras["kind"] = "paidSticker"
		if item.PaidSticker.PurchaseAmountText != nil {
			extras["purchaseAmount"] = item.PaidSticker.PurchaseAmountText.SimpleText
		}
		stickerID := "sticker"
		if acc := item.PaidSticker.Sticker.Accessibility; acc != nil && acc.AccessibilityData.Label != "" {
			stickerID = acc.AccessibilityData.Label
		}
		segments = append(segments, message.Sticker{ID: stickerID})
	case item.Membership != nil:
		base = &item.Membership.rendererBase
		runs = item.Membership.HeaderSubtext
		extras["kind"] = "membership"
	default:
		return TimedMessage{}, false
	}

	if base.AuthorExternalChannelID == "" {
		// Engagement banners and other authorless items are not chat.
		return TimedMessage{}, false
	}

	segments = append(segments, convertRuns(runs)...)

	author := message.Author{
		ID: base.AuthorExternalChannelID,
	}
	if base.AuthorName != nil {
		author.Name = base.AuthorName.SimpleText
	}
	for _, b := range base.AuthorBadges {
		if b.Renderer.Tooltip != "" {
			author.Badges = append(author.Badges, b.Renderer.Tooltip)
		}
	}

	ts := time.Time{}
	if usec, err := base.TimestampUsec.Int64(); err == nil {
		ts = time.UnixMicro(usec)
	}
	extras["id"] = base.ID

	msg, err := message.New(message.YouTube, author, segments, ts, extras)
	if err != nil {
		slog.Warn("skipping unconvertible chat item", slog.Any("err", err))
		return TimedMessage{}, false
	}
	return TimedMessage{Message: msg, Offset: offset, ID: base.ID}, true
}

func convertRuns(runs *messageRuns) []message.Segment {
	if runs == nil {
		return nil
	}
	segments := make([]message.Segment, 0, len(runs.Runs))
	for _, run := range runs.Runs {
		switch {
		case run.Emoji != nil:
			if run.Emoji.IsCustomEmoji {
				code := emojiCode(run.Emoji)
				segments = append(segments, message.Emote{ID: run.Emoji.EmojiID, Code: code})
			} else {
				// Standard emoji: the id is the literal character.
				segments = append(segments, message.Text{Text: run.Emoji.EmojiID})
			}
		case run.Text != "":
			segments = append(segments, message.Text{Text: run.Text})
		}
	}
	return segments
}

func emojiCode(e *emoji) string {
	if len(e.Shortcuts) > 0 {
		return e.Shortcuts[0]
	}
	if acc := e.Image.Accessibility; acc != nil && acc.AccessibilityData.Label != "" {
		label := acc.AccessibilityData.Label
		if !strings.HasPrefix(label, ":") {
			return ":" + label + ":"
		}
		return label
	}
	return e.EmojiID
}
