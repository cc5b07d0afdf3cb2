// Package youtube acquires live and replay chat through YouTube's
// undocumented continuation-paginated endpoint: it scrapes a watch page for
// the seed token, then polls, converting each page of actions into chat
// messages while a pacing engine governs cadence, replay timing, and
// failure backoff.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"simulchat/internal/message"
)

const defaultBaseURL = "https://www.youtube.com"

// ModeSelect chooses how a source treats the stream; Auto follows whatever
// the watch page reports.
type ModeSelect int

const (
	Auto ModeSelect = iota
	ForceLive
	ForceReplay
)

// Client owns one chat session for one video or channel target. The session
// state (continuation cursor, pacing engine, de-duplication set) lives for
// one Connect call and is never shared.
type Client struct {
	target string
	mode   ModeSelect

	httpClient *http.Client
	baseURL    string
	floor      time.Duration

	// makeEngine, when set, replaces the default pacing engine. Tests use it
	// to shorten intervals.
	makeEngine func(mode Mode) *engine
}

// NewClient builds a source for a video id, watch URL, channel id, or
// @handle.
func NewClient(target string, mode ModeSelect) *Client {
	return &Client{
		target:     strings.TrimSpace(target),
		mode:       mode,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		floor:      DefaultFloorInterval,
	}
}

// Connect acquires the seed continuation and polls until the chat ends, the
// backoff budget is exhausted, or ctx is cancelled. Messages are delivered
// in origin order with monotonically non-decreasing timestamps. The returned
// error is nil on normal end-of-chat.
func (c *Client) Connect(ctx context.Context, messages chan<- *message.Message) error {
	chat, err := c.resolveContext(ctx)
	if err != nil {
		return err
	}

	mode := chat.Status.Mode()
	switch c.mode {
	case ForceLive:
		mode = Live
	case ForceReplay:
		mode = Replay
	}
	slog.Info("youtube chat session starting",
		slog.String("video", chat.VideoID), slog.String("mode", mode.String()))

	p := &poller{http: c.httpClient, baseURL: c.baseURL, chat: chat}
	eng := newEngine(mode, c.floor)
	if c.makeEngine != nil {
		eng = c.makeEngine(mode)
	}
	cont := Continuation{Token: chat.Continuation, Mode: mode}
	seen := map[string]struct{}{}
	var lastTS time.Time

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := p.Poll(ctx, cont)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var pe *PollError
			if !errors.As(err, &pe) {
				return fmt.Errorf("youtube: %w", err)
			}
			delay, retry := eng.pollFailed(pe)
			if !retry {
				return fmt.Errorf("youtube: retry budget exhausted for %s: %w", chat.VideoID, pe)
			}
			slog.Warn("poll failed, retrying",
				slog.String("video", chat.VideoID),
				slog.Duration("delay", delay), slog.Any("err", pe))
			if delay > 0 {
				if err := eng.sleep(ctx, delay); err != nil {
					return err
				}
			}
			continue
		}
		eng.pollSucceeded()

		for _, tm := range outcome.Messages {
			if _, dup := seen[tm.ID]; dup {
				continue
			}
			seen[tm.ID] = struct{}{}

			if err := eng.release(ctx, tm.Offset); err != nil {
				return err
			}
			if tm.Message.Timestamp.Before(lastTS) {
				tm.Message.Timestamp = lastTS
			} else {
				lastTS = tm.Message.Timestamp
			}
			select {
			case messages <- tm.Message:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if outcome.Terminal {
			slog.Info("youtube chat ended", slog.String("video", chat.VideoID))
			return nil
		}

		if outcome.Continuation.Mode != eng.mode {
			// The endpoint can hand a live session a replay continuation
			// when the stream archives mid-poll; follow it rather than
			// terminating.
			slog.Info("continuation mode switch",
				slog.String("video", chat.VideoID),
				slog.String("from", eng.mode.String()),
				slog.String("to", outcome.Continuation.Mode.String()))
			eng.setMode(outcome.Continuation.Mode)
			seen = map[string]struct{}{}
		}
		cont = outcome.Continuation

		// The endpoint only re-delivers recent items; keep the dedup set
		// from growing without bound over a long session.
		if len(seen) > 8192 {
			seen = map[string]struct{}{}
			for _, tm := range outcome.Messages {
				seen[tm.ID] = struct{}{}
			}
		}

		if err := eng.waitNext(ctx, cont.Hint); err != nil {
			return err
		}
	}
}

func (c *Client) resolveContext(ctx context.Context) (*ChatContext, error) {
	target := c.target
	if channel, ok := parseChannelID(target); ok {
		videoID, err := resolveChannelLive(ctx, c.httpClient, c.baseURL, channel)
		if err != nil {
			return nil, err
		}
		target = videoID
	}
	return fetchVideoContext(ctx, c.httpClient, c.baseURL, target)
}
