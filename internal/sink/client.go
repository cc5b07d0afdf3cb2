// Package sink forwards merged chat events to an external consumer as JSON
// over a WebSocket.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"simulchat/internal/message"
	"simulchat/internal/simulcast"
)

// Client maintains one outbound WebSocket and writes every event to it,
// redialing with backoff when the connection drops.
type Client struct {
	url    string
	origin string

	dial func(ctx context.Context) (*websocket.Conn, error)
}

// NewClient validates the sink URL; the connection itself is made lazily by
// Run.
func NewClient(rawURL string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("sink: invalid URL: %w", err)
	}

	// Set Origin to match the server so origin-checking endpoints accept
	// the connection.
	var origin string
	switch u.Scheme {
	case "ws":
		origin = "http://" + u.Host
	case "wss":
		origin = "https://" + u.Host
	default:
		return nil, fmt.Errorf("sink: unexpected scheme %q, expected ws or wss", u.Scheme)
	}

	c := &Client{url: u.String(), origin: origin}
	c.dial = c.dialOnce
	return c, nil
}

func (c *Client) dialOnce(ctx context.Context) (*websocket.Conn, error) {
	headers := map[string][]string{
		"Origin": {c.origin},
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, headers)
	if err != nil {
		return nil, fmt.Errorf("sink: dial %s: %w", c.url, err)
	}
	return conn, nil
}

// eventPayload is the wire shape of one forwarded event.
type eventPayload struct {
	Source  string           `json:"source"`
	Seq     uint64           `json:"seq"`
	Message *message.Message `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func toPayload(ev simulcast.Event) eventPayload {
	p := eventPayload{
		Source:  ev.Source.String(),
		Seq:     ev.Seq,
		Message: ev.Message,
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}
	return p
}

// Run forwards events until the stream closes or ctx is cancelled. A failed
// write closes the connection and redials; the event that failed is resent on
// the new connection, so network blips drop nothing.
func (c *Client) Run(ctx context.Context, events <-chan simulcast.Event) error {
	var conn *websocket.Conn
	defer func() {
		if conn != nil {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			for {
				if conn == nil {
					var err error
					conn, err = c.connect(ctx)
					if err != nil {
						return err
					}
				}
				if err := conn.WriteJSON(toPayload(ev)); err == nil {
					break
				} else {
					slog.Warn("sink write failed, reconnecting", slog.Any("err", err))
					conn.Close()
					conn = nil
					if ctx.Err() != nil {
						return ctx.Err()
					}
				}
			}
		}
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 500 * time.Millisecond
	retry.MaxInterval = 15 * time.Second
	retry.MaxElapsedTime = 2 * time.Minute
	retry.Reset()

	var conn *websocket.Conn
	op := func() error {
		var err error
		conn, err = c.dial(ctx)
		if err != nil {
			slog.Warn("sink dial failed", slog.Any("err", err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(retry, ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}
