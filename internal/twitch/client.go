// Package twitch connects to Twitch's IRC-derived chat endpoint anonymously
// and decodes tag-augmented protocol lines into chat messages.
package twitch

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"time"

	"simulchat/internal/message"
)

const (
	chatEndpoint = "irc.chat.twitch.tv:6697"

	// Tag and command capabilities are required for message metadata;
	// membership adds join/part traffic which the decoder consumes.
	capRequest = "CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership"

	readPollInterval = 1 * time.Second
)

// Client owns one connection to one channel's chat. It is receive-only: the
// only writes on the connection are the registration handshake and protocol
// control replies.
type Client struct {
	channel string

	// dial is replaced in tests to avoid the network.
	dial func(ctx context.Context) (net.Conn, error)
}

func NewClient(channel string) *Client {
	return &Client{
		channel: strings.ToLower(strings.TrimPrefix(channel, "#")),
		dial: func(ctx context.Context) (net.Conn, error) {
			d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
			return d.DialContext(ctx, "tcp", chatEndpoint)
		},
	}
}

// Connect dials the chat endpoint, registers anonymously, and delivers
// decoded messages to the channel until ctx is cancelled or the connection
// fails. Per-line decode errors are logged and dropped; they never stop the
// stream.
func (c *Client) Connect(ctx context.Context, messages chan<- *message.Message) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("twitch: connect %s: %w", chatEndpoint, err)
	}
	defer conn.Close()

	// Anonymous justinfan nick: read-only, no credentials.
	nick := fmt.Sprintf("justinfan%d", rand.Intn(99999)+1)
	handshake := fmt.Sprintf("%s\r\nNICK %s\r\nJOIN #%s\r\n", capRequest, nick, c.channel)
	if _, err := conn.Write([]byte(handshake)); err != nil {
		return fmt.Errorf("twitch: handshake: %w", err)
	}

	reader := bufio.NewReader(conn)
	dec := NewDecoder()

	// A read deadline can fire mid-line; the partial head is carried over so
	// the line reassembles on the next read.
	var pending string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			return fmt.Errorf("twitch: set read deadline: %w", err)
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				pending += line
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("twitch: read: %w", err)
		}
		line, pending = pending+line, ""

		msg, reply, err := dec.Decode(line)
		if err != nil {
			slog.Warn("dropping undecodable line", slog.String("channel", c.channel), slog.Any("err", err))
			continue
		}
		if reply != "" {
			if _, err := conn.Write([]byte(reply + "\r\n")); err != nil {
				return fmt.Errorf("twitch: write reply: %w", err)
			}
		}
		if msg == nil {
			continue
		}
		select {
		case messages <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
