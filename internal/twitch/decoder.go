package twitch

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"simulchat/internal/message"
)

// DecodeError reports a recognized command that is missing required framing.
// Per-line decode failures are not fatal to the connection; the caller
// decides whether to drop the line or tear down.
type DecodeError struct {
	Line   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("twitch: bad line (%s): %s", e.Reason, e.Line)
}

// Decoder turns raw IRC lines from the Twitch chat endpoint into chat
// messages. It is stateful only for the per-connection monotonic timestamp
// clamp; one Decoder serves exactly one connection.
type Decoder struct {
	lastTS time.Time
	now    func() time.Time
}

func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// Decode processes one protocol line (without trailing CRLF).
//
// The returned reply, when non-empty, must be written back to the connection
// (PING is answered with PONG; that is the decoder's only side effect).
// msg is nil for control lines and for vendor lines outside the recognized
// command set, which are consumed silently. A non-nil error is returned only
// for recognized commands violating minimum framing.
func (d *Decoder) Decode(line string) (msg *message.Message, reply string, err error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, "", nil
	}

	if strings.HasPrefix(line, "PING") {
		return nil, "PONG" + strings.TrimPrefix(line, "PING"), nil
	}

	tags, prefix, command, params, trailing, hasTrailing := splitLine(line)

	switch command {
	case "PRIVMSG":
		return d.decodePrivmsg(line, tags, prefix, params, trailing, hasTrailing)
	case "USERNOTICE":
		return d.decodeUsernotice(tags, params, trailing, hasTrailing)
	case "JOIN", "PART", "CAP", "MODE", "NOTICE", "USERSTATE",
		"ROOMSTATE", "GLOBALUSERSTATE", "CLEARCHAT", "CLEARMSG", "RECONNECT",
		"001", "002", "003", "004", "353", "366", "372", "375", "376", "421":
		// Protocol control and room-state traffic; consumed, no event.
		return nil, "", nil
	default:
		// Twitch emits vendor lines outside the documented command set.
		return nil, "", nil
	}
}

func (d *Decoder) decodePrivmsg(line string, tags map[string]string, prefix string, params []string, trailing string, hasTrailing bool) (*message.Message, string, error) {
	nick := nickFromPrefix(prefix)
	if nick == "" {
		return nil, "", &DecodeError{Line: line, Reason: "missing sender prefix"}
	}
	if len(params) < 1 || !strings.HasPrefix(params[0], "#") {
		return nil, "", &DecodeError{Line: line, Reason: "missing channel"}
	}
	if !hasTrailing {
		return nil, "", &DecodeError{Line: line, Reason: "missing message body"}
	}

	author := message.Author{
		Name:  nick,
		ID:    nick,
		Color: tags["color"],
	}
	if dn := tags["display-name"]; dn != "" {
		author.Name = dn
	}
	if id := tags["user-id"]; id != "" {
		author.ID = id
	}
	if badges := tags["badges"]; badges != "" {
		author.Badges = strings.Split(badges, ",")
	}

	segments := segmentBody(trailing, tags["emotes"])

	ts := d.now()
	if raw := tags["tmi-sent-ts"]; raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}
	}
	// Timestamps are monotonically non-decreasing in emitted order.
	if ts.Before(d.lastTS) {
		ts = d.lastTS
	} else {
		d.lastTS = ts
	}

	tags["channel"] = strings.TrimPrefix(params[0], "#")
	m, err := message.New(message.Twitch, author, segments, ts, tags)
	if err != nil {
		return nil, "", &DecodeError{Line: line, Reason: err.Error()}
	}
	return m, "", nil
}

// decodeUsernotice handles sub/resub/raid notices. Only notices carrying a
// user-written body become messages; system-only notices are consumed. The
// sender comes from tags because the prefix is the server, not the user.
func (d *Decoder) decodeUsernotice(tags map[string]string, params []string, trailing string, hasTrailing bool) (*message.Message, string, error) {
	if !hasTrailing || trailing == "" {
		return nil, "", nil
	}
	id := tags["user-id"]
	if id == "" {
		return nil, "", nil
	}

	author := message.Author{
		Name:  tags["login"],
		ID:    id,
		Color: tags["color"],
	}
	if dn := tags["display-name"]; dn != "" {
		author.Name = dn
	}
	if badges := tags["badges"]; badges != "" {
		author.Badges = strings.Split(badges, ",")
	}

	ts := d.now()
	if raw := tags["tmi-sent-ts"]; raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = time.UnixMilli(ms)
		}
	}
	if ts.Before(d.lastTS) {
		ts = d.lastTS
	} else {
		d.lastTS = ts
	}

	if len(params) > 0 {
		tags["channel"] = strings.TrimPrefix(params[0], "#")
	}
	m, err := message.New(message.Twitch, author, segmentBody(trailing, tags["emotes"]), ts, tags)
	if err != nil {
		return nil, "", nil
	}
	return m, "", nil
}

// splitLine breaks an IRC line into its tag map, prefix, command, middle
// params, and trailing param.
func splitLine(line string) (tags map[string]string, prefix, command string, params []string, trailing string, hasTrailing bool) {
	tags = map[string]string{}

	if strings.HasPrefix(line, "@") {
		rawTags, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return tags, "", "", nil, "", false
		}
		for _, kv := range strings.Split(rawTags, ";") {
			k, v, _ := strings.Cut(kv, "=")
			if k != "" {
				tags[k] = unescapeTag(v)
			}
		}
		line = rest
	}

	if strings.HasPrefix(line, ":") {
		p, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return tags, p, "", nil, "", false
		}
		prefix = p
		line = rest
	}

	if body, after, ok := strings.Cut(line, " :"); ok {
		trailing = after
		hasTrailing = true
		line = body
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return tags, prefix, "", nil, trailing, hasTrailing
	}
	return tags, prefix, fields[0], fields[1:], trailing, hasTrailing
}

// unescapeTag reverses IRCv3 tag value escaping.
func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' {
			b.WriteByte(v[i])
			continue
		}
		i++
		if i >= len(v) {
			break
		}
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

func nickFromPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	nick, rest, ok := strings.Cut(prefix, "!")
	if !ok || rest == "" {
		return ""
	}
	return nick
}

type emoteRange struct {
	id         string
	start, end int
}

// segmentBody splits a message body into Text/Emote segments using the
// emotes tag ("id:from-to,from-to/id:from-to"). Offsets are in Unicode code
// points. A malformed tag falls back to the whole body as one Text segment.
func segmentBody(body, emotesTag string) []message.Segment {
	if emotesTag == "" {
		return []message.Segment{message.Text{Text: body}}
	}

	ranges, ok := parseEmoteRanges(emotesTag)
	if !ok {
		slog.Warn("malformed emotes tag, treating body as text", slog.String("tag", emotesTag))
		return []message.Segment{message.Text{Text: body}}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	runes := []rune(body)
	segments := make([]message.Segment, 0, 2*len(ranges)+1)
	i := 0
	for _, r := range ranges {
		if r.start < i || r.end < r.start || r.end >= len(runes) {
			slog.Warn("emote range out of bounds, treating body as text",
				slog.String("tag", emotesTag), slog.Int("len", len(runes)))
			return []message.Segment{message.Text{Text: body}}
		}
		if r.start > i {
			segments = append(segments, message.Text{Text: string(runes[i:r.start])})
		}
		segments = append(segments, message.Emote{ID: r.id, Code: string(runes[r.start : r.end+1])})
		i = r.end + 1
	}
	if i < len(runes) {
		segments = append(segments, message.Text{Text: string(runes[i:])})
	}
	return segments
}

func parseEmoteRanges(tag string) ([]emoteRange, bool) {
	var ranges []emoteRange
	for _, emote := range strings.Split(tag, "/") {
		if emote == "" {
			continue
		}
		id, rawRanges, ok := strings.Cut(emote, ":")
		if !ok || id == "" {
			return nil, false
		}
		for _, r := range strings.Split(rawRanges, ",") {
			fromStr, toStr, ok := strings.Cut(r, "-")
			if !ok {
				return nil, false
			}
			from, err1 := strconv.Atoi(fromStr)
			to, err2 := strconv.Atoi(toStr)
			if err1 != nil || err2 != nil || from < 0 || to < from {
				return nil, false
			}
			ranges = append(ranges, emoteRange{id: id, start: from, end: to})
		}
	}
	return ranges, true
}
