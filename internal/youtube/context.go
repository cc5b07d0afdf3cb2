package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// ChatContext is everything scraped from a watch page that the continuation
// endpoint needs to accept polls: the innertube key, the client version the
// page was served for, the seed continuation, and the stream status.
type ChatContext struct {
	VideoID       string
	APIKey        string
	ClientVersion string
	Continuation  string
	Status        Status
}

// Status is the stream state at context-fetch time.
type Status int

const (
	StatusLive Status = iota
	StatusUpcoming
	StatusReplay
)

func (s Status) String() string {
	switch s {
	case StatusUpcoming:
		return "upcoming"
	case StatusReplay:
		return "replay"
	default:
		return "live"
	}
}

// Mode maps the stream status to the continuation protocol: upcoming
// pre-stream chat updates live.
func (s Status) Mode() Mode {
	if s == StatusReplay {
		return Replay
	}
	return Live
}

// ConnectError is a fatal failure to acquire the seed context; it is never
// retried.
type ConnectError struct {
	VideoID string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("youtube: connect %s: %v", e.VideoID, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

const defaultClientVersion = "2.20240207.07.00"

var (
	reVideoID       = regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.?be(?:\.com)?/?.*(?:watch|embed)?(?:.*v=|v/|/)([A-Za-z0-9_-]+)`)
	reIsLiveContent = regexp.MustCompile(`['"]isLiveContent['"]:\s*true`)
	reIsLiveNow     = regexp.MustCompile(`['"]isLiveNow['"]:\s*true`)
	reIsReplay      = regexp.MustCompile(`['"]isReplay['"]:\s*true`)
	reInnertubeKey  = regexp.MustCompile(`['"]INNERTUBE_API_KEY['"]:\s*['"](.+?)['"]`)
	reClientVersion = regexp.MustCompile(`['"]clientVersion['"]:\s*['"]([\d.]+?)['"]`)

	// The seed continuation lives in the chat panel's sub-menu: the "Live
	// chat" item on live pages, "Top chat replay" on archived pages.
	reLiveContinuation   = regexp.MustCompile(`Live chat['"],\s*['"]selected['"]:\s*(?:true|false),\s*['"]continuation['"]:\s*\{\s*['"]reloadContinuationData['"]:\s*\{['"]continuation['"]:\s*['"](.+?)['"]`)
	reReplayContinuation = regexp.MustCompile(`Top chat replay['"],\s*['"]selected['"]:\s*true,\s*['"]continuation['"]:\s*\{\s*['"]reloadContinuationData['"]:\s*\{['"]continuation['"]:\s*['"](.+?)['"]`)
)

// parseVideoID accepts a bare 11-character id or any youtube watch/embed/
// short-link URL.
func parseVideoID(target string) (string, bool) {
	if len(target) == 11 && !regexp.MustCompile(`[^A-Za-z0-9_-]`).MatchString(target) {
		return target, true
	}
	m := reVideoID.FindStringSubmatch(target)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// fetchVideoContext downloads the watch page for a video and extracts the
// chat context. All failures here are fatal ConnectErrors.
func fetchVideoContext(ctx context.Context, client *http.Client, baseURL, target string) (*ChatContext, error) {
	videoID, ok := parseVideoID(target)
	if !ok {
		return nil, &ConnectError{VideoID: target, Err: fmt.Errorf("not a video id or watch URL")}
	}

	page, err := fetchPage(ctx, client, baseURL+"/watch?v="+videoID)
	if err != nil {
		return nil, &ConnectError{VideoID: videoID, Err: err}
	}

	if !reIsLiveContent.MatchString(page) {
		return nil, &ConnectError{VideoID: videoID, Err: fmt.Errorf("not a live stream")}
	}
	status := StatusUpcoming
	switch {
	case reIsLiveNow.MatchString(page):
		status = StatusLive
	case reIsReplay.MatchString(page):
		status = StatusReplay
	}

	key := reInnertubeKey.FindStringSubmatch(page)
	if key == nil {
		return nil, &ConnectError{VideoID: videoID, Err: fmt.Errorf("no innertube api key on watch page")}
	}

	version := defaultClientVersion
	if m := reClientVersion.FindStringSubmatch(page); m != nil {
		version = m[1]
	}

	contRe := reLiveContinuation
	if status == StatusReplay {
		contRe = reReplayContinuation
	}
	cont := contRe.FindStringSubmatch(page)
	if cont == nil {
		return nil, &ConnectError{VideoID: videoID, Err: fmt.Errorf("no chat continuation on watch page")}
	}

	return &ChatContext{
		VideoID:       videoID,
		APIKey:        key[1],
		ClientVersion: version,
		Continuation:  cont[1],
		Status:        status,
	}, nil
}

func fetchPage(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	// en-US so the panel-title substrings the regexes match are stable.
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
