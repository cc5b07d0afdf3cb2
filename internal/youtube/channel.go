package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
)

// Channel identifiers resolve through the channel's /streams page: the page
// embeds a grid of recent streams, and the first one wearing a LIVE badge
// (or, failing that, an UPCOMING badge) is the chat target.

var (
	reChannelID   = regexp.MustCompile(`^(?:(?:https?://)?(?:www\.)?youtube\.com/)?(?:channel/)?(UC[\w-]{21}[AQgw]|@[\w.-]+)/?$`)
	reInitialData = regexp.MustCompile(`(?s)var ytInitialData\s*=\s*(\{.+?\});`)
)

const (
	styleLive     = "LIVE"
	styleUpcoming = "UPCOMING"
)

// streamsPage is the narrow slice of ytInitialData needed to walk the
// channel's stream grid.
type streamsPage struct {
	Contents struct {
		TwoColumnBrowseResultsRenderer struct {
			Tabs []struct {
				TabRenderer *struct {
					Title   string `json:"title"`
					Content *struct {
						RichGridRenderer *struct {
							Contents []struct {
								RichItemRenderer *struct {
									Content struct {
										VideoRenderer *struct {
											VideoID           string `json:"videoId"`
											ThumbnailOverlays []struct {
												TimeStatus *struct {
													Style string `json:"style"`
												} `json:"thumbnailOverlayTimeStatusRenderer"`
											} `json:"thumbnailOverlays"`
										} `json:"videoRenderer"`
									} `json:"content"`
								} `json:"richItemRenderer"`
							} `json:"contents"`
						} `json:"richGridRenderer"`
					} `json:"content"`
				} `json:"tabRenderer"`
			} `json:"tabs"`
		} `json:"twoColumnBrowseResultsRenderer"`
	} `json:"contents"`
}

// parseChannelID accepts a UC… id, an @handle, or a channel URL carrying
// either.
func parseChannelID(target string) (string, bool) {
	m := reChannelID.FindStringSubmatch(target)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// resolveChannelLive finds the channel's current live stream (or upcoming
// stream if none is live) and returns its video id.
func resolveChannelLive(ctx context.Context, client *http.Client, baseURL, channel string) (string, error) {
	pageURL := baseURL + "/channel/" + channel + "/streams"
	if channel[0] == '@' {
		pageURL = baseURL + "/" + channel + "/streams"
	}
	page, err := fetchPage(ctx, client, pageURL)
	if err != nil {
		return "", &ConnectError{VideoID: channel, Err: err}
	}

	m := reInitialData.FindStringSubmatch(page)
	if m == nil {
		return "", &ConnectError{VideoID: channel, Err: fmt.Errorf("no ytInitialData on streams page")}
	}
	var data streamsPage
	if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
		return "", &ConnectError{VideoID: channel, Err: fmt.Errorf("parsing ytInitialData: %w", err)}
	}

	var upcoming string
	for _, tab := range data.Contents.TwoColumnBrowseResultsRenderer.Tabs {
		if tab.TabRenderer == nil || tab.TabRenderer.Title != "Live" || tab.TabRenderer.Content == nil {
			continue
		}
		grid := tab.TabRenderer.Content.RichGridRenderer
		if grid == nil {
			continue
		}
		for _, item := range grid.Contents {
			if item.RichItemRenderer == nil || item.RichItemRenderer.Content.VideoRenderer == nil {
				continue
			}
			video := item.RichItemRenderer.Content.VideoRenderer
			for _, overlay := range video.ThumbnailOverlays {
				if overlay.TimeStatus == nil {
					continue
				}
				switch overlay.TimeStatus.Style {
				case styleLive:
					return video.VideoID, nil
				case styleUpcoming:
					if upcoming == "" {
						upcoming = video.VideoID
					}
				}
			}
		}
	}
	if upcoming != "" {
		return upcoming, nil
	}
	return "", &ConnectError{VideoID: channel, Err: fmt.Errorf("channel has no live or upcoming stream")}
}
