package youtube

import "encoding/json"

// Wire types for the innertube get_live_chat endpoint. Only the fields this
// client reads are declared; the envelope carries far more that is ignored.

type chatRequest struct {
	Context chatRequestContext `json:"context"`
	// Continuation is the opaque cursor for the next page of actions.
	Continuation string `json:"continuation"`
}

type chatRequestContext struct {
	Client chatRequestClient `json:"client"`
}

type chatRequestClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	HL            string `json:"hl"`
	GL            string `json:"gl"`
}

type chatResponse struct {
	ContinuationContents *continuationContents `json:"continuationContents"`
}

type continuationContents struct {
	LiveChatContinuation liveChatContinuation `json:"liveChatContinuation"`
}

type liveChatContinuation struct {
	Continuations []continuationData `json:"continuations"`
	// Actions are decoded individually so one malformed element cannot fail
	// the whole page.
	Actions []json.RawMessage `json:"actions"`
}

// continuationData is the union of the continuation variants the endpoint
// issues; exactly one pointer is set.
type continuationData struct {
	Invalidation *invalidationContinuation `json:"invalidationContinuationData"`
	Timed        *timedContinuation        `json:"timedContinuationData"`
	Replay       *replayContinuation       `json:"liveChatReplayContinuationData"`
	PlayerSeek   *playerSeekContinuation   `json:"playerSeekContinuationData"`
}

type invalidationContinuation struct {
	TimeoutMS    int    `json:"timeoutMs"`
	Continuation string `json:"continuation"`
}

type timedContinuation struct {
	TimeoutMS    int    `json:"timeoutMs"`
	Continuation string `json:"continuation"`
}

type replayContinuation struct {
	TimeUntilLastMessageMS int    `json:"timeUntilLastMessageMsec"`
	Continuation           string `json:"continuation"`
}

type playerSeekContinuation struct {
	Continuation string `json:"continuation"`
}

type chatAction struct {
	AddChatItem *addChatItemAction    `json:"addChatItemAction"`
	ReplayChat  *replayChatItemAction `json:"replayChatItemAction"`
}

type addChatItemAction struct {
	Item     chatItem `json:"item"`
	ClientID string   `json:"clientId"`
}

type replayChatItemAction struct {
	Actions []json.RawMessage `json:"actions"`
	// The offset is a stringified integer in the wire format.
	VideoOffsetTimeMsec json.Number `json:"videoOffsetTimeMsec"`
}

// chatItem is the union of renderer kinds; unrecognized kinds simply leave
// every pointer nil and are skipped.
type chatItem struct {
	TextMessage *textMessageRenderer    `json:"liveChatTextMessageRenderer"`
	PaidMessage *paidMessageRenderer    `json:"liveChatPaidMessageRenderer"`
	PaidSticker *paidStickerRenderer    `json:"liveChatPaidStickerRenderer"`
	Membership  *membershipItemRenderer `json:"liveChatMembershipItemRenderer"`
}

type rendererBase struct {
	ID                      string        `json:"id"`
	TimestampUsec           json.Number   `json:"timestampUsec"`
	AuthorName              *simpleText   `json:"authorName"`
	AuthorExternalChannelID string        `json:"authorExternalChannelId"`
	AuthorBadges            []authorBadge `json:"authorBadges"`
}

type textMessageRenderer struct {
	rendererBase
	Message *messageRuns `json:"message"`
}

type paidMessageRenderer struct {
	rendererBase
	Message            *messageRuns `json:"message"`
	PurchaseAmountText *simpleText  `json:"purchaseAmountText"`
}

type paidStickerRenderer struct {
	rendererBase
	Sticker            stickerInfo `json:"sticker"`
	PurchaseAmountText *simpleText `json:"purchaseAmountText"`
}

type membershipItemRenderer struct {
	rendererBase
	HeaderSubtext *messageRuns `json:"headerSubtext"`
}

type stickerInfo struct {
	Accessibility *accessibility `json:"accessibility"`
}

type messageRuns struct {
	Runs []messageRun `json:"runs"`
}

// messageRun is either a text run or an emoji run.
type messageRun struct {
	Text  string `json:"text"`
	Emoji *emoji `json:"emoji"`
}

type emoji struct {
	EmojiID       string         `json:"emojiId"`
	Shortcuts     []string       `json:"shortcuts"`
	IsCustomEmoji bool           `json:"isCustomEmoji"`
	Image         imageContainer `json:"image"`
}

type imageContainer struct {
	Accessibility *accessibility `json:"accessibility"`
}

type accessibility struct {
	AccessibilityData accessibilityData `json:"accessibilityData"`
}

type accessibilityData struct {
	Label string `json:"label"`
}

type simpleText struct {
	SimpleText string `json:"simpleText"`
}

type authorBadge struct {
	Renderer badgeRenderer `json:"liveChatAuthorBadgeRenderer"`
}

type badgeRenderer struct {
	Tooltip string `json:"tooltip"`
}
