package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Item types stored in t_x.item_type
const (
	ItemTypeTweet        = "tweet"
	ItemTypeProfile      = "profile"
	ItemTypeConversation = "conversation"
)

// External identifier prefixes assigned by the spider. The prefix decides
// the shape of the data payload: a flat post object for "tweet-", an ordered
// array of sub-posts for "profile-conversation-".
const (
	xIDTweetPrefix        = "tweet-"
	xIDConversationPrefix = "profile-conversation-"
)

// XData is one captured X (Twitter) item. Data holds the raw polymorphic
// payload as stored; Payload is the decoded form, resolved once when the row
// is scanned. Pagination over these rows sorts by CreatedAt, which is not
// unique — two posts captured in the same batch can share a timestamp.
type XData struct {
	ID        int64           `json:"id"`
	XID       string          `json:"x_id"`
	ItemType  string          `json:"item_type"`
	Data      json.RawMessage `json:"data"`
	Username  string          `json:"username,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	UserLink  string          `json:"user_link,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	MoreInfo  *MoreInfo       `json:"more_info,omitempty"`

	Payload PostPayload `json:"-"`
}

// MoreInfo carries auxiliary annotations attached by offline pipelines
type MoreInfo struct {
	AIResult *AIResult `json:"ai_result,omitempty"`
}

// AIResult is the precomputed analysis verdict for a post
type AIResult struct {
	Summary        string   `json:"summary,omitempty"`
	HighlightLabel []string `json:"highlight_label,omitempty"`
	IsImportant    bool     `json:"is_important"`
	AnalyzedAt     string   `json:"analyzed_at,omitempty"`
	Model          string   `json:"model,omitempty"`
}

// TweetBody is the flat post object produced by the timeline parser
type TweetBody struct {
	CreatedAt     string              `json:"created_at,omitempty"`
	FullText      string              `json:"full_text,omitempty"`
	BookmarkCount int                 `json:"bookmark_count,omitempty"`
	FavoriteCount int                 `json:"favorite_count,omitempty"`
	URLs          map[string][]string `json:"urls,omitempty"`
	Medias        map[string][]string `json:"medias,omitempty"`
}

// ConversationEntry is one post inside a profile-conversation thread
type ConversationEntry struct {
	XID  string    `json:"x_id"`
	Data TweetBody `json:"data"`
}

// PostPayload is the decoded form of XData.Data: exactly one of Single or
// Thread is set, keyed off the x_id prefix.
type PostPayload struct {
	Single *TweetBody
	Thread []ConversationEntry
}

// IsThread reports whether the payload is a conversation thread
func (p PostPayload) IsThread() bool {
	return p.Thread != nil
}

// Text returns the primary display text: the post's own text, or the text of
// the first post in a thread.
func (p PostPayload) Text() string {
	if p.Single != nil {
		return p.Single.FullText
	}
	if len(p.Thread) > 0 {
		return p.Thread[0].Data.FullText
	}
	return ""
}

// DecodePayload resolves the polymorphic data column into its tagged form.
// The shape is sniffed here, once, so consumers never have to.
func DecodePayload(xID string, raw json.RawMessage) (PostPayload, error) {
	if len(raw) == 0 {
		return PostPayload{}, nil
	}

	if strings.HasPrefix(xID, xIDConversationPrefix) {
		var thread []ConversationEntry
		if err := json.Unmarshal(raw, &thread); err != nil {
			return PostPayload{}, fmt.Errorf("decode conversation payload for %s: %w", xID, err)
		}
		return PostPayload{Thread: thread}, nil
	}

	var body TweetBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return PostPayload{}, fmt.Errorf("decode tweet payload for %s: %w", xID, err)
	}
	return PostPayload{Single: &body}, nil
}

// ItemTypeForXID derives the item type from the external identifier prefix
func ItemTypeForXID(xID string) string {
	switch {
	case strings.HasPrefix(xID, xIDConversationPrefix):
		return ItemTypeConversation
	case strings.HasPrefix(xID, xIDTweetPrefix):
		return ItemTypeTweet
	default:
		return ItemTypeProfile
	}
}

// TweetID extracts the numeric status ID used to build post links. For a
// conversation thread this is the ID of the first post.
func (x *XData) TweetID() string {
	id := x.XID
	if strings.HasPrefix(id, xIDConversationPrefix) {
		// The suffix joins the tweet IDs of every post in the thread
		// ("profile-conversation-tweet-111-tweet-222"); the first one is
		// the conversation anchor.
		rest := strings.TrimPrefix(id, xIDConversationPrefix)
		rest = strings.TrimPrefix(rest, xIDTweetPrefix)
		if i := strings.Index(rest, "-"); i > 0 {
			rest = rest[:i]
		}
		return rest
	}
	return strings.TrimPrefix(id, xIDTweetPrefix)
}

// Important reports whether the post carries a positive AI importance flag
func (x *XData) Important() bool {
	return x.MoreInfo != nil && x.MoreInfo.AIResult != nil && x.MoreInfo.AIResult.IsImportant
}

// AIResult returns the post's AI annotation, or nil when unanalyzed.
func (x *XData) AIResult() *AIResult {
	if x.MoreInfo == nil {
		return nil
	}
	return x.MoreInfo.AIResult
}
