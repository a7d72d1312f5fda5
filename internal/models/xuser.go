package models

import "time"

// XUser is a tracked X (Twitter) account in the user directory.
// Expire marks accounts no longer being crawled; they stay in the table so
// old posts keep resolving to a display name.
type XUser struct {
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	ScreenName string    `json:"screen_name"`
	UserLink   string    `json:"user_link"`
	Avatar     string    `json:"avatar,omitempty"`
	Expire     bool      `json:"expire"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
