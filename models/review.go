package models

import "time"

// Review is a user's rating of one media item with an optional note.
// One review per (user, media id, media kind), enforced by an upsert.
type Review struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	MediaID    int       `json:"media_id"`
	MediaType  string    `json:"media_type"`
	Rating     int       `json:"rating"`
	ReviewText *string   `json:"review_text,omitempty"`
	IsPublic   bool      `json:"is_public"`
	CreatedAt  time.Time `json:"created_at"`

	// Profile is the author, joined for public listings only.
	Profile *Profile `json:"profile,omitempty"`
}
