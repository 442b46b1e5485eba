package models

// Status is a user's relation to one media item. A (user, media, kind)
// triple holds at most one status; watched and watchlist are mutually
// exclusive at the store layer.
type Status string

const (
	StatusWatchlist Status = "watchlist"
	StatusWatched   Status = "watched"
)

// Valid reports whether s is a persistable status value.
func (s Status) Valid() bool {
	return s == StatusWatchlist || s == StatusWatched
}

// RelationRef identifies one media item inside a user's status list.
type RelationRef struct {
	MediaID   int    `json:"media_id"`
	MediaType string `json:"media_type"`
}
