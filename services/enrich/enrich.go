// Package enrich merges catalog items with a user's relation and rating
// facts into the view model rendered by list pages. Everything here is
// pure: inputs are never mutated and output order matches input order.
package enrich

import "watchverse/models"

// IDSet is a membership set of media ids.
type IDSet map[int]struct{}

// NewIDSet builds an id set from relation references.
func NewIDSet(refs []models.RelationRef) IDSet {
	set := make(IDSet, len(refs))
	for _, ref := range refs {
		set[ref.MediaID] = struct{}{}
	}
	return set
}

// Contains reports membership. A nil set contains nothing.
func (s IDSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// Enrich merges items with the user's watchlist/watched membership and
// ratings. Watched wins over watchlist when an id appears in both sets.
// A zero or missing rating means "no rating". Nil sets and maps are valid
// and produce all-nil statuses and ratings, which is how anonymous
// renders reduce to plain catalog data.
func Enrich(items []models.MediaItem, watchlist, watched IDSet, ratings map[int]int) []models.EnrichedMediaItem {
	if len(items) == 0 {
		return []models.EnrichedMediaItem{}
	}

	enriched := make([]models.EnrichedMediaItem, 0, len(items))
	for _, item := range items {
		var status *models.Status
		switch {
		case watched.Contains(item.ID):
			s := models.StatusWatched
			status = &s
		case watchlist.Contains(item.ID):
			s := models.StatusWatchlist
			status = &s
		}

		var rating *int
		if r, ok := ratings[item.ID]; ok && r > 0 {
			v := r
			rating = &v
		}

		enriched = append(enriched, models.EnrichedMediaItem{
			MediaItem:  item,
			UserStatus: status,
			UserRating: rating,
		})
	}
	return enriched
}

// WithStatus marks every item with one fixed status, merging ratings as
// Enrich does. List pages use it when the page itself defines the status
// (a watchlist page renders watchlist items only).
func WithStatus(items []models.MediaItem, status models.Status, ratings map[int]int) []models.EnrichedMediaItem {
	if len(items) == 0 {
		return []models.EnrichedMediaItem{}
	}

	enriched := make([]models.EnrichedMediaItem, 0, len(items))
	for _, item := range items {
		s := status
		var rating *int
		if r, ok := ratings[item.ID]; ok && r > 0 {
			v := r
			rating = &v
		}
		enriched = append(enriched, models.EnrichedMediaItem{
			MediaItem:  item,
			UserStatus: &s,
			UserRating: rating,
		})
	}
	return enriched
}
