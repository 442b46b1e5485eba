package enrich_test

import (
	"reflect"
	"testing"

	"watchverse/models"
	"watchverse/services/enrich"
)

func items(ids ...int) []models.MediaItem {
	list := make([]models.MediaItem, 0, len(ids))
	for _, id := range ids {
		list = append(list, models.MediaItem{ID: id})
	}
	return list
}

func set(ids ...int) enrich.IDSet {
	s := make(enrich.IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func TestEnrichPreservesLengthAndOrder(t *testing.T) {
	input := items(5, 3, 9, 1)
	out := enrich.Enrich(input, set(3), set(9), map[int]int{5: 8})

	if len(out) != len(input) {
		t.Fatalf("expected %d items, got %d", len(input), len(out))
	}
	for i, item := range out {
		if item.ID != input[i].ID {
			t.Fatalf("order not preserved at index %d: got id %d, want %d", i, item.ID, input[i].ID)
		}
	}
}

func TestEnrichWatchedWinsOverWatchlist(t *testing.T) {
	out := enrich.Enrich(items(1), set(1), set(1), nil)

	if out[0].UserStatus == nil || *out[0].UserStatus != models.StatusWatched {
		t.Fatalf("expected watched status to win, got %v", out[0].UserStatus)
	}
}

func TestEnrichStatusAssignment(t *testing.T) {
	out := enrich.Enrich(items(1, 2, 3), set(2), set(3), map[int]int{1: 7})

	if out[0].UserStatus != nil {
		t.Fatalf("expected nil status for id 1, got %v", *out[0].UserStatus)
	}
	if out[0].UserRating == nil || *out[0].UserRating != 7 {
		t.Fatalf("expected rating 7 for id 1, got %v", out[0].UserRating)
	}
	if out[1].UserStatus == nil || *out[1].UserStatus != models.StatusWatchlist {
		t.Fatalf("expected watchlist status for id 2, got %v", out[1].UserStatus)
	}
	if out[1].UserRating != nil {
		t.Fatalf("expected nil rating for id 2, got %d", *out[1].UserRating)
	}
	if out[2].UserStatus == nil || *out[2].UserStatus != models.StatusWatched {
		t.Fatalf("expected watched status for id 3, got %v", out[2].UserStatus)
	}
	if out[2].UserRating != nil {
		t.Fatalf("expected nil rating for id 3, got %d", *out[2].UserRating)
	}
}

func TestEnrichZeroRatingMeansNoRating(t *testing.T) {
	out := enrich.Enrich(items(1, 2), nil, nil, map[int]int{1: 0})

	if out[0].UserRating != nil {
		t.Fatalf("expected zero rating treated as absent, got %d", *out[0].UserRating)
	}
	if out[1].UserRating != nil {
		t.Fatalf("expected missing rating to be nil, got %d", *out[1].UserRating)
	}
}

func TestEnrichEmptyAndNilInput(t *testing.T) {
	if out := enrich.Enrich(nil, set(1), set(2), map[int]int{1: 5}); len(out) != 0 {
		t.Fatalf("expected empty output for nil input, got %d items", len(out))
	}
	if out := enrich.Enrich([]models.MediaItem{}, nil, nil, nil); len(out) != 0 {
		t.Fatalf("expected empty output for empty input, got %d items", len(out))
	}
}

func TestEnrichIsIdempotent(t *testing.T) {
	input := items(1, 2, 3, 4)
	watchlist := set(2, 4)
	watched := set(3, 4)
	ratings := map[int]int{1: 7, 3: 2}

	first := enrich.Enrich(input, watchlist, watched, ratings)
	second := enrich.Enrich(input, watchlist, watched, ratings)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output for identical inputs")
	}
}

func TestEnrichAnonymousAllNil(t *testing.T) {
	out := enrich.Enrich(items(10, 20), nil, nil, nil)

	for _, item := range out {
		if item.UserStatus != nil {
			t.Fatalf("expected nil status for anonymous render, got %v", *item.UserStatus)
		}
		if item.UserRating != nil {
			t.Fatalf("expected nil rating for anonymous render, got %d", *item.UserRating)
		}
	}
}

func TestNewIDSet(t *testing.T) {
	refs := []models.RelationRef{
		{MediaID: 1, MediaType: models.MediaTypeMovie},
		{MediaID: 2, MediaType: models.MediaTypeTV},
	}
	s := enrich.NewIDSet(refs)

	if !s.Contains(1) || !s.Contains(2) {
		t.Fatalf("expected both ids present")
	}
	if s.Contains(3) {
		t.Fatalf("did not expect id 3")
	}
}

func TestWithStatusFixesStatusAndMergesRatings(t *testing.T) {
	out := enrich.WithStatus(items(1, 2), models.StatusWatchlist, map[int]int{2: 9})

	for _, item := range out {
		if item.UserStatus == nil || *item.UserStatus != models.StatusWatchlist {
			t.Fatalf("expected watchlist status for id %d", item.ID)
		}
	}
	if out[0].UserRating != nil {
		t.Fatalf("expected nil rating for id 1")
	}
	if out[1].UserRating == nil || *out[1].UserRating != 9 {
		t.Fatalf("expected rating 9 for id 2, got %v", out[1].UserRating)
	}
}
