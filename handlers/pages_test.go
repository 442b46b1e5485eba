package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"

	"watchverse/models"
	"watchverse/services/catalog"
	"watchverse/services/reviews"
)

type fakeCatalog struct {
	page    *catalog.Page
	detail  *models.MediaItem
	genres  []models.Genre
	err     error
	genreID int
}

func (f *fakeCatalog) FetchByFilter(_ context.Context, kind string, page int, sortKey string, genreID int) (*catalog.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeCatalog) FetchDetails(_ context.Context, kind string, id int) (*models.MediaItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeCatalog) Search(_ context.Context, query string, page int) (*catalog.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeCatalog) FetchGenres(_ context.Context, kind string) ([]models.Genre, error) {
	return f.genres, nil
}

func (f *fakeCatalog) Popular(ctx context.Context, kind string, page int) (*catalog.Page, error) {
	return f.FetchByFilter(ctx, kind, page, catalog.SortPopularity, 0)
}

func (f *fakeCatalog) TopRated(ctx context.Context, kind string, page int) (*catalog.Page, error) {
	return f.FetchByFilter(ctx, kind, page, catalog.SortVoteAverage, 0)
}

func (f *fakeCatalog) ByGenre(ctx context.Context, kind string, genreID, page int) (*catalog.Page, error) {
	f.genreID = genreID
	return f.FetchByFilter(ctx, kind, page, catalog.SortPopularity, genreID)
}

type fakeRelations struct {
	watchlist []models.RelationRef
	watched   []models.RelationRef
	ratings   map[int]int
	statuses  map[int]models.Status
	reads     atomic.Int32
}

func (f *fakeRelations) GetStatus(_ context.Context, _ string, mediaID int, _ string) (*models.Status, error) {
	f.reads.Add(1)
	if s, ok := f.statuses[mediaID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeRelations) ListByStatus(_ context.Context, _ string, status models.Status) ([]models.RelationRef, error) {
	f.reads.Add(1)
	if status == models.StatusWatched {
		return f.watched, nil
	}
	return f.watchlist, nil
}

func (f *fakeRelations) GetRatingsMap(_ context.Context, _ string) (map[int]int, error) {
	f.reads.Add(1)
	return f.ratings, nil
}

func (f *fakeRelations) GetStatusBatch(_ context.Context, _ string, mediaIDs []int, _ string) (map[int]models.Status, error) {
	f.reads.Add(1)
	out := map[int]models.Status{}
	for _, id := range mediaIDs {
		if s, ok := f.statuses[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type fakeReviews struct {
	feed *reviews.MediaReviews
	mine *models.Review
}

func (f *fakeReviews) ForMedia(context.Context, int, string) (*reviews.MediaReviews, error) {
	if f.feed == nil {
		return &reviews.MediaReviews{Reviews: []models.Review{}}, nil
	}
	return f.feed, nil
}

func (f *fakeReviews) UserReview(context.Context, string, int, string) (*models.Review, error) {
	return f.mine, nil
}

func moviePage(ids ...int) *catalog.Page {
	items := make([]models.MediaItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.MediaItem{
			ID: id, Title: "Film", PosterPath: "/p.jpg",
			ReleaseDate: "1999-03-31", MediaType: models.MediaTypeMovie,
		})
	}
	return &catalog.Page{Results: items, TotalPages: 3}
}

func newTestPages(cat *fakeCatalog, rel *fakeRelations, user *models.Profile) *Pages {
	return NewPages(cat, rel, &fakeReviews{}, &fakeSession{user: user})
}

func TestHomeRendersCuratedRows(t *testing.T) {
	h := newTestPages(&fakeCatalog{page: moviePage(603)}, &fakeRelations{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Home(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, heading := range []string{"Popular Movies", "Now in Cinemas", "Popular TV Series", "Top Rated TV Series"} {
		if !strings.Contains(body, heading) {
			t.Fatalf("expected row %q in page", heading)
		}
	}
	if !strings.Contains(body, `href="/movie/603"`) {
		t.Fatalf("expected a card link in page")
	}
}

func TestHomeAnonymousSkipsRelationReads(t *testing.T) {
	rel := &fakeRelations{}
	h := newTestPages(&fakeCatalog{page: moviePage(603)}, rel, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Home(rec, req)

	if got := rel.reads.Load(); got != 0 {
		t.Fatalf("expected no store reads for an anonymous render, got %d", got)
	}
	if !strings.Contains(rec.Body.String(), `data-status=""`) {
		t.Fatalf("expected anonymous cards to carry no status")
	}
}

func TestHomeEmbedsRelationSnapshot(t *testing.T) {
	rel := &fakeRelations{
		watchlist: []models.RelationRef{{MediaID: 603, MediaType: models.MediaTypeMovie}},
		ratings:   map[int]int{603: 9},
	}
	user := &models.Profile{ID: "user-1", Username: "casey"}
	h := newTestPages(&fakeCatalog{page: moviePage(603)}, rel, user)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Home(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `"watchlist_ids":[603]`) {
		t.Fatalf("expected watchlist snapshot in page, got: %.300s", body)
	}
	if !strings.Contains(body, `data-status="watchlist"`) {
		t.Fatalf("expected enriched card status in page")
	}
}

func TestHomeDegradesWhenCatalogDown(t *testing.T) {
	h := newTestPages(&fakeCatalog{err: errors.New("upstream down")}, &fakeRelations{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Home(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 despite upstream failure, got %d", rec.Code)
	}
}

func TestListingCuratedModeShowsLazyGenreRows(t *testing.T) {
	cat := &fakeCatalog{
		page:   moviePage(603),
		genres: []models.Genre{{ID: 28, Name: "action"}, {ID: 35, Name: "comedy"}},
	}
	h := newTestPages(cat, &fakeRelations{}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/movies", nil),
		map[string]string{"mediaType": "movies"})
	rec := httptest.NewRecorder()
	h.Listing(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-genre-id="28"`) {
		t.Fatalf("expected lazy genre row placeholder in page")
	}
	if !strings.Contains(body, "Action") {
		t.Fatalf("expected title cased genre heading in page")
	}
}

func TestListingFilteredModeShowsGrid(t *testing.T) {
	h := newTestPages(&fakeCatalog{page: moviePage(1, 2)}, &fakeRelations{}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/movies?sort=vote_average.desc&page=2", nil),
		map[string]string{"mediaType": "movies"})
	rec := httptest.NewRecorder()
	h.Listing(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "Page 2 of 3") {
		t.Fatalf("expected pagination in page, got: %.300s", body)
	}
	if !strings.Contains(body, "sort=vote_average.desc") {
		t.Fatalf("expected the sort filter preserved in pagination links")
	}
}

func TestDetailUnknownTitleGets404(t *testing.T) {
	h := newTestPages(&fakeCatalog{err: errors.New("status 404")}, &fakeRelations{}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/movie/999", nil),
		map[string]string{"mediaType": "movie", "id": "999"})
	rec := httptest.NewRecorder()
	h.Detail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestDetailRendersItem(t *testing.T) {
	detail := &models.MediaItem{
		ID: 603, Title: "The Matrix", MediaType: models.MediaTypeMovie,
		Overview: "A hacker learns the truth.", ReleaseDate: "1999-03-31",
	}
	h := newTestPages(&fakeCatalog{detail: detail}, &fakeRelations{}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/movie/603", nil),
		map[string]string{"mediaType": "movie", "id": "603"})
	rec := httptest.NewRecorder()
	h.Detail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "The Matrix") || !strings.Contains(body, "(1999)") {
		t.Fatalf("expected title and year in page")
	}
}

func TestSearchMergesStatuses(t *testing.T) {
	cat := &fakeCatalog{page: moviePage(603, 604)}
	rel := &fakeRelations{statuses: map[int]models.Status{603: models.StatusWatched}}
	user := &models.Profile{ID: "user-1", Username: "casey"}
	h := newTestPages(cat, rel, user)

	req := httptest.NewRequest(http.MethodGet, "/search?query=matrix", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	body := rec.Body.String()
	if got := strings.Count(body, `data-status="watched"`); got != 1 {
		t.Fatalf("expected exactly one watched result, found %d", got)
	}
}

func TestWatchlistRedirectsAnonymous(t *testing.T) {
	h := newTestPages(&fakeCatalog{page: moviePage()}, &fakeRelations{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/watchlist", nil)
	rec := httptest.NewRecorder()
	h.Watchlist(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth" {
		t.Fatalf("expected redirect to /auth, got %q", loc)
	}
}

func TestWatchlistHydratesDetails(t *testing.T) {
	detail := &models.MediaItem{ID: 603, Title: "The Matrix", MediaType: models.MediaTypeMovie, PosterPath: "/p.jpg"}
	rel := &fakeRelations{
		watchlist: []models.RelationRef{{MediaID: 603, MediaType: models.MediaTypeMovie}},
		ratings:   map[int]int{603: 8},
	}
	user := &models.Profile{ID: "user-1", Username: "casey"}
	h := newTestPages(&fakeCatalog{detail: detail}, rel, user)

	req := httptest.NewRequest(http.MethodGet, "/watchlist", nil)
	rec := httptest.NewRecorder()
	h.Watchlist(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "The Matrix") {
		t.Fatalf("expected hydrated title in page")
	}
	if !strings.Contains(body, `data-rating="8"`) {
		t.Fatalf("expected the rating merged onto the card")
	}
}

func TestGenreRowReturnsRawItems(t *testing.T) {
	cat := &fakeCatalog{page: moviePage(603)}
	h := newTestPages(cat, &fakeRelations{}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/rows/movie/28", nil),
		map[string]string{"mediaType": "movie", "genreID": "28"})
	rec := httptest.NewRecorder()
	h.GenreRow(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if cat.genreID != 28 {
		t.Fatalf("expected genre 28 requested, got %d", cat.genreID)
	}

	var resp rowPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 603 {
		t.Fatalf("unexpected row payload: %+v", resp)
	}
}

func TestGenreRowDegradesToEmpty(t *testing.T) {
	h := newTestPages(&fakeCatalog{err: errors.New("upstream down")}, &fakeRelations{}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/rows/movie/28", nil),
		map[string]string{"mediaType": "movie", "genreID": "28"})
	rec := httptest.NewRecorder()
	h.GenreRow(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 despite upstream failure, got %d", rec.Code)
	}

	var resp rowPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected an empty row, got %+v", resp)
	}
}

func TestGenreRowRejectsUnknownKind(t *testing.T) {
	h := newTestPages(&fakeCatalog{}, &fakeRelations{}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/rows/person/28", nil),
		map[string]string{"mediaType": "person", "genreID": "28"})
	rec := httptest.NewRecorder()
	h.GenreRow(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}
