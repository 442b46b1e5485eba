package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"watchverse/models"
	"watchverse/services/catalog"
	"watchverse/services/enrich"
	"watchverse/services/relations"
	"watchverse/services/reviews"
)

// detailFetchWorkers bounds the parallel detail hydration for list pages.
const detailFetchWorkers = 8

// lazyRowCount is how many genre rows a curated listing defers.
const lazyRowCount = 10

type catalogService interface {
	FetchByFilter(ctx context.Context, kind string, page int, sortKey string, genreID int) (*catalog.Page, error)
	FetchDetails(ctx context.Context, kind string, id int) (*models.MediaItem, error)
	Search(ctx context.Context, query string, page int) (*catalog.Page, error)
	FetchGenres(ctx context.Context, kind string) ([]models.Genre, error)
	Popular(ctx context.Context, kind string, page int) (*catalog.Page, error)
	TopRated(ctx context.Context, kind string, page int) (*catalog.Page, error)
	ByGenre(ctx context.Context, kind string, genreID, page int) (*catalog.Page, error)
}

type relationReader interface {
	GetStatus(ctx context.Context, userID string, mediaID int, mediaType string) (*models.Status, error)
	ListByStatus(ctx context.Context, userID string, status models.Status) ([]models.RelationRef, error)
	GetRatingsMap(ctx context.Context, userID string) (map[int]int, error)
	GetStatusBatch(ctx context.Context, userID string, mediaIDs []int, mediaType string) (map[int]models.Status, error)
}

type reviewReader interface {
	ForMedia(ctx context.Context, mediaID int, mediaType string) (*reviews.MediaReviews, error)
	UserReview(ctx context.Context, userID string, mediaID int, mediaType string) (*models.Review, error)
}

type sessionResolver interface {
	CurrentUser(r *http.Request) *models.Profile
}

var (
	_ catalogService = (*catalog.Client)(nil)
	_ relationReader = (*relations.Repository)(nil)
	_ reviewReader   = (*reviews.Service)(nil)
)

// Pages renders the server-side views: curated rows, filtered grids,
// detail pages, search and the user's lists.
type Pages struct {
	Catalog   catalogService
	Relations relationReader
	Reviews   reviewReader
	Session   sessionResolver
}

// NewPages creates the page handler set.
func NewPages(catalogSvc catalogService, relationsRepo relationReader, reviewSvc reviewReader, session sessionResolver) *Pages {
	return &Pages{Catalog: catalogSvc, Relations: relationsRepo, Reviews: reviewSvc, Session: session}
}

// relationSnapshot is the user's relation data, fetched once per page
// render and threaded to every row on the page.
type relationSnapshot struct {
	WatchlistRefs []models.RelationRef
	WatchedRefs   []models.RelationRef
	Watchlist     enrich.IDSet
	Watched       enrich.IDSet
	Ratings       map[int]int
}

type snapshotJSON struct {
	WatchlistIDs []int       `json:"watchlist_ids"`
	WatchedIDs   []int       `json:"watched_ids"`
	Ratings      map[int]int `json:"ratings"`
}

// JSON renders the snapshot for embedding into the page. Nil snapshots
// (anonymous renders) serialize as null.
func (s *relationSnapshot) JSON() template.JS {
	if s == nil {
		return template.JS("null")
	}
	payload := snapshotJSON{
		WatchlistIDs: make([]int, 0, len(s.WatchlistRefs)),
		WatchedIDs:   make([]int, 0, len(s.WatchedRefs)),
		Ratings:      s.Ratings,
	}
	for _, ref := range s.WatchlistRefs {
		payload.WatchlistIDs = append(payload.WatchlistIDs, ref.MediaID)
	}
	for _, ref := range s.WatchedRefs {
		payload.WatchedIDs = append(payload.WatchedIDs, ref.MediaID)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return template.JS("null")
	}
	return template.JS(out)
}

// enrichPage applies the snapshot to a catalog page. Nil snapshots leave
// every status and rating nil.
func (s *relationSnapshot) enrichPage(page *catalog.Page) []models.EnrichedMediaItem {
	if page == nil {
		return []models.EnrichedMediaItem{}
	}
	if s == nil {
		return enrich.Enrich(page.Results, nil, nil, nil)
	}
	return enrich.Enrich(page.Results, s.Watchlist, s.Watched, s.Ratings)
}

// loadSnapshot fetches the user's relation data in parallel. Anonymous
// requests skip the store entirely and get a nil snapshot. Individual
// read failures degrade to empty sets.
func (h *Pages) loadSnapshot(ctx context.Context, user *models.Profile) *relationSnapshot {
	if user == nil {
		return nil
	}

	snap := &relationSnapshot{}
	var wg conc.WaitGroup
	wg.Go(func() {
		refs, err := h.Relations.ListByStatus(ctx, user.ID, models.StatusWatchlist)
		if err != nil {
			log.Printf("[pages] watchlist read failed for %s: %v", user.ID, err)
			return
		}
		snap.WatchlistRefs = refs
	})
	wg.Go(func() {
		refs, err := h.Relations.ListByStatus(ctx, user.ID, models.StatusWatched)
		if err != nil {
			log.Printf("[pages] watched read failed for %s: %v", user.ID, err)
			return
		}
		snap.WatchedRefs = refs
	})
	wg.Go(func() {
		ratings, err := h.Relations.GetRatingsMap(ctx, user.ID)
		if err != nil {
			log.Printf("[pages] ratings read failed for %s: %v", user.ID, err)
			return
		}
		snap.Ratings = ratings
	})
	wg.Wait()

	snap.Watchlist = enrich.NewIDSet(snap.WatchlistRefs)
	snap.Watched = enrich.NewIDSet(snap.WatchedRefs)
	return snap
}

// fetchRow fetches one catalog row, degrading to an empty page on failure.
func fetchRow(fetch func() (*catalog.Page, error), rowName string) *catalog.Page {
	page, err := fetch()
	if err != nil {
		log.Printf("[pages] row %q fetch failed: %v", rowName, err)
		return &catalog.Page{Results: []models.MediaItem{}, TotalPages: 1}
	}
	return page
}

// mediaRow is one named row of enriched items.
type mediaRow struct {
	Title string
	Href  string
	Items []models.EnrichedMediaItem
}

// lazyRow is a deferred genre row: rendered as a placeholder that fetches
// itself once scrolled into view.
type lazyRow struct {
	Genre models.Genre
	Kind  string
	Href  string
}

type homePage struct {
	basePage
	Rows []mediaRow
}

// Home renders the curated landing page.
func (h *Pages) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := h.Session.CurrentUser(r)

	var snap *relationSnapshot
	var popularMovies, nowPlaying, popularSeries, topRatedSeries *catalog.Page

	var wg conc.WaitGroup
	wg.Go(func() { snap = h.loadSnapshot(ctx, user) })
	wg.Go(func() {
		popularMovies = fetchRow(func() (*catalog.Page, error) { return h.Catalog.Popular(ctx, models.MediaTypeMovie, 1) }, "popular movies")
	})
	wg.Go(func() {
		nowPlaying = fetchRow(func() (*catalog.Page, error) {
			return h.Catalog.FetchByFilter(ctx, models.MediaTypeMovie, 1, catalog.SortReleaseDate, 0)
		}, "now in cinemas")
	})
	wg.Go(func() {
		popularSeries = fetchRow(func() (*catalog.Page, error) { return h.Catalog.Popular(ctx, models.MediaTypeTV, 1) }, "popular series")
	})
	wg.Go(func() {
		topRatedSeries = fetchRow(func() (*catalog.Page, error) { return h.Catalog.TopRated(ctx, models.MediaTypeTV, 1) }, "top rated series")
	})
	wg.Wait()

	render(w, "home.html", homePage{
		basePage: newBasePage("Watchverse", user, snap),
		Rows: []mediaRow{
			{Title: "Popular Movies", Href: "/movies?sort=" + catalog.SortPopularity, Items: snap.enrichPage(popularMovies)},
			{Title: "Now in Cinemas", Href: "/movies?sort=" + catalog.SortReleaseDate, Items: snap.enrichPage(nowPlaying)},
			{Title: "Popular TV Series", Href: "/series?sort=" + catalog.SortPopularity, Items: snap.enrichPage(popularSeries)},
			{Title: "Top Rated TV Series", Href: "/series?sort=" + catalog.SortVoteAverage, Items: snap.enrichPage(topRatedSeries)},
		},
	})
}

// kindFromPath maps the path segment (movies, series) to the catalog kind.
func kindFromPath(segment string) (kind, basePath string, ok bool) {
	switch segment {
	case "movies":
		return models.MediaTypeMovie, "/movies", true
	case "series":
		return models.MediaTypeTV, "/series", true
	}
	return "", "", false
}

type gridPage struct {
	basePage
	Heading     string
	Items       []models.EnrichedMediaItem
	CurrentPage int
	TotalPages  int
	PrevPage    int
	NextPage    int
	BasePath    string
	QuerySuffix string
}

type listingPage struct {
	basePage
	Heading  string
	BasePath string
	Rows     []mediaRow
	LazyRows []lazyRow
}

var titleCaser = cases.Title(language.English)

// Listing renders /movies and /series: a filtered, paginated grid when a
// sort or genre parameter is present, curated rows plus lazy genre rows
// otherwise.
func (h *Pages) Listing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := h.Session.CurrentUser(r)

	kind, basePath, ok := kindFromPath(mux.Vars(r)["mediaType"])
	if !ok {
		renderNotFound(w, user, "page")
		return
	}

	query := r.URL.Query()
	sortKey := query.Get("sort")
	genreParam := query.Get("genre")
	genreID, _ := strconv.Atoi(genreParam)

	if sortKey != "" || genreParam != "" {
		h.filteredListing(w, r, user, kind, basePath, sortKey, genreID)
		return
	}

	var snap *relationSnapshot
	var popular, topRated *catalog.Page
	var genres []models.Genre

	var wg conc.WaitGroup
	wg.Go(func() { snap = h.loadSnapshot(ctx, user) })
	wg.Go(func() {
		popular = fetchRow(func() (*catalog.Page, error) { return h.Catalog.Popular(ctx, kind, 1) }, "popular")
	})
	wg.Go(func() {
		topRated = fetchRow(func() (*catalog.Page, error) { return h.Catalog.TopRated(ctx, kind, 1) }, "top rated")
	})
	wg.Go(func() {
		var err error
		genres, err = h.Catalog.FetchGenres(ctx, kind)
		if err != nil {
			log.Printf("[pages] genre fetch failed: %v", err)
		}
	})
	wg.Wait()

	if len(genres) > lazyRowCount {
		genres = genres[:lazyRowCount]
	}
	lazyRows := make([]lazyRow, 0, len(genres))
	for _, genre := range genres {
		lazyRows = append(lazyRows, lazyRow{
			Genre: models.Genre{ID: genre.ID, Name: titleCaser.String(genre.Name)},
			Kind:  kind,
			Href:  basePath + "?genre=" + strconv.Itoa(genre.ID),
		})
	}

	heading := "Movies"
	if kind == models.MediaTypeTV {
		heading = "TV Series"
	}

	render(w, "listing.html", listingPage{
		basePage: newBasePage(heading, user, snap),
		Heading:  heading,
		BasePath: basePath,
		Rows: []mediaRow{
			{Title: "Popular", Href: basePath + "?sort=" + catalog.SortPopularity, Items: snap.enrichPage(popular)},
			{Title: "Top Rated", Href: basePath + "?sort=" + catalog.SortVoteAverage, Items: snap.enrichPage(topRated)},
		},
		LazyRows: lazyRows,
	})
}

func (h *Pages) filteredListing(w http.ResponseWriter, r *http.Request, user *models.Profile, kind, basePath, sortKey string, genreID int) {
	ctx := r.Context()
	currentPage, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if currentPage < 1 {
		currentPage = 1
	}

	var snap *relationSnapshot
	var page *catalog.Page

	var wg conc.WaitGroup
	wg.Go(func() { snap = h.loadSnapshot(ctx, user) })
	wg.Go(func() {
		page = fetchRow(func() (*catalog.Page, error) {
			return h.Catalog.FetchByFilter(ctx, kind, currentPage, sortKey, genreID)
		}, "filtered")
	})
	wg.Wait()

	if currentPage > page.TotalPages {
		currentPage = page.TotalPages
	}

	suffix := ""
	if sortKey != "" {
		suffix += "&sort=" + sortKey
	}
	if genreID > 0 {
		suffix += "&genre=" + strconv.Itoa(genreID)
	}

	heading := "Movies"
	if kind == models.MediaTypeTV {
		heading = "TV Series"
	}

	render(w, "grid.html", gridPage{
		basePage:    newBasePage(heading, user, snap),
		Heading:     heading,
		Items:       snap.enrichPage(page),
		CurrentPage: currentPage,
		TotalPages:  page.TotalPages,
		PrevPage:    max(1, currentPage-1),
		NextPage:    min(page.TotalPages, currentPage+1),
		BasePath:    basePath,
		QuerySuffix: suffix,
	})
}

type detailPage struct {
	basePage
	Item       *models.MediaItem
	Status     *models.Status
	Reviews    *reviews.MediaReviews
	UserReview *models.Review
	Similar    []models.EnrichedMediaItem
	Trailer    *models.Video
	BackHref   string
}

// Detail renders one movie or series page with reviews and similar titles.
func (h *Pages) Detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := h.Session.CurrentUser(r)

	vars := mux.Vars(r)
	kind := vars["mediaType"]
	id, err := strconv.Atoi(vars["id"])
	if err != nil || id <= 0 || (kind != models.MediaTypeMovie && kind != models.MediaTypeTV) {
		renderNotFound(w, user, "title")
		return
	}

	item, err := h.Catalog.FetchDetails(ctx, kind, id)
	if err != nil || item == nil {
		if err != nil {
			log.Printf("[pages] detail fetch failed for %s/%d: %v", kind, id, err)
		}
		renderNotFound(w, user, "title")
		return
	}

	if item.Credits != nil && len(item.Credits.Cast) > 10 {
		item.Credits.Cast = item.Credits.Cast[:10]
	}

	var snap *relationSnapshot
	var status *models.Status
	var feed *reviews.MediaReviews
	var userReview *models.Review

	var wg conc.WaitGroup
	wg.Go(func() {
		var err error
		feed, err = h.Reviews.ForMedia(ctx, id, kind)
		if err != nil {
			log.Printf("[pages] reviews read failed for %s/%d: %v", kind, id, err)
			feed = &reviews.MediaReviews{Reviews: []models.Review{}}
		}
	})
	if user != nil {
		wg.Go(func() { snap = h.loadSnapshot(ctx, user) })
		wg.Go(func() {
			var err error
			status, err = h.Relations.GetStatus(ctx, user.ID, id, kind)
			if err != nil {
				log.Printf("[pages] status read failed for %s/%d: %v", kind, id, err)
			}
		})
		wg.Go(func() {
			var err error
			userReview, err = h.Reviews.UserReview(ctx, user.ID, id, kind)
			if err != nil {
				log.Printf("[pages] user review read failed for %s/%d: %v", kind, id, err)
			}
		})
	}
	wg.Wait()

	var similar []models.EnrichedMediaItem
	if item.Similar != nil {
		similar = snap.enrichPage(&catalog.Page{Results: item.Similar.Results})
		// Posterless similar titles render badly in a row.
		filtered := similar[:0]
		for _, s := range similar {
			if s.PosterPath != "" {
				filtered = append(filtered, s)
			}
		}
		similar = filtered
	}

	backHref := "/movies"
	if kind == models.MediaTypeTV {
		backHref = "/series"
	}

	render(w, "detail.html", detailPage{
		basePage:   newBasePage(item.DisplayTitle(), user, snap),
		Item:       item,
		Status:     status,
		Reviews:    feed,
		UserReview: userReview,
		Similar:    similar,
		Trailer:    item.Trailer(),
		BackHref:   backHref,
	})
}

type searchPage struct {
	basePage
	Query       string
	Items       []models.EnrichedMediaItem
	CurrentPage int
	TotalPages  int
	PrevPage    int
	NextPage    int
}

// Search renders multi-type search results. Signed-in users get statuses
// merged from batched lookups, one per media kind.
func (h *Pages) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := h.Session.CurrentUser(r)

	query := r.URL.Query().Get("query")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	results := fetchRow(func() (*catalog.Page, error) { return h.Catalog.Search(ctx, query, page) }, "search")

	statusMap := map[int]models.Status{}
	if user != nil && len(results.Results) > 0 {
		var movieIDs, tvIDs []int
		for _, item := range results.Results {
			switch item.MediaType {
			case models.MediaTypeMovie:
				movieIDs = append(movieIDs, item.ID)
			case models.MediaTypeTV:
				tvIDs = append(tvIDs, item.ID)
			}
		}

		var movieStatuses, tvStatuses map[int]models.Status
		var wg conc.WaitGroup
		wg.Go(func() {
			var err error
			movieStatuses, err = h.Relations.GetStatusBatch(ctx, user.ID, movieIDs, models.MediaTypeMovie)
			if err != nil {
				log.Printf("[pages] movie status batch failed: %v", err)
			}
		})
		wg.Go(func() {
			var err error
			tvStatuses, err = h.Relations.GetStatusBatch(ctx, user.ID, tvIDs, models.MediaTypeTV)
			if err != nil {
				log.Printf("[pages] tv status batch failed: %v", err)
			}
		})
		wg.Wait()

		for id, status := range movieStatuses {
			statusMap[id] = status
		}
		for id, status := range tvStatuses {
			statusMap[id] = status
		}
	}

	items := make([]models.EnrichedMediaItem, 0, len(results.Results))
	for _, item := range results.Results {
		enriched := models.EnrichedMediaItem{MediaItem: item}
		if status, ok := statusMap[item.ID]; ok {
			s := status
			enriched.UserStatus = &s
		}
		items = append(items, enriched)
	}

	render(w, "search.html", searchPage{
		basePage:    newBasePage("Search", user, nil),
		Query:       query,
		Items:       items,
		CurrentPage: page,
		TotalPages:  results.TotalPages,
		PrevPage:    max(1, page-1),
		NextPage:    min(results.TotalPages, page+1),
	})
}

// hydrateDetails fetches full details for a list of references with a
// bounded worker pool, preserving list order. Failed fetches are skipped.
func (h *Pages) hydrateDetails(ctx context.Context, refs []models.RelationRef) []models.MediaItem {
	results := make([]*models.MediaItem, len(refs))

	p := pool.New().WithMaxGoroutines(detailFetchWorkers)
	for i, ref := range refs {
		p.Go(func() {
			item, err := h.Catalog.FetchDetails(ctx, ref.MediaType, ref.MediaID)
			if err != nil {
				log.Printf("[pages] detail hydration failed for %s/%d: %v", ref.MediaType, ref.MediaID, err)
				return
			}
			results[i] = item
		})
	}
	p.Wait()

	items := make([]models.MediaItem, 0, len(refs))
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items
}

type listPage struct {
	basePage
	Heading  string
	Empty    string
	BackHref string
	Items    []models.EnrichedMediaItem
}

// Watchlist renders the full watchlist grid. Requires a session.
func (h *Pages) Watchlist(w http.ResponseWriter, r *http.Request) {
	h.statusList(w, r, models.StatusWatchlist, "My Watchlist", "Your watchlist is empty.")
}

// Watched renders the watched history grid. Requires a session.
func (h *Pages) Watched(w http.ResponseWriter, r *http.Request) {
	h.statusList(w, r, models.StatusWatched, "Watched History", "You haven't marked any items as watched yet.")
}

func (h *Pages) statusList(w http.ResponseWriter, r *http.Request, status models.Status, heading, empty string) {
	ctx := r.Context()
	user := h.Session.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	var refs []models.RelationRef
	var ratings map[int]int

	var wg conc.WaitGroup
	wg.Go(func() {
		var err error
		refs, err = h.Relations.ListByStatus(ctx, user.ID, status)
		if err != nil {
			log.Printf("[pages] %s read failed: %v", status, err)
		}
	})
	wg.Go(func() {
		var err error
		ratings, err = h.Relations.GetRatingsMap(ctx, user.ID)
		if err != nil {
			log.Printf("[pages] ratings read failed: %v", err)
		}
	})
	wg.Wait()

	items := h.hydrateDetails(ctx, refs)

	render(w, "lists.html", listPage{
		basePage: newBasePage(heading, user, nil),
		Heading:  heading,
		Empty:    empty,
		BackHref: "/my-lists",
		Items:    enrich.WithStatus(items, status, ratings),
	})
}

type myListsPage struct {
	basePage
	Watchlist []models.EnrichedMediaItem
	Watched   []models.EnrichedMediaItem
}

// MyLists renders both lists as rows on one page. Requires a session.
func (h *Pages) MyLists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := h.Session.CurrentUser(r)
	if user == nil {
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}

	snap := h.loadSnapshot(ctx, user)

	var watchlistItems, watchedItems []models.MediaItem
	var wg conc.WaitGroup
	wg.Go(func() { watchlistItems = h.hydrateDetails(ctx, snap.WatchlistRefs) })
	wg.Go(func() { watchedItems = h.hydrateDetails(ctx, snap.WatchedRefs) })
	wg.Wait()

	render(w, "mylists.html", myListsPage{
		basePage:  newBasePage("My Lists", user, snap),
		Watchlist: enrich.WithStatus(watchlistItems, models.StatusWatchlist, snap.Ratings),
		Watched:   enrich.WithStatus(watchedItems, models.StatusWatched, snap.Ratings),
	})
}
