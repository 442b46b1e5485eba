package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"watchverse/models"
)

const (
	// maxPage is the upstream pagination ceiling; the API rejects requests
	// beyond page 500 so reported totals are clamped to it.
	maxPage = 500

	transientAttempts = 3
	transientDelay    = 200 * time.Millisecond
)

// Sort keys accepted by FetchByFilter, as defined by the discover endpoint.
const (
	SortPopularity  = "popularity.desc"
	SortVoteAverage = "vote_average.desc"
	SortReleaseDate = "primary_release_date.desc"
)

// Page is one page of list results.
type Page struct {
	Results    []models.MediaItem `json:"results"`
	TotalPages int                `json:"total_pages"`
}

// Client handles requests to the media catalog API. Responses are cached
// for a fixed freshness window so repeated page renders within it do not
// hit the upstream again.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	cache *expirable.LRU[string, []byte]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a catalog client. cacheSize bounds the response cache,
// cacheTTL is the freshness window for cached responses.
func NewClient(baseURL, apiKey string, cacheSize int, cacheTTL time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      expirable.NewLRU[string, []byte](cacheSize, nil, cacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Results    []models.MediaItem `json:"results"`
	TotalPages int                `json:"total_pages"`
}

type genreListResponse struct {
	Genres []models.Genre `json:"genres"`
}

// FetchByFilter returns one page of the discover endpoint for the given
// kind, optionally restricted to a genre. genreID <= 0 means no genre filter.
func (c *Client) FetchByFilter(ctx context.Context, kind string, page int, sortKey string, genreID int) (*Page, error) {
	if sortKey == "" {
		sortKey = SortPopularity
	}
	params := url.Values{}
	params.Set("include_adult", "false")
	params.Set("page", strconv.Itoa(page))
	params.Set("sort_by", sortKey)
	if genreID > 0 {
		params.Set("with_genres", strconv.Itoa(genreID))
	}

	body, err := c.get(ctx, "/discover/"+kind, params)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode discover response: %w", err)
	}

	// Discover results do not carry a media type, but every consumer
	// needs one to build links and store rows.
	for i := range resp.Results {
		if resp.Results[i].MediaType == "" {
			resp.Results[i].MediaType = kind
		}
	}
	return formatPage(resp), nil
}

// FetchDetails returns one media item with appended videos, credits and
// similar titles. Detail results are not subject to the poster filter.
func (c *Client) FetchDetails(ctx context.Context, kind string, id int) (*models.MediaItem, error) {
	params := url.Values{}
	params.Set("append_to_response", "videos,credits,similar")

	body, err := c.get(ctx, fmt.Sprintf("/%s/%d", kind, id), params)
	if err != nil {
		return nil, err
	}

	var item models.MediaItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode detail response: %w", err)
	}
	if item.MediaType == "" {
		item.MediaType = kind
	}
	if item.Similar != nil {
		for i := range item.Similar.Results {
			if item.Similar.Results[i].MediaType == "" {
				item.Similar.Results[i].MediaType = kind
			}
		}
	}
	return &item, nil
}

// Search queries the multi-type search endpoint. Results are filtered to
// movie and tv entries only; person and other entity kinds are dropped.
func (c *Client) Search(ctx context.Context, query string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")

	body, err := c.get(ctx, "/search/multi", params)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	filtered := resp.Results[:0]
	for _, item := range resp.Results {
		if item.MediaType == models.MediaTypeMovie || item.MediaType == models.MediaTypeTV {
			filtered = append(filtered, item)
		}
	}
	resp.Results = filtered
	return formatPage(resp), nil
}

// FetchGenres returns the id to name genre mapping for a media kind.
func (c *Client) FetchGenres(ctx context.Context, kind string) ([]models.Genre, error) {
	body, err := c.get(ctx, "/genre/"+kind+"/list", nil)
	if err != nil {
		return nil, err
	}

	var resp genreListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode genre response: %w", err)
	}
	return resp.Genres, nil
}

// Popular returns one page of the most popular titles for a kind.
func (c *Client) Popular(ctx context.Context, kind string, page int) (*Page, error) {
	return c.FetchByFilter(ctx, kind, page, SortPopularity, 0)
}

// TopRated returns one page of the highest rated titles for a kind.
func (c *Client) TopRated(ctx context.Context, kind string, page int) (*Page, error) {
	return c.FetchByFilter(ctx, kind, page, SortVoteAverage, 0)
}

// ByGenre returns one page of popular titles restricted to a genre.
func (c *Client) ByGenre(ctx context.Context, kind string, genreID, page int) (*Page, error) {
	return c.FetchByFilter(ctx, kind, page, SortPopularity, genreID)
}

// get performs a cached GET against the catalog API. 5xx and transport
// errors are retried a few times before the error is surfaced; 4xx fail
// immediately.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	params.Set("language", "en-US")
	requestURL := c.baseURL + path + "?" + params.Encode()

	if body, ok := c.cache.Get(requestURL); ok {
		return body, nil
	}

	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.doGet(ctx, requestURL)
		},
		retry.Context(ctx),
		retry.Attempts(transientAttempts),
		retry.Delay(transientDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Printf("[catalog] request failed: %s: %v", path, err)
		return nil, err
	}

	c.cache.Add(requestURL, body)
	return body, nil
}

func (c *Client) doGet(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("upstream status: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Unrecoverable(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return buf, nil
}

// formatPage drops posterless items from list results and clamps the
// reported page count to the upstream ceiling.
func formatPage(resp listResponse) *Page {
	results := make([]models.MediaItem, 0, len(resp.Results))
	for _, item := range resp.Results {
		if item.PosterPath == "" {
			continue
		}
		results = append(results, item)
	}

	totalPages := resp.TotalPages
	if totalPages > maxPage {
		totalPages = maxPage
	}
	if totalPages < 1 {
		totalPages = 1
	}

	return &Page{Results: results, TotalPages: totalPages}
}
