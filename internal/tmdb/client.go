// Package tmdb is a small read-only client for The Movie Database API.
//
// Every call degrades to "no data" on failure: callers get a zero value or
// false, never an error. Failures are logged here. A circuit breaker stops
// hammering the API once it keeps failing, which makes those calls return no
// data immediately instead of waiting out the timeout.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

const maxBodyBytes = 4 << 20

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// statusError is a non-200 response. Only 5xx responses count against the
// breaker; a 404 for an unknown movie says nothing about API health.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}

	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return c
}

// get fetches endpoint with params plus the API key and decodes the JSON body
// into out. It reports whether out was filled.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) bool {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.fetch(ctx, endpoint, params)
	})
	if err != nil {
		attrs := []any{slog.String("endpoint", endpoint), slog.String("error", err.Error())}
		var se *statusError
		if errors.As(err, &se) {
			attrs = append(attrs, slog.Int("status", se.code))
		}
		c.logger.Warn("tmdb request failed", attrs...)
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warn("tmdb response not decodable",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the API key; report only what went wrong.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, uerr.Err
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

type moviePage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

func (c *Client) movieList(ctx context.Context, endpoint string, params url.Values) []Movie {
	var page moviePage
	if !c.get(ctx, endpoint, params, &page) {
		return nil
	}
	return page.Results
}

func (c *Client) Popular(ctx context.Context) []Movie {
	return c.movieList(ctx, "/movie/popular", nil)
}

func (c *Client) NowPlaying(ctx context.Context) []Movie {
	return c.movieList(ctx, "/movie/now_playing", nil)
}

// Movie returns full details for one movie, or false if the API has nothing.
func (c *Client) Movie(ctx context.Context, id int64) (*Movie, bool) {
	var m Movie
	if !c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), nil, &m) || m.ID == 0 {
		return nil, false
	}
	return &m, true
}

// Trailer returns the YouTube key of the movie's first trailer, or "".
func (c *Client) Trailer(ctx context.Context, id int64) string {
	var resp struct {
		Results []Video `json:"results"`
	}
	if !c.get(ctx, "/movie/"+strconv.FormatInt(id, 10)+"/videos", nil, &resp) {
		return ""
	}
	for _, v := range resp.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" {
			return v.Key
		}
	}
	return ""
}

func (c *Client) Genres(ctx context.Context) []Genre {
	var resp struct {
		Genres []Genre `json:"genres"`
	}
	if !c.get(ctx, "/genre/movie/list", nil, &resp) {
		return nil
	}
	return resp.Genres
}

// SearchMovies runs a free-text search. year is passed through when set.
func (c *Client) SearchMovies(ctx context.Context, query, year string) []Movie {
	params := url.Values{"query": {query}}
	if year != "" {
		params.Set("year", year)
	}
	return c.movieList(ctx, "/search/movie", params)
}

// Discover lists movies by filters alone, sorted by the API.
func (c *Client) Discover(ctx context.Context, f DiscoverFilter) []Movie {
	params := url.Values{}
	if f.SortBy != "" {
		params.Set("sort_by", f.SortBy)
	}
	if f.Genre != "" {
		params.Set("with_genres", f.Genre)
	}
	if f.Year != "" {
		params.Set("primary_release_year", f.Year)
	}
	if f.Language != "" {
		params.Set("with_original_language", f.Language)
	}
	return c.movieList(ctx, "/discover/movie", params)
}
