// Package tmdb wraps the TMDB metadata and discovery API. All response
// normalization lives here: movie and TV payloads (title/name,
// release_date/first_air_date) collapse into one Title shape, and the
// native 0-10 vote average is scaled to the canonical 0-100 rating scale
// exactly once, at this boundary.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// Config holds TMDB client settings.
type Config struct {
	APIKey  string
	BaseURL string
	// Region scopes watch-provider lookups. The dashboard is a US
	// household app, so this defaults to "US".
	Region string
	// MinVoteCount is the discovery quality floor: entries with fewer
	// votes are too low-signal to recommend.
	MinVoteCount int
	// RequestsPerSecond throttles outbound calls below TMDB's limit.
	RequestsPerSecond float64
}

// Client is the TMDB API client. Safe for concurrent use.
type Client struct {
	apiKey   string
	baseURL  string
	region   string
	minVotes int
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a new TMDB API client.
func NewClient(cfg Config) *Client {
	if cfg.Region == "" {
		cfg.Region = "US"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// A fractional rate in (0, 1) must not truncate the burst to zero,
	// which would make every Wait fail.
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		region:   cfg.Region,
		minVotes: cfg.MinVoteCount,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		breaker: breaker,
	}
}

// ---- TMDB response shapes (internal, never exposed to consumers) ----

type rawTitle struct {
	ID           int     `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int   `json:"genre_ids"`
	Genres       []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

type pagedResponse struct {
	Page         int        `json:"page"`
	Results      []rawTitle `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

type genreListResponse struct {
	Genres []models.Genre `json:"genres"`
}

type providerEntry struct {
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

type providersResponse struct {
	Results map[string]struct {
		Flatrate []providerEntry `json:"flatrate"`
		Free     []providerEntry `json:"free"`
	} `json:"results"`
}

// normalize flattens a raw TMDB record into the canonical Title shape.
func normalize(raw rawTitle, kind models.MediaKind) models.Title {
	name := raw.Title
	if name == "" {
		name = raw.Name
	}
	release := raw.ReleaseDate
	if release == "" {
		release = raw.FirstAirDate
	}
	return models.Title{
		ID:             raw.ID,
		Kind:           kind,
		Name:           name,
		ReleaseDate:    release,
		PosterRef:      raw.PosterPath,
		Overview:       raw.Overview,
		ExternalRating: raw.VoteAverage * 10,
		Popularity:     raw.Popularity,
		GenreIDs:       raw.GenreIDs,
	}
}

// ---- Client methods ----

// Discover fetches one page of titles for a genre scope, sorted by
// descending popularity with the vote-count quality floor applied.
// Multiple genre ids narrow the result (AND, comma-joined); provider ids
// widen it (OR, pipe-joined) and pin the watch region.
func (c *Client) Discover(ctx context.Context, kind models.MediaKind, genreIDs, providerIDs []int, page int) ([]models.Title, error) {
	q := url.Values{}
	q.Set("sort_by", "popularity.desc")
	q.Set("vote_count.gte", strconv.Itoa(c.minVotes))
	q.Set("page", strconv.Itoa(page))
	if len(genreIDs) > 0 {
		q.Set("with_genres", joinIDs(genreIDs, ","))
	}
	if len(providerIDs) > 0 {
		q.Set("with_watch_providers", joinIDs(providerIDs, "|"))
		q.Set("watch_region", c.region)
	}

	body, err := c.get(ctx, fmt.Sprintf("/discover/%s", kind), q)
	if err != nil {
		return nil, err
	}

	var result pagedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode discover response: %w", err)
	}

	titles := make([]models.Title, 0, len(result.Results))
	for _, raw := range result.Results {
		titles = append(titles, normalize(raw, kind))
	}
	return titles, nil
}

// SearchMulti searches movies and TV in one call. Results of other media
// types (people, collections) are dropped.
func (c *Client) SearchMulti(ctx context.Context, query string) ([]models.Title, error) {
	q := url.Values{}
	q.Set("query", query)

	body, err := c.get(ctx, "/search/multi", q)
	if err != nil {
		return nil, err
	}

	var result pagedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var titles []models.Title
	for _, raw := range result.Results {
		kind, err := models.ParseMediaKind(raw.MediaType)
		if err != nil {
			continue
		}
		titles = append(titles, normalize(raw, kind))
	}
	return titles, nil
}

// Genres fetches the genre taxonomy for one media kind. The taxonomy
// changes rarely; callers cache it for the process lifetime.
func (c *Client) Genres(ctx context.Context, kind models.MediaKind) (*models.GenreTaxonomy, error) {
	body, err := c.get(ctx, fmt.Sprintf("/genre/%s/list", kind), nil)
	if err != nil {
		return nil, err
	}

	var result genreListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode genres response: %w", err)
	}
	return models.NewGenreTaxonomy(kind, result.Genres), nil
}

// WatchProviders returns streaming availability for a title in the
// configured region, split by access model. A title with no availability
// yields empty lists, not an error.
func (c *Client) WatchProviders(ctx context.Context, titleID int, kind models.MediaKind) (*models.WatchProviders, error) {
	body, err := c.get(ctx, fmt.Sprintf("/%s/%d/watch/providers", kind, titleID), nil)
	if err != nil {
		return nil, err
	}

	var result providersResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode providers response: %w", err)
	}

	out := &models.WatchProviders{Flatrate: []models.ProviderLogo{}, Free: []models.ProviderLogo{}}
	region, ok := result.Results[c.region]
	if !ok {
		return out, nil
	}
	for _, p := range region.Flatrate {
		out.Flatrate = append(out.Flatrate, models.ProviderLogo{Name: p.ProviderName, LogoRef: p.LogoPath})
	}
	for _, p := range region.Free {
		out.Free = append(out.Free, models.ProviderLogo{Name: p.ProviderName, LogoRef: p.LogoPath})
	}
	return out, nil
}

// TitleDetails fetches full details for one title, for refreshing a
// denormalized snapshot. Detail responses carry expanded genre objects
// instead of ids; they are flattened back to ids here.
func (c *Client) TitleDetails(ctx context.Context, titleID int, kind models.MediaKind) (*models.Title, error) {
	body, err := c.get(ctx, fmt.Sprintf("/%s/%d", kind, titleID), nil)
	if err != nil {
		return nil, err
	}

	var raw rawTitle
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode title detail response: %w", err)
	}

	title := normalize(raw, kind)
	if len(title.GenreIDs) == 0 && len(raw.Genres) > 0 {
		for _, g := range raw.Genres {
			title.GenreIDs = append(title.GenreIDs, g.ID)
		}
	}
	return &title, nil
}

// get performs one rate-limited, breaker-guarded GET and returns the
// response body.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	fullURL := c.baseURL + path + "?" + q.Encode()

	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}

		slog.Debug("fetching TMDB", "path", path)
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("TMDB API returned status %d: %s", resp.StatusCode, string(body))
		}
		return body, nil
	})
}

func joinIDs(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}
