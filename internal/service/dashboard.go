// Package service orchestrates the dashboard flows: discover rows,
// incremental load-more, search and log, history, stats, and providers.
// Derived state (preferences, exclusion sets, rankings) is recomputed
// fresh on every request; only browse sessions persist between calls.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joshsmith8642/cinematch/internal/config"
	"github.com/joshsmith8642/cinematch/internal/history"
	"github.com/joshsmith8642/cinematch/internal/models"
	"github.com/joshsmith8642/cinematch/internal/preference"
	"github.com/joshsmith8642/cinematch/internal/recommend"
	"github.com/joshsmith8642/cinematch/internal/stats"
)

const (
	taxonomyCacheTTL  = 24 * time.Hour
	providersCacheTTL = 6 * time.Hour
)

// Validation and lookup errors surfaced to the handler layer.
var (
	ErrInvalidRating   = errors.New("rating must be an integer between 1 and 100")
	ErrInvalidKind     = errors.New("invalid media kind")
	ErrProfileExists   = errors.New("profile already exists")
	ErrProfileRequired = errors.New("profile name is required")
)

// Catalog is the full catalog client surface the dashboard consumes. The
// concrete implementation is the TMDB client; tests swap in a fake.
type Catalog interface {
	recommend.Catalog
	SearchMulti(ctx context.Context, query string) ([]models.Title, error)
	Genres(ctx context.Context, kind models.MediaKind) (*models.GenreTaxonomy, error)
	WatchProviders(ctx context.Context, titleID int, kind models.MediaKind) (*models.WatchProviders, error)
	TitleDetails(ctx context.Context, titleID int, kind models.MediaKind) (*models.Title, error)
}

// Dashboard wires the history store, catalog client, and recommendation
// engine together behind the HTTP handlers.
type Dashboard struct {
	store    history.Store
	catalog  Catalog
	engine   *recommend.Engine
	sessions *recommend.SessionManager
	redis    *redis.Client
	cfg      config.RecommendConfig
	binWidth int

	// Genre taxonomies are cached for the process lifetime.
	taxMu      sync.Mutex
	taxonomies map[models.MediaKind]*models.GenreTaxonomy

	now func() time.Time
}

// NewDashboard creates the dashboard service. rdb may be nil; the service
// then runs without the Redis cache layer.
func NewDashboard(store history.Store, catalog Catalog, rdb *redis.Client, cfg config.RecommendConfig, statsCfg config.StatsConfig) *Dashboard {
	return &Dashboard{
		store:      store,
		catalog:    catalog,
		engine:     recommend.NewEngine(catalog),
		sessions:   recommend.NewSessionManager(),
		redis:      rdb,
		cfg:        cfg,
		binWidth:   statsCfg.HistogramBinWidth,
		taxonomies: make(map[models.MediaKind]*models.GenreTaxonomy),
		now:        time.Now,
	}
}

// Taxonomy returns the genre taxonomy for a kind, fetching it at most
// once per process lifetime.
func (d *Dashboard) Taxonomy(ctx context.Context, kind models.MediaKind) (*models.GenreTaxonomy, error) {
	d.taxMu.Lock()
	defer d.taxMu.Unlock()

	if tax, ok := d.taxonomies[kind]; ok {
		return tax, nil
	}

	// Redis survives restarts; check it before hitting the catalog.
	cacheKey := fmt.Sprintf("cinematch:taxonomy:%s", kind)
	if cached, err := d.getFromCache(ctx, cacheKey); err == nil {
		var genres []models.Genre
		if json.Unmarshal([]byte(cached), &genres) == nil && len(genres) > 0 {
			tax := models.NewGenreTaxonomy(kind, genres)
			d.taxonomies[kind] = tax
			return tax, nil
		}
	}

	tax, err := d.catalog.Genres(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("fetch genre taxonomy: %w", err)
	}
	d.taxonomies[kind] = tax

	if data, err := json.Marshal(tax.Genres); err == nil {
		d.setCache(ctx, cacheKey, string(data), taxonomyCacheTTL)
	}
	return tax, nil
}

// Discover builds the discover view: up to MaxRows genre rows ranked by
// the user's derived preferences, each holding the first filtered page,
// plus the deterministic comfort-rewatch picks. A row whose catalog fetch
// fails comes back empty rather than failing the view.
func (d *Dashboard) Discover(ctx context.Context, user string, kind models.MediaKind, providerIDs []int, maxRows int) (*models.DiscoverResponse, error) {
	if maxRows <= 0 || maxRows > 10 {
		maxRows = d.cfg.MaxRows
	}

	records, err := d.store.Activity(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	marks, err := d.store.Hidden(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("read hidden marks: %w", err)
	}

	tax, err := d.Taxonomy(ctx, kind)
	if err != nil {
		return nil, err
	}

	kindRecords := filterKind(records, kind)
	profile := preference.Compute(kindRecords, tax)
	excl := recommend.BuildExclusionSet(records, marks, kind)

	genres := d.engine.RankGenresForUser(profile, d.fallbackGenres(ctx, user), maxRows)

	resp := &models.DiscoverResponse{User: user, Kind: kind, Rows: []models.GenreRow{}}
	for _, name := range genres {
		genreID, ok := tax.IDOf(name)
		if !ok {
			slog.Debug("skipping genre with no taxonomy entry", "genre", name, "kind", kind)
			continue
		}
		titles := d.engine.FetchCandidates(ctx, genreID, kind, providerIDs, 1, excl)
		if titles == nil {
			titles = []models.Title{}
		}
		resp.Rows = append(resp.Rows, models.GenreRow{GenreID: genreID, GenreName: name, Titles: titles})
	}

	resp.Rewatch = d.rewatchPicks(kindRecords)
	return resp, nil
}

// LoadMore advances one genre row's browse session by a page and returns
// only titles not already delivered under the current filter combination.
func (d *Dashboard) LoadMore(ctx context.Context, user string, req models.LoadMoreRequest) (*models.LoadMoreResponse, error) {
	kind, err := models.ParseMediaKind(req.Kind)
	if err != nil {
		return nil, ErrInvalidKind
	}
	if req.GenreID <= 0 {
		return nil, fmt.Errorf("genre_id is required")
	}

	records, err := d.store.Activity(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	marks, err := d.store.Hidden(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("read hidden marks: %w", err)
	}
	excl := recommend.BuildExclusionSet(records, marks, kind)

	filter := recommend.Filter{
		Kind:      kind,
		GenreID:   req.GenreID,
		Providers: recommend.NormalizeProviders(req.ProviderIDs),
		Sort:      req.Sort,
	}
	session := d.sessions.Acquire(req.SessionID, filter)
	toAppend, state := session.LoadMore(ctx, d.engine, excl)
	if toAppend == nil {
		toAppend = []models.Title{}
	}
	// Exhausted is terminal for this filter combination; the returned
	// state tells the client to stop, so the session has no further use.
	if state == recommend.StateExhausted {
		d.sessions.Drop(session.ID())
	}

	return &models.LoadMoreResponse{
		SessionID: session.ID(),
		State:     string(state),
		ToAppend:  toAppend,
	}, nil
}

// Search runs a multi search and returns normalized movie/TV titles.
func (d *Dashboard) Search(ctx context.Context, query string) ([]models.Title, error) {
	titles, err := d.catalog.SearchMulti(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	if titles == nil {
		titles = []models.Title{}
	}
	return titles, nil
}

// Log appends one activity record per (profile, rating) pair. The genre
// snapshot is written in the canonical id-list format; a failed write is
// reported loudly since silently losing a rating is data loss.
func (d *Dashboard) Log(ctx context.Context, req models.LogRequest) error {
	kind, err := models.ParseMediaKind(req.Kind)
	if err != nil {
		return ErrInvalidKind
	}
	if req.TitleID <= 0 {
		return fmt.Errorf("title_id is required")
	}
	if len(req.Ratings) == 0 {
		return fmt.Errorf("at least one rating is required")
	}
	for _, rating := range req.Ratings {
		if rating < models.RatingMin || rating > models.RatingMax {
			return ErrInvalidRating
		}
	}

	name := req.TitleName
	poster := req.PosterRef
	genreIDs := req.GenreIDs
	if name == "" || len(genreIDs) == 0 {
		// Refresh the snapshot from the catalog when the client sent a
		// bare id. Best effort: a log with a thin snapshot still beats
		// a rejected log.
		if detail, err := d.catalog.TitleDetails(ctx, req.TitleID, kind); err == nil {
			if name == "" {
				name = detail.Name
			}
			if poster == "" {
				poster = detail.PosterRef
			}
			if len(genreIDs) == 0 {
				genreIDs = detail.GenreIDs
			}
		} else {
			slog.Warn("could not refresh title snapshot for log", "title_id", req.TitleID, "error", err)
		}
	}

	today := d.now().Format(models.DateLayout)
	genreField := models.EncodeGenreIDs(genreIDs)

	// Deterministic row order for multi-profile submits.
	users := make([]string, 0, len(req.Ratings))
	for user := range req.Ratings {
		users = append(users, user)
	}
	sort.Strings(users)

	records := make([]models.ActivityRecord, 0, len(users))
	for _, user := range users {
		records = append(records, models.ActivityRecord{
			User:      user,
			TitleID:   req.TitleID,
			Kind:      kind,
			TitleName: name,
			PosterRef: poster,
			Genres:    genreField,
			Rating:    fmt.Sprintf("%d", req.Ratings[user]),
			LoggedAt:  today,
		})
	}

	if err := d.store.AppendActivity(ctx, records...); err != nil {
		return fmt.Errorf("append activity records: %w", err)
	}
	return nil
}

// Hide appends a hidden mark so the title never reappears in the user's
// recommendations for that kind.
func (d *Dashboard) Hide(ctx context.Context, user string, req models.HideRequest) error {
	kind, err := models.ParseMediaKind(req.Kind)
	if err != nil {
		return ErrInvalidKind
	}
	if req.TitleID <= 0 {
		return fmt.Errorf("title_id is required")
	}

	mark := models.HiddenMark{
		User:     user,
		TitleID:  req.TitleID,
		Kind:     kind,
		MarkedAt: d.now().Format(models.DateLayout),
	}
	if err := d.store.AppendHidden(ctx, mark); err != nil {
		return fmt.Errorf("append hidden mark: %w", err)
	}
	return nil
}

// History returns a user's activity records, optionally scoped to a kind.
func (d *Dashboard) History(ctx context.Context, user string, kind models.MediaKind) ([]models.ActivityRecord, error) {
	records, err := d.store.Activity(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	if kind.Valid() {
		records = filterKind(records, kind)
	}
	if records == nil {
		records = []models.ActivityRecord{}
	}
	return records, nil
}

// Stats aggregates a user's history, optionally scoped to a kind.
func (d *Dashboard) Stats(ctx context.Context, user string, kind models.MediaKind) (*stats.Summary, error) {
	records, err := d.History(ctx, user, kind)
	if err != nil {
		return nil, err
	}
	summary := stats.Compute(records, d.binWidth)
	return &summary, nil
}

// Providers returns streaming availability for a title, cached in Redis.
func (d *Dashboard) Providers(ctx context.Context, titleID int, kind models.MediaKind) (*models.WatchProviders, error) {
	cacheKey := fmt.Sprintf("cinematch:providers:%s:%d", kind, titleID)
	if cached, err := d.getFromCache(ctx, cacheKey); err == nil {
		var wp models.WatchProviders
		if json.Unmarshal([]byte(cached), &wp) == nil {
			return &wp, nil
		}
	}

	wp, err := d.catalog.WatchProviders(ctx, titleID, kind)
	if err != nil {
		return nil, fmt.Errorf("fetch watch providers: %w", err)
	}

	if data, err := json.Marshal(wp); err == nil {
		d.setCache(ctx, cacheKey, string(data), providersCacheTTL)
	}
	return wp, nil
}

// CreateProfile registers a household member.
func (d *Dashboard) CreateProfile(ctx context.Context, req models.CreateProfileRequest) (*models.UserProfile, error) {
	if req.Name == "" {
		return nil, ErrProfileRequired
	}

	existing, err := d.store.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	for _, p := range existing {
		if p.Name == req.Name {
			return nil, ErrProfileExists
		}
	}

	profile := models.UserProfile{
		Name:       req.Name,
		SeedGenres: req.SeedGenres,
		SeedTitles: req.SeedTitles,
		CreatedAt:  d.now().Format(models.DateLayout),
	}
	if err := d.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return &profile, nil
}

// Profiles lists household members.
func (d *Dashboard) Profiles(ctx context.Context) ([]models.UserProfile, error) {
	profiles, err := d.store.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	if profiles == nil {
		profiles = []models.UserProfile{}
	}
	return profiles, nil
}

// FlushCache clears the service's Redis keys after external edits to the
// spreadsheet or a taxonomy change.
func (d *Dashboard) FlushCache(ctx context.Context) {
	d.taxMu.Lock()
	d.taxonomies = make(map[models.MediaKind]*models.GenreTaxonomy)
	d.taxMu.Unlock()

	if d.redis == nil {
		return
	}
	iter := d.redis.Scan(ctx, 0, "cinematch:*", 0).Iterator()
	for iter.Next(ctx) {
		d.redis.Del(ctx, iter.Val())
	}
	slog.Info("cache flushed")
}

// fallbackGenres returns the user's seed genres when present, else the
// configured default list.
func (d *Dashboard) fallbackGenres(ctx context.Context, user string) []string {
	profiles, err := d.store.Profiles(ctx)
	if err != nil {
		slog.Warn("could not read profiles for fallback genres", "error", err)
		return d.cfg.DefaultGenres
	}
	for _, p := range profiles {
		if p.Name == user && len(p.SeedGenres) > 0 {
			return p.SeedGenres
		}
	}
	return d.cfg.DefaultGenres
}

// rewatchPicks selects high-rated titles from the user's own history:
// top-rated first, ties in log order, deduplicated by title id.
func (d *Dashboard) rewatchPicks(records []models.ActivityRecord) []models.Title {
	type rated struct {
		rec    models.ActivityRecord
		rating int
	}
	var qualified []rated
	seen := make(map[int]struct{})
	for _, rec := range records {
		rating, ok := rec.RatingValue()
		if !ok || rating < d.cfg.RewatchThreshold {
			continue
		}
		if _, dup := seen[rec.TitleID]; dup {
			continue
		}
		seen[rec.TitleID] = struct{}{}
		qualified = append(qualified, rated{rec: rec, rating: rating})
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].rating > qualified[j].rating
	})

	count := d.cfg.RewatchCount
	if count <= 0 {
		count = 4
	}
	if len(qualified) > count {
		qualified = qualified[:count]
	}

	picks := make([]models.Title, 0, len(qualified))
	for _, q := range qualified {
		picks = append(picks, models.Title{
			ID:        q.rec.TitleID,
			Kind:      q.rec.Kind,
			Name:      q.rec.TitleName,
			PosterRef: q.rec.PosterRef,
		})
	}
	return picks
}

func filterKind(records []models.ActivityRecord, kind models.MediaKind) []models.ActivityRecord {
	var out []models.ActivityRecord
	for _, rec := range records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

// ---- Redis helpers ----

func (d *Dashboard) getFromCache(ctx context.Context, key string) (string, error) {
	if d.redis == nil {
		return "", fmt.Errorf("redis not available")
	}
	return d.redis.Get(ctx, key).Result()
}

func (d *Dashboard) setCache(ctx context.Context, key, value string, ttl time.Duration) {
	if d.redis == nil {
		return
	}
	if err := d.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Error("failed to set cache", "key", key, "error", err)
	}
}
