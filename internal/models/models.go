package models

import (
	"fmt"
	"strconv"
)

// MediaKind distinguishes movies from TV series. TMDB draws movie and TV
// ids from independent namespaces, so a title is only identified by the
// (id, kind) pair.
type MediaKind string

const (
	MediaMovie MediaKind = "movie"
	MediaTV    MediaKind = "tv"
)

// ParseMediaKind normalizes the kind values seen in requests and in
// legacy history rows ("Movie", "tv", "TV Shows", ...).
func ParseMediaKind(s string) (MediaKind, error) {
	switch s {
	case "movie", "Movie", "movies", "Movies":
		return MediaMovie, nil
	case "tv", "TV", "series", "Series", "tv_show", "TV Shows":
		return MediaTV, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Valid reports whether k is one of the two supported kinds.
func (k MediaKind) Valid() bool {
	return k == MediaMovie || k == MediaTV
}

// Title is a movie or TV entity normalized from the catalog. Movie and TV
// responses use different field names upstream (title/name,
// release_date/first_air_date); normalization happens once in the catalog
// client, never at consumption sites.
type Title struct {
	ID          int       `json:"id"`
	Kind        MediaKind `json:"kind"`
	Name        string    `json:"name"`
	ReleaseDate string    `json:"release_date,omitempty"`
	PosterRef   string    `json:"poster_ref,omitempty"`
	Overview    string    `json:"overview,omitempty"`
	// ExternalRating is the catalog quality score on the canonical
	// 0-100 scale. TMDB reports 0-10; the catalog client scales it
	// exactly once.
	ExternalRating float64 `json:"external_rating"`
	Popularity     float64 `json:"popularity"`
	GenreIDs       []int   `json:"genre_ids,omitempty"`
}

// Genre is one entry of the catalog genre taxonomy.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreTaxonomy maps genre id <-> genre name for one media kind. The
// mapping is a bijection within a kind and changes rarely, so it is cached
// for the process lifetime.
type GenreTaxonomy struct {
	Kind   MediaKind `json:"kind"`
	Genres []Genre   `json:"genres"`

	byID   map[int]string
	byName map[string]int
}

// NewGenreTaxonomy builds the lookup indexes for a genre list.
func NewGenreTaxonomy(kind MediaKind, genres []Genre) *GenreTaxonomy {
	t := &GenreTaxonomy{
		Kind:   kind,
		Genres: genres,
		byID:   make(map[int]string, len(genres)),
		byName: make(map[string]int, len(genres)),
	}
	for _, g := range genres {
		t.byID[g.ID] = g.Name
		t.byName[g.Name] = g.ID
	}
	return t
}

// NameOf resolves a genre id to its display name.
func (t *GenreTaxonomy) NameOf(id int) (string, bool) {
	if t == nil {
		return "", false
	}
	name, ok := t.byID[id]
	return name, ok
}

// IDOf resolves a genre display name to its catalog id.
func (t *GenreTaxonomy) IDOf(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	id, ok := t.byName[name]
	return id, ok
}

// ActivityRecord is one persisted fact: user U rated title T with score S
// on date D. Title name, poster and genres are denormalized snapshots
// taken at logging time and never refreshed. Records are append-only; a
// re-rating produces a second record.
type ActivityRecord struct {
	User      string    `json:"user"`
	TitleID   int       `json:"title_id"`
	Kind      MediaKind `json:"kind"`
	TitleName string    `json:"title"`
	PosterRef string    `json:"poster_ref,omitempty"`
	// Genres is the raw denormalized genre field. New rows use the
	// canonical comma-joined id list; legacy rows may hold joined names
	// or bracket-stringified lists. Parse with ParseGenreField.
	Genres string `json:"genres"`
	// Rating is kept as the raw stored token. Valid values are integers
	// 1-100; historical rows may hold garbage, which aggregate math
	// excludes rather than coerces.
	Rating   string `json:"rating"`
	LoggedAt string `json:"logged_at"`
}

// RatingValue parses the stored rating token. ok is false when the token
// is not a whole number in [1, 100].
func (r ActivityRecord) RatingValue() (int, bool) {
	v, err := strconv.Atoi(r.Rating)
	if err != nil || v < RatingMin || v > RatingMax {
		return 0, false
	}
	return v, true
}

// HiddenMark is one persisted fact: user U asked to stop seeing title T.
// Append-only, independent of whether the title was ever rated.
type HiddenMark struct {
	User    string `json:"user"`
	TitleID int    `json:"title_id"`
	// Kind scopes the mark to one media kind. Legacy rows without a
	// kind column apply to both kinds (movie and TV ids collide
	// numerically, so over-hiding beats resurfacing).
	Kind     MediaKind `json:"kind,omitempty"`
	MarkedAt string    `json:"marked_at"`
}

// AppliesTo reports whether the mark excludes titles of the given kind.
func (m HiddenMark) AppliesTo(kind MediaKind) bool {
	return m.Kind == "" || m.Kind == kind
}

// UserProfile identifies one household member. Seed genres are optional
// onboarding data and double as that user's fallback genre list.
type UserProfile struct {
	Name       string   `json:"name"`
	SeedGenres []string `json:"seed_genres,omitempty"`
	SeedTitles []string `json:"seed_titles,omitempty"`
	CreatedAt  string   `json:"created_at,omitempty"`
}

// ProviderLogo is an opaque reference to a streaming provider's logo.
type ProviderLogo struct {
	Name    string `json:"name"`
	LogoRef string `json:"logo_ref,omitempty"`
}

// WatchProviders splits availability by access model, matching the
// catalog's flatrate/free grouping for the fixed US region.
type WatchProviders struct {
	Flatrate []ProviderLogo `json:"flatrate"`
	Free     []ProviderLogo `json:"free"`
}

// Canonical rating scale. Some early history rows were logged on 1-10;
// they are read literally, not rescaled.
const (
	RatingMin = 1
	RatingMax = 100
)

// DateLayout is the date format used for logged_at / marked_at columns.
const DateLayout = "2006-01-02"
