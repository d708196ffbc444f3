package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsmith8642/cinematch/internal/models"
	"github.com/joshsmith8642/cinematch/internal/preference"
)

// mockCatalog implements Catalog for testing. Pages are keyed by page
// number; an unlisted page returns empty.
type mockCatalog struct {
	pages      map[int][]models.Title
	err        error
	calls      int
	lastKind   models.MediaKind
	lastGenres []int
	lastProvs  []int
	lastPage   int
}

func (m *mockCatalog) Discover(_ context.Context, kind models.MediaKind, genreIDs, providerIDs []int, page int) ([]models.Title, error) {
	m.calls++
	m.lastKind = kind
	m.lastGenres = genreIDs
	m.lastProvs = providerIDs
	m.lastPage = page
	if m.err != nil {
		return nil, m.err
	}
	return m.pages[page], nil
}

func title(id int, name string) models.Title {
	return models.Title{ID: id, Kind: models.MediaMovie, Name: name}
}

func TestBuildExclusionSet(t *testing.T) {
	records := []models.ActivityRecord{
		{User: "Me", TitleID: 1, Kind: models.MediaMovie},
		{User: "Me", TitleID: 2, Kind: models.MediaTV},
		{User: "Me", TitleID: 3, Kind: models.MediaMovie},
	}
	marks := []models.HiddenMark{
		{User: "Me", TitleID: 4, Kind: models.MediaMovie},
		{User: "Me", TitleID: 5, Kind: models.MediaTV},
		{User: "Me", TitleID: 6}, // legacy, kind-less
	}

	excl := BuildExclusionSet(records, marks, models.MediaMovie)

	assert.True(t, excl.Contains(1))
	assert.True(t, excl.Contains(3))
	assert.True(t, excl.Contains(4))
	assert.True(t, excl.Contains(6))
	// TV entries never leak into the movie exclusion set.
	assert.False(t, excl.Contains(2))
	assert.False(t, excl.Contains(5))
}

func TestFetchCandidatesExclusionInvariant(t *testing.T) {
	catalog := &mockCatalog{pages: map[int][]models.Title{
		1: {title(1, "seen"), title(2, "fresh"), title(3, "hidden"), title(4, "fresh too")},
	}}
	engine := NewEngine(catalog)
	excl := ExclusionSet{1: {}, 3: {}}

	got := engine.FetchCandidates(context.Background(), 28, models.MediaMovie, nil, 1, excl)

	require.Len(t, got, 2)
	// Popularity order from the catalog is preserved, no re-ranking.
	assert.Equal(t, 2, got[0].ID)
	assert.Equal(t, 4, got[1].ID)

	// Repeated calls never resurface an excluded id.
	for i := 0; i < 3; i++ {
		for _, title := range engine.FetchCandidates(context.Background(), 28, models.MediaMovie, nil, 1, excl) {
			assert.False(t, excl.Contains(title.ID))
		}
	}
}

func TestFetchCandidatesPassesFilters(t *testing.T) {
	catalog := &mockCatalog{}
	engine := NewEngine(catalog)

	engine.FetchCandidates(context.Background(), 28, models.MediaTV, []int{8, 337}, 2, nil)

	assert.Equal(t, models.MediaTV, catalog.lastKind)
	assert.Equal(t, []int{28}, catalog.lastGenres)
	assert.Equal(t, []int{8, 337}, catalog.lastProvs)
	assert.Equal(t, 2, catalog.lastPage)
}

func TestFetchCandidatesCatalogFailureYieldsEmptyRow(t *testing.T) {
	catalog := &mockCatalog{err: errors.New("boom")}
	engine := NewEngine(catalog)

	got := engine.FetchCandidates(context.Background(), 28, models.MediaMovie, nil, 1, nil)

	assert.Empty(t, got)
}

func TestFetchCandidatesPanicsWithoutGenre(t *testing.T) {
	engine := NewEngine(&mockCatalog{})
	assert.Panics(t, func() {
		engine.FetchCandidates(context.Background(), 0, models.MediaMovie, nil, 1, nil)
	})
}

func TestRankGenresForUserFallbackOnly(t *testing.T) {
	engine := NewEngine(&mockCatalog{})
	fallback := []string{"Drama", "Thriller", "Comedy", "Horror", "Romance"}

	got := engine.RankGenresForUser(preference.Profile{}, fallback, 5)

	// Empty profile: exactly the fallback list in its given order.
	assert.Equal(t, fallback, got)
}

func TestRankGenresForUserBackfill(t *testing.T) {
	engine := NewEngine(&mockCatalog{})
	profile := preference.Compute([]models.ActivityRecord{
		{Kind: models.MediaMovie, Genres: "Action", Rating: "90"},
		{Kind: models.MediaMovie, Genres: "Action", Rating: "80"},
		{Kind: models.MediaMovie, Genres: "Comedy", Rating: "40"},
	}, nil)
	fallback := []string{"Drama", "Comedy", "Thriller", "Horror", "Romance"}

	got := engine.RankGenresForUser(profile, fallback, 5)

	// Preferred genres first by descending average, then fallback
	// entries not already selected.
	assert.Equal(t, []string{"Action", "Comedy", "Drama", "Thriller", "Horror"}, got)
}

func TestRankGenresForUserEndToEndScenario(t *testing.T) {
	profile := preference.Compute([]models.ActivityRecord{
		{Kind: models.MediaMovie, Genres: "Action", Rating: "90"},
		{Kind: models.MediaMovie, Genres: "Action", Rating: "80"},
		{Kind: models.MediaMovie, Genres: "Comedy", Rating: "40"},
	}, nil)

	require.Equal(t, 85.0, profile.Averages()["Action"])
	require.Equal(t, 40.0, profile.Averages()["Comedy"])

	engine := NewEngine(&mockCatalog{})
	got := engine.RankGenresForUser(profile, []string{"Drama", "Thriller"}, 3)

	assert.Equal(t, []string{"Action", "Comedy", "Drama"}, got)
}

func TestRankGenresForUserTruncates(t *testing.T) {
	engine := NewEngine(&mockCatalog{})
	got := engine.RankGenresForUser(preference.Profile{}, []string{"A", "B", "C"}, 2)
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestRankGenresForUserDeterminism(t *testing.T) {
	engine := NewEngine(&mockCatalog{})
	profile := preference.Compute([]models.ActivityRecord{
		{Kind: models.MediaMovie, Genres: "Action, Drama", Rating: "70"},
		{Kind: models.MediaMovie, Genres: "Comedy", Rating: "70"},
	}, nil)
	fallback := []string{"Horror", "Romance"}

	first := engine.RankGenresForUser(profile, fallback, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, engine.RankGenresForUser(profile, fallback, 5))
	}
}

func TestPaginateAndDeduplicate(t *testing.T) {
	pageOne := []models.Title{title(1, "a"), title(2, "b")}
	// Upstream pagination overlaps: id 2 reappears on page two.
	pageTwo := []models.Title{title(2, "b"), title(3, "c")}

	toAppend, ids := PaginateAndDeduplicate(nil, pageOne)
	require.Len(t, toAppend, 2)

	toAppend, ids = PaginateAndDeduplicate(ids, pageTwo)
	require.Len(t, toAppend, 1)
	assert.Equal(t, 3, toAppend[0].ID)
	assert.Len(t, ids, 3)

	// Idempotence: replaying the same page yields nothing new.
	toAppend, ids = PaginateAndDeduplicate(ids, pageTwo)
	assert.Empty(t, toAppend)
	assert.Len(t, ids, 3)
}
