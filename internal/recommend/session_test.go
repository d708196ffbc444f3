package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsmith8642/cinematch/internal/models"
)

func movieFilter(genreID int) Filter {
	return Filter{Kind: models.MediaMovie, GenreID: genreID}
}

func TestNormalizeProviders(t *testing.T) {
	assert.Equal(t, "", NormalizeProviders(nil))
	assert.Equal(t, "8|337", NormalizeProviders([]int{337, 8}))
	assert.Equal(t, "8|337", NormalizeProviders([]int{8, 337}))

	f := Filter{Providers: "8|337"}
	assert.Equal(t, []int{8, 337}, f.ProviderIDs())
	assert.Nil(t, Filter{}.ProviderIDs())
}

func TestSessionLoadMoreAccumulates(t *testing.T) {
	catalog := &mockCatalog{pages: map[int][]models.Title{
		1: {title(1, "a"), title(2, "b")},
		2: {title(2, "b"), title(3, "c")}, // overlapping page boundary
	}}
	engine := NewEngine(catalog)
	mgr := NewSessionManager()

	s := mgr.Acquire("", movieFilter(28))
	require.NotEmpty(t, s.ID())
	assert.Equal(t, StateEmpty, s.StateNow())

	got, state := s.LoadMore(context.Background(), engine, nil)
	assert.Equal(t, StateLoaded, state)
	require.Len(t, got, 2)

	got, state = s.LoadMore(context.Background(), engine, nil)
	assert.Equal(t, StateLoaded, state)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ID)

	// Page 3 is empty upstream: the filter combination is exhausted.
	got, state = s.LoadMore(context.Background(), engine, nil)
	assert.Empty(t, got)
	assert.Equal(t, StateExhausted, state)

	// Exhausted is terminal: no further catalog calls are made.
	calls := catalog.calls
	got, state = s.LoadMore(context.Background(), engine, nil)
	assert.Empty(t, got)
	assert.Equal(t, StateExhausted, state)
	assert.Equal(t, calls, catalog.calls)
}

func TestSessionNoDuplicatesAcrossPages(t *testing.T) {
	catalog := &mockCatalog{pages: map[int][]models.Title{
		1: {title(1, "a"), title(2, "b")},
		2: {title(1, "a"), title(2, "b"), title(3, "c")},
		3: {title(3, "c"), title(1, "a")},
	}}
	engine := NewEngine(catalog)
	s := NewSessionManager().Acquire("", movieFilter(28))

	seen := make(map[int]int)
	for i := 0; i < 5; i++ {
		got, state := s.LoadMore(context.Background(), engine, nil)
		for _, title := range got {
			seen[title.ID]++
		}
		if state == StateExhausted {
			break
		}
	}

	for id, n := range seen {
		assert.Equal(t, 1, n, "title %d delivered more than once", id)
	}
}

func TestSessionFilterChangeResets(t *testing.T) {
	catalog := &mockCatalog{pages: map[int][]models.Title{
		1: {title(1, "a"), title(2, "b")},
	}}
	engine := NewEngine(catalog)
	mgr := NewSessionManager()

	s := mgr.Acquire("", movieFilter(28))
	got, _ := s.LoadMore(context.Background(), engine, nil)
	require.Len(t, got, 2)

	// Same ids exist under the new genre; a changed filter must not
	// inherit the old accumulated id set.
	s2 := mgr.Acquire(s.ID(), movieFilter(35))
	assert.Same(t, s, s2)
	assert.Equal(t, StateEmpty, s2.StateNow())

	got, state := s2.LoadMore(context.Background(), engine, nil)
	assert.Equal(t, StateLoaded, state)
	assert.Len(t, got, 2)
}

func TestSessionFilterResetOnAnyElement(t *testing.T) {
	base := Filter{Kind: models.MediaMovie, GenreID: 28, Providers: "8", Sort: "popularity"}
	changed := []Filter{
		{Kind: models.MediaTV, GenreID: 28, Providers: "8", Sort: "popularity"},
		{Kind: models.MediaMovie, GenreID: 35, Providers: "8", Sort: "popularity"},
		{Kind: models.MediaMovie, GenreID: 28, Providers: "8|337", Sort: "popularity"},
		{Kind: models.MediaMovie, GenreID: 28, Providers: "8", Sort: "rating"},
	}

	catalog := &mockCatalog{pages: map[int][]models.Title{1: {title(1, "a")}}}
	engine := NewEngine(catalog)

	for _, f := range changed {
		mgr := NewSessionManager()
		s := mgr.Acquire("", base)
		_, state := s.LoadMore(context.Background(), engine, nil)
		require.Equal(t, StateLoaded, state)

		s = mgr.Acquire(s.ID(), f)
		assert.Equal(t, StateEmpty, s.StateNow(), "filter %+v should reset the session", f)
	}
}

func TestSessionUnchangedFilterKeepsState(t *testing.T) {
	catalog := &mockCatalog{pages: map[int][]models.Title{1: {title(1, "a")}}}
	engine := NewEngine(catalog)
	mgr := NewSessionManager()

	s := mgr.Acquire("", movieFilter(28))
	s.LoadMore(context.Background(), engine, nil)

	s2 := mgr.Acquire(s.ID(), movieFilter(28))
	assert.Equal(t, StateLoaded, s2.StateNow())
}

func TestSessionManagerUnknownIDCreatesFresh(t *testing.T) {
	mgr := NewSessionManager()
	s := mgr.Acquire("no-such-session", movieFilter(28))
	assert.NotEqual(t, "no-such-session", s.ID())
	assert.Equal(t, StateEmpty, s.StateNow())
}

func TestSessionManagerDrop(t *testing.T) {
	mgr := NewSessionManager()
	s := mgr.Acquire("", movieFilter(28))
	mgr.Drop(s.ID())

	s2 := mgr.Acquire(s.ID(), movieFilter(28))
	assert.NotSame(t, s, s2)
}

func TestSessionManagerEvictsIdleSessions(t *testing.T) {
	now := time.Now()
	mgr := NewSessionManager()
	mgr.now = func() time.Time { return now }

	s := mgr.Acquire("", movieFilter(28))

	// Still within the TTL: the session survives and is reused.
	now = now.Add(sessionTTL)
	s2 := mgr.Acquire(s.ID(), movieFilter(28))
	assert.Same(t, s, s2)

	// Past the TTL: the id is gone and a fresh session takes its place.
	now = now.Add(sessionTTL + time.Minute)
	s3 := mgr.Acquire(s.ID(), movieFilter(28))
	assert.NotSame(t, s, s3)
	assert.Len(t, mgr.sessions, 1)
}

func TestSessionManagerBoundsTableSize(t *testing.T) {
	mgr := NewSessionManager()

	// Anonymous acquires (no echoed id) must not grow the table without
	// bound: the least recently used session gives way at capacity.
	for i := 0; i < maxSessions+100; i++ {
		mgr.Acquire("", movieFilter(28))
	}
	assert.LessOrEqual(t, len(mgr.sessions), maxSessions)
}

func TestSessionManagerEvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Now()
	mgr := NewSessionManager()
	mgr.now = func() time.Time { return now }

	oldest := mgr.Acquire("", movieFilter(28))
	for i := 1; i < maxSessions; i++ {
		now = now.Add(time.Second)
		mgr.Acquire("", movieFilter(28))
	}

	// The table is full; the next acquire pushes out the oldest entry.
	now = now.Add(time.Second)
	mgr.Acquire("", movieFilter(28))

	replacement := mgr.Acquire(oldest.ID(), movieFilter(28))
	assert.NotSame(t, oldest, replacement)
}

func TestSessionExclusionsApplyPerPage(t *testing.T) {
	catalog := &mockCatalog{pages: map[int][]models.Title{
		1: {title(1, "seen"), title(2, "fresh")},
	}}
	engine := NewEngine(catalog)
	s := NewSessionManager().Acquire("", movieFilter(28))

	got, _ := s.LoadMore(context.Background(), engine, ExclusionSet{1: {}})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ID)
}
