package recommend

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// State of a browse session for one filter combination.
type State string

const (
	StateEmpty     State = "empty"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateExhausted State = "exhausted"
)

// Filter is the combination that scopes one browse session. Any change to
// any element invalidates the accumulated page cache: the catalog query
// itself changed, so prior pages say nothing about the new result space.
type Filter struct {
	Kind      models.MediaKind `json:"kind"`
	GenreID   int              `json:"genre_id"`
	Providers string           `json:"providers,omitempty"`
	Sort      string           `json:"sort,omitempty"`
}

// NormalizeProviders renders a provider id set as a canonical pipe-joined
// key so that the same selection always produces the same filter, whatever
// order the client sends it in.
func NormalizeProviders(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "|")
}

// ProviderIDs parses the normalized provider key back into ids.
func (f Filter) ProviderIDs() []int {
	if f.Providers == "" {
		return nil
	}
	var ids []int
	for _, p := range strings.Split(f.Providers, "|") {
		if id, err := strconv.Atoi(p); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Session accumulates "load more" pages for one filter combination.
// Calls on one session are serialized by its mutex; the id-dedup merge
// remains the correctness backstop if callers race anyway.
type Session struct {
	mu       sync.Mutex
	id       string
	filter   Filter
	state    State
	page     int
	seen     map[int]struct{}
	lastUsed time.Time
}

// ID returns the session identifier handed back to the client.
func (s *Session) ID() string { return s.id }

// StateNow returns the session state after the most recent merge.
func (s *Session) StateNow() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) reset(f Filter) {
	s.filter = f
	s.state = StateEmpty
	s.page = 0
	s.seen = nil
}

// LoadMore fetches and merges the next page for the session's filter.
// Exhausted sessions return immediately without another catalog query;
// every other call advances the page cursor, filters exclusions, and
// deduplicates against all previously returned ids.
func (s *Session) LoadMore(ctx context.Context, engine *Engine, excl ExclusionSet) ([]models.Title, State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExhausted {
		return nil, StateExhausted
	}

	s.state = StateLoading
	s.page++
	page := engine.FetchCandidates(ctx, s.filter.GenreID, s.filter.Kind, s.filter.ProviderIDs(), s.page, excl)

	toAppend, updated := PaginateAndDeduplicate(s.seen, page)
	s.seen = updated

	if len(toAppend) == 0 {
		s.state = StateExhausted
	} else {
		s.state = StateLoaded
	}
	return toAppend, s.state
}

// Session table bounds. Abandoned sessions (a closed tab, a client that
// never echoes its id back) would otherwise accumulate for the process
// lifetime.
const (
	sessionTTL  = 30 * time.Minute
	maxSessions = 1024
)

// SessionManager owns the browse sessions of the running process, keyed by
// an opaque id the client echoes back on each "load more".
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates an empty session table.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Acquire returns the session for id, creating one when id is empty or
// unknown. A session reused under a different filter combination is reset
// to empty, discarding the accumulated id set. Acquire also evicts idle
// sessions and keeps the table under its size cap.
func (m *SessionManager) Acquire(id string, f Filter) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictLocked(now)

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.mu.Lock()
			if s.filter != f {
				s.reset(f)
			}
			s.lastUsed = now
			s.mu.Unlock()
			return s
		}
	}

	s := &Session{id: uuid.NewString(), lastUsed: now}
	s.reset(f)
	m.sessions[s.id] = s
	return s
}

// evictLocked drops sessions idle past the TTL, then the least recently
// used ones while the table is at capacity. Caller holds m.mu.
func (m *SessionManager) evictLocked(now time.Time) {
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastUsed) > sessionTTL
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
		}
	}

	for len(m.sessions) >= maxSessions {
		var oldestID string
		var oldest time.Time
		for id, s := range m.sessions {
			s.mu.Lock()
			last := s.lastUsed
			s.mu.Unlock()
			if oldestID == "" || last.Before(oldest) {
				oldestID, oldest = id, last
			}
		}
		delete(m.sessions, oldestID)
	}
}

// Drop removes a session, releasing its accumulated id set.
func (m *SessionManager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
