// Package recommend produces ranked, deduplicated candidate lists per
// (user, media kind, genre, provider, page). The engine is stateless
// between calls; per-browse accumulation lives in Session objects owned by
// the caller.
package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshsmith8642/cinematch/internal/models"
	"github.com/joshsmith8642/cinematch/internal/preference"
)

// Catalog is the discovery surface of the catalog client consumed by the
// engine. Multiple genre ids combine with AND semantics, provider ids with
// OR semantics ("any of my services").
type Catalog interface {
	Discover(ctx context.Context, kind models.MediaKind, genreIDs, providerIDs []int, page int) ([]models.Title, error)
}

// ExclusionSet holds the title ids that must never appear in results for
// one (user, media kind): everything watched plus everything hidden.
type ExclusionSet map[int]struct{}

// Contains reports whether a title id is excluded.
func (s ExclusionSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// BuildExclusionSet unions the title ids of a user's activity records and
// hidden marks for one media kind. Records of the other kind never leak in
// (movie and TV ids collide numerically); kind-less legacy hidden marks
// apply to both kinds.
func BuildExclusionSet(records []models.ActivityRecord, marks []models.HiddenMark, kind models.MediaKind) ExclusionSet {
	excl := make(ExclusionSet)
	for _, rec := range records {
		if rec.Kind == kind {
			excl[rec.TitleID] = struct{}{}
		}
	}
	for _, m := range marks {
		if m.AppliesTo(kind) {
			excl[m.TitleID] = struct{}{}
		}
	}
	return excl
}

// Engine combines preference-model output with catalog discovery queries.
type Engine struct {
	catalog Catalog
}

// NewEngine creates an engine over the given catalog.
func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// FetchCandidates returns one filtered page of discovery results for a
// genre-scoped row: the catalog page in its original popularity order with
// every excluded title removed. No re-ranking happens within a page.
//
// A failed or malformed catalog call yields an empty page, not an error;
// recommendation rows are best-effort and the UI offers manual retry. A
// missing genre id is a programming error and panics.
func (e *Engine) FetchCandidates(ctx context.Context, genreID int, kind models.MediaKind, providerIDs []int, page int, excl ExclusionSet) []models.Title {
	if genreID <= 0 {
		panic(fmt.Sprintf("recommend: FetchCandidates called without a genre id (got %d)", genreID))
	}
	if page < 1 {
		page = 1
	}

	titles, err := e.catalog.Discover(ctx, kind, []int{genreID}, providerIDs, page)
	if err != nil {
		slog.Warn("discover page failed, returning empty row",
			"kind", kind, "genre_id", genreID, "page", page, "error", err)
		return nil
	}

	filtered := titles[:0:0]
	for _, t := range titles {
		if excl.Contains(t.ID) {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// RankGenresForUser selects up to maxRows genre names to surface: the
// user's preferred genres by descending average rating, backfilled in
// order from the fallback list, skipping duplicates. Output is fully
// deterministic; the UI re-derives this list on every interaction.
func (e *Engine) RankGenresForUser(profile preference.Profile, fallback []string, maxRows int) []string {
	if maxRows <= 0 {
		return nil
	}

	selected := make([]string, 0, maxRows)
	seen := make(map[string]struct{}, maxRows)

	for _, genre := range profile.Ranked() {
		if len(selected) == maxRows {
			return selected
		}
		if _, dup := seen[genre]; dup {
			continue
		}
		seen[genre] = struct{}{}
		selected = append(selected, genre)
	}
	for _, genre := range fallback {
		if len(selected) == maxRows {
			break
		}
		if _, dup := seen[genre]; dup {
			continue
		}
		seen[genre] = struct{}{}
		selected = append(selected, genre)
	}
	return selected
}

// PaginateAndDeduplicate merges a freshly fetched page into an
// accumulated id set. It returns only the titles not already present and
// the updated set (the input map is extended in place; a nil map is
// allocated). Upstream pagination may overlap between requests when
// popularity ties shift; this idempotent merge is what makes repeated
// "load more" safe. An empty toAppend signals the current filter
// combination is exhausted.
func PaginateAndDeduplicate(existing map[int]struct{}, page []models.Title) (toAppend []models.Title, updated map[int]struct{}) {
	if existing == nil {
		existing = make(map[int]struct{}, len(page))
	}
	for _, t := range page {
		if _, dup := existing[t.ID]; dup {
			continue
		}
		existing[t.ID] = struct{}{}
		toAppend = append(toAppend, t)
	}
	return toAppend, existing
}
