// Package preference derives per-user genre affinity from rating history.
// A profile is recomputed on demand from the activity log and has no
// lifecycle of its own.
package preference

import (
	"sort"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// Profile maps genre name -> mean rating for one user and one media kind.
// Genres remember the order in which they were first encountered so that
// ranking ties resolve the same way on every render.
type Profile struct {
	order    []string
	averages map[string]float64
}

// Compute builds a profile from a user's activity records. Callers
// pre-filter records to one media kind; the taxonomy resolves numeric
// genre tokens in legacy rows. Records with unparseable ratings or empty
// genre fields contribute nothing. Never fails: zero qualifying records
// yield an empty profile and callers fall back to a default genre list.
func Compute(records []models.ActivityRecord, tax *models.GenreTaxonomy) Profile {
	type bucket struct {
		sum   int
		count int
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, rec := range records {
		rating, ok := rec.RatingValue()
		if !ok {
			continue
		}
		for _, genre := range models.ParseGenreField(rec.Genres, tax) {
			b := buckets[genre]
			if b == nil {
				b = &bucket{}
				buckets[genre] = b
				order = append(order, genre)
			}
			b.sum += rating
			b.count++
		}
	}

	averages := make(map[string]float64, len(buckets))
	for genre, b := range buckets {
		averages[genre] = float64(b.sum) / float64(b.count)
	}
	return Profile{order: order, averages: averages}
}

// Len returns the number of genres with at least one qualifying rating.
func (p Profile) Len() int {
	return len(p.averages)
}

// Average returns the mean rating given to a genre.
func (p Profile) Average(genre string) (float64, bool) {
	avg, ok := p.averages[genre]
	return avg, ok
}

// Averages returns a copy of the genre -> mean rating mapping.
func (p Profile) Averages() map[string]float64 {
	out := make(map[string]float64, len(p.averages))
	for g, avg := range p.averages {
		out[g] = avg
	}
	return out
}

// Ranked returns genre names by descending average rating. The sort is
// stable with ties broken by first-encounter order, so re-invocation never
// reorders a rendered list.
func (p Profile) Ranked() []string {
	ranked := make([]string, len(p.order))
	copy(ranked, p.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return p.averages[ranked[i]] > p.averages[ranked[j]]
	})
	return ranked
}
