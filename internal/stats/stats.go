// Package stats computes summary statistics over a user's activity log.
package stats

import (
	"math"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// Bin is one fixed-width bucket of the rating histogram.
type Bin struct {
	Low   int `json:"low"`
	High  int `json:"high"`
	Count int `json:"count"`
}

// Summary aggregates a record set. Only records with a parseable rating
// participate; malformed rating tokens are excluded from every figure,
// never coerced to zero. Average is nil when no record qualifies.
type Summary struct {
	Count     int                    `json:"count"`
	Average   *float64               `json:"average"`
	Best      *models.ActivityRecord `json:"best,omitempty"`
	Worst     *models.ActivityRecord `json:"worst,omitempty"`
	Histogram []Bin                  `json:"histogram"`
}

// DefaultBinWidth is used when configuration supplies no bin width.
const DefaultBinWidth = 10

// Compute aggregates records into a Summary. binWidth controls histogram
// bucketing across the valid rating domain [1, 100]; the last bin absorbs
// any remainder when the width does not divide the domain evenly. Ties for
// best/worst go to the first occurrence in input order.
func Compute(records []models.ActivityRecord, binWidth int) Summary {
	if binWidth < 1 {
		binWidth = DefaultBinWidth
	}

	s := Summary{Histogram: makeBins(binWidth)}
	var sum int
	bestRating, worstRating := math.MinInt, math.MaxInt

	for i := range records {
		rating, ok := records[i].RatingValue()
		if !ok {
			continue
		}
		s.Count++
		sum += rating

		if rating > bestRating {
			bestRating = rating
			s.Best = &records[i]
		}
		if rating < worstRating {
			worstRating = rating
			s.Worst = &records[i]
		}

		idx := (rating - models.RatingMin) / binWidth
		if idx >= len(s.Histogram) {
			idx = len(s.Histogram) - 1
		}
		s.Histogram[idx].Count++
	}

	if s.Count > 0 {
		avg := float64(sum) / float64(s.Count)
		s.Average = &avg
	}
	return s
}

func makeBins(binWidth int) []Bin {
	domain := models.RatingMax - models.RatingMin + 1
	n := domain / binWidth
	if n == 0 {
		n = 1
	}
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Low = models.RatingMin + i*binWidth
		bins[i].High = bins[i].Low + binWidth - 1
	}
	// Remainder of an uneven split lands in the last bin.
	bins[n-1].High = models.RatingMax
	return bins
}
