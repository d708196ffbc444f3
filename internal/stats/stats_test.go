package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsmith8642/cinematch/internal/models"
)

func record(title, rating string) models.ActivityRecord {
	return models.ActivityRecord{
		User:      "Me",
		Kind:      models.MediaMovie,
		TitleName: title,
		Rating:    rating,
	}
}

func TestComputeExcludesMalformedRatings(t *testing.T) {
	records := []models.ActivityRecord{
		record("A", "90"),
		record("B", "70"),
		record("C", "bad"),
		record("D", "50"),
	}

	s := Compute(records, 10)

	assert.Equal(t, 3, s.Count)
	require.NotNil(t, s.Average)
	assert.Equal(t, 70.0, *s.Average)
	require.NotNil(t, s.Best)
	assert.Equal(t, "A", s.Best.TitleName)
	require.NotNil(t, s.Worst)
	assert.Equal(t, "D", s.Worst.TitleName)
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil, 10)

	assert.Equal(t, 0, s.Count)
	assert.Nil(t, s.Average)
	assert.Nil(t, s.Best)
	assert.Nil(t, s.Worst)
	for _, bin := range s.Histogram {
		assert.Equal(t, 0, bin.Count)
	}
}

func TestComputeTiesGoToFirstOccurrence(t *testing.T) {
	records := []models.ActivityRecord{
		record("first-high", "90"),
		record("second-high", "90"),
		record("first-low", "20"),
		record("second-low", "20"),
	}

	s := Compute(records, 10)

	assert.Equal(t, "first-high", s.Best.TitleName)
	assert.Equal(t, "first-low", s.Worst.TitleName)
}

func TestHistogramBinning(t *testing.T) {
	records := []models.ActivityRecord{
		record("A", "1"),
		record("B", "10"),
		record("C", "11"),
		record("D", "100"),
	}

	s := Compute(records, 10)

	require.Len(t, s.Histogram, 10)
	assert.Equal(t, 1, s.Histogram[0].Low)
	assert.Equal(t, 10, s.Histogram[0].High)
	assert.Equal(t, 2, s.Histogram[0].Count)
	assert.Equal(t, 1, s.Histogram[1].Count)
	assert.Equal(t, 1, s.Histogram[9].Count)
	assert.Equal(t, 100, s.Histogram[9].High)
}

func TestHistogramUnevenWidthAbsorbsRemainder(t *testing.T) {
	// Width 30 over a 100-value domain: 3 bins, last one widened.
	s := Compute([]models.ActivityRecord{record("A", "95")}, 30)

	require.Len(t, s.Histogram, 3)
	assert.Equal(t, 100, s.Histogram[2].High)
	assert.Equal(t, 1, s.Histogram[2].Count)
}

func TestComputeDefaultsBinWidth(t *testing.T) {
	s := Compute(nil, 0)
	assert.Len(t, s.Histogram, 10)
}
