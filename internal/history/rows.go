package history

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// Sheet column layouts. Activity keeps the original dashboard's column
// order (Date, Title, Movie_ID, Genres, User, Rating, Type) with a
// trailing poster column added later; older rows simply lack cells, which
// the decoder tolerates.
const (
	activityRange = "Activity_Log!A:H"
	hiddenRange   = "Hidden!A:D"
	profilesRange = "Profiles!A:D"
)

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// decodeActivityRow turns one sheet row into a record. Rows whose title id
// cell is not numeric are unusable (they can neither render nor feed the
// exclusion set) and are dropped; every other malformed cell is kept raw
// so downstream consumers apply their own tolerant parsing.
func decodeActivityRow(row []interface{}) (models.ActivityRecord, bool) {
	titleID, err := strconv.Atoi(cell(row, 2))
	if err != nil {
		return models.ActivityRecord{}, false
	}
	kind, err := models.ParseMediaKind(cell(row, 6))
	if err != nil {
		return models.ActivityRecord{}, false
	}
	return models.ActivityRecord{
		LoggedAt:  cell(row, 0),
		TitleName: cell(row, 1),
		TitleID:   titleID,
		Genres:    cell(row, 3),
		User:      cell(row, 4),
		Rating:    cell(row, 5),
		Kind:      kind,
		PosterRef: cell(row, 7),
	}, true
}

func encodeActivityRow(rec models.ActivityRecord) []interface{} {
	return []interface{}{
		rec.LoggedAt,
		rec.TitleName,
		strconv.Itoa(rec.TitleID),
		rec.Genres,
		rec.User,
		rec.Rating,
		string(rec.Kind),
		rec.PosterRef,
	}
}

// decodeHiddenRow turns one sheet row into a hidden mark. A missing or
// unknown kind cell leaves Kind empty, which applies the mark to both
// media kinds.
func decodeHiddenRow(row []interface{}) (models.HiddenMark, bool) {
	titleID, err := strconv.Atoi(cell(row, 2))
	if err != nil {
		return models.HiddenMark{}, false
	}
	mark := models.HiddenMark{
		MarkedAt: cell(row, 0),
		User:     cell(row, 1),
		TitleID:  titleID,
	}
	if kind, err := models.ParseMediaKind(cell(row, 3)); err == nil {
		mark.Kind = kind
	}
	return mark, true
}

func encodeHiddenRow(mark models.HiddenMark) []interface{} {
	return []interface{}{
		mark.MarkedAt,
		mark.User,
		strconv.Itoa(mark.TitleID),
		string(mark.Kind),
	}
}

func decodeProfileRow(row []interface{}) (models.UserProfile, bool) {
	name := cell(row, 1)
	if name == "" {
		return models.UserProfile{}, false
	}
	return models.UserProfile{
		CreatedAt:  cell(row, 0),
		Name:       name,
		SeedGenres: splitList(cell(row, 2)),
		SeedTitles: splitList(cell(row, 3)),
	}, true
}

func encodeProfileRow(p models.UserProfile) []interface{} {
	return []interface{}{
		p.CreatedAt,
		p.Name,
		strings.Join(p.SeedGenres, ", "),
		strings.Join(p.SeedTitles, ", "),
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
