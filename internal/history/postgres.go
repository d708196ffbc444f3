package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// PostgresStore persists the activity log in PostgreSQL with the same
// append-only contract as the spreadsheet store. Rating and date columns
// stay text on purpose: the log predates this service and carries rows
// this schema must keep representable byte for byte.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Activity implements Store.
func (s *PostgresStore) Activity(ctx context.Context, user string) ([]models.ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT logged_at, title_name, title_id, genres, username, rating, kind, poster_ref
		FROM activity_log
		WHERE $1 = '' OR username = $1
		ORDER BY id
	`, user)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	var records []models.ActivityRecord
	for rows.Next() {
		var rec models.ActivityRecord
		var kind string
		if err := rows.Scan(&rec.LoggedAt, &rec.TitleName, &rec.TitleID, &rec.Genres,
			&rec.User, &rec.Rating, &kind, &rec.PosterRef); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		if k, err := models.ParseMediaKind(kind); err == nil {
			rec.Kind = k
		} else {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AppendActivity implements Store.
func (s *PostgresStore) AppendActivity(ctx context.Context, records ...models.ActivityRecord) error {
	for _, rec := range records {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO activity_log (logged_at, title_name, title_id, genres, username, rating, kind, poster_ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, rec.LoggedAt, rec.TitleName, rec.TitleID, rec.Genres, rec.User, rec.Rating, string(rec.Kind), rec.PosterRef)
		if err != nil {
			return fmt.Errorf("append activity record: %w", err)
		}
	}
	return nil
}

// Hidden implements Store.
func (s *PostgresStore) Hidden(ctx context.Context, user string) ([]models.HiddenMark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT marked_at, username, title_id, kind
		FROM hidden_marks
		WHERE $1 = '' OR username = $1
		ORDER BY id
	`, user)
	if err != nil {
		return nil, fmt.Errorf("query hidden marks: %w", err)
	}
	defer rows.Close()

	var marks []models.HiddenMark
	for rows.Next() {
		var mark models.HiddenMark
		var kind string
		if err := rows.Scan(&mark.MarkedAt, &mark.User, &mark.TitleID, &kind); err != nil {
			return nil, fmt.Errorf("scan hidden row: %w", err)
		}
		if k, err := models.ParseMediaKind(kind); err == nil {
			mark.Kind = k
		}
		marks = append(marks, mark)
	}
	return marks, rows.Err()
}

// AppendHidden implements Store.
func (s *PostgresStore) AppendHidden(ctx context.Context, marks ...models.HiddenMark) error {
	for _, mark := range marks {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO hidden_marks (marked_at, username, title_id, kind)
			VALUES ($1, $2, $3, $4)
		`, mark.MarkedAt, mark.User, mark.TitleID, string(mark.Kind))
		if err != nil {
			return fmt.Errorf("append hidden mark: %w", err)
		}
	}
	return nil
}

// Profiles implements Store.
func (s *PostgresStore) Profiles(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, seed_genres, seed_titles, created_at
		FROM profiles
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		var p models.UserProfile
		if err := rows.Scan(&p.Name, pq.Array(&p.SeedGenres), pq.Array(&p.SeedTitles), &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SaveProfile implements Store.
func (s *PostgresStore) SaveProfile(ctx context.Context, profile models.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (name, seed_genres, seed_titles, created_at)
		VALUES ($1, $2, $3, $4)
	`, profile.Name, pq.Array(profile.SeedGenres), pq.Array(profile.SeedTitles), profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
