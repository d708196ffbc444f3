package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/joshsmith8642/cinematch/internal/config"
)

// NewPostgres opens a PostgreSQL connection and runs migrations.
func NewPostgres(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS activity_log (
			id SERIAL PRIMARY KEY,
			logged_at VARCHAR(20) NOT NULL,
			title_name VARCHAR(500) NOT NULL,
			title_id INTEGER NOT NULL,
			genres TEXT DEFAULT '',
			username VARCHAR(100) NOT NULL,
			rating VARCHAR(20) NOT NULL,
			kind VARCHAR(10) NOT NULL,
			poster_ref VARCHAR(500) DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS hidden_marks (
			id SERIAL PRIMARY KEY,
			marked_at VARCHAR(20) NOT NULL,
			username VARCHAR(100) NOT NULL,
			title_id INTEGER NOT NULL,
			kind VARCHAR(10) DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			seed_genres TEXT[] DEFAULT '{}',
			seed_titles TEXT[] DEFAULT '{}',
			created_at VARCHAR(20) DEFAULT ''
		)`,
		// Indexes for the per-user read paths
		`CREATE INDEX IF NOT EXISTS idx_activity_log_username ON activity_log(username)`,
		`CREATE INDEX IF NOT EXISTS idx_hidden_marks_username ON hidden_marks(username)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}
