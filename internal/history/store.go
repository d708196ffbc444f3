// Package history reads and writes the append-only activity log, hidden
// marks, and household profiles. Two backends exist: the Google Sheets
// store the household actually runs on, and a PostgreSQL store for
// self-hosted setups. Both expose the same narrow contract: reads return
// flat row-shaped records; writes are append-only, no update and no delete.
package history

import (
	"context"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// Store is the history store contract consumed by the rest of the
// service. An empty user filter on reads means "all users".
type Store interface {
	// Activity returns the activity log, optionally filtered to one user.
	Activity(ctx context.Context, user string) ([]models.ActivityRecord, error)
	// AppendActivity appends new log rows. Records are never mutated.
	AppendActivity(ctx context.Context, records ...models.ActivityRecord) error

	// Hidden returns hidden marks, optionally filtered to one user.
	Hidden(ctx context.Context, user string) ([]models.HiddenMark, error)
	// AppendHidden appends new hidden marks.
	AppendHidden(ctx context.Context, marks ...models.HiddenMark) error

	// Profiles returns all household profiles.
	Profiles(ctx context.Context) ([]models.UserProfile, error)
	// SaveProfile creates a household profile.
	SaveProfile(ctx context.Context, profile models.UserProfile) error
}
