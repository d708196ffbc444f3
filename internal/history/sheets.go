package history

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/joshsmith8642/cinematch/internal/models"
)

// SheetsConfig holds Google Sheets store settings.
type SheetsConfig struct {
	SpreadsheetID string
	// CredentialsFile points at a service-account JSON key. When empty,
	// CredentialsJSON is used; when both are empty, application default
	// credentials apply.
	CredentialsFile string
	CredentialsJSON string
}

// SheetsStore persists the activity log in a Google spreadsheet, one tab
// per record type, first row a header. This is the store the original
// dashboard ran on; its row shapes are kept intact so an existing
// spreadsheet keeps working.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsStore builds a Sheets-backed store.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig) (*SheetsStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets store requires a spreadsheet id")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.Info("connected to Google Sheets", "spreadsheet_id", cfg.SpreadsheetID)
	return &SheetsStore{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

// readRows fetches a tab's data rows. Fewer than two rows (header only or
// empty tab) means "no data", not an error.
func (s *SheetsStore) readRows(ctx context.Context, readRange string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", readRange, err)
	}
	if len(resp.Values) < 2 {
		return nil, nil
	}
	return resp.Values[1:], nil
}

func (s *SheetsStore) appendRows(ctx context.Context, writeRange string, rows [][]interface{}) error {
	body := &sheets.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, writeRange, body).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", writeRange, err)
	}
	return nil
}

// Activity implements Store.
func (s *SheetsStore) Activity(ctx context.Context, user string) ([]models.ActivityRecord, error) {
	rows, err := s.readRows(ctx, activityRange)
	if err != nil {
		return nil, err
	}

	var records []models.ActivityRecord
	for _, row := range rows {
		rec, ok := decodeActivityRow(row)
		if !ok {
			slog.Warn("skipping malformed activity row", "row", row)
			continue
		}
		if user != "" && rec.User != user {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// AppendActivity implements Store.
func (s *SheetsStore) AppendActivity(ctx context.Context, records ...models.ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		rows[i] = encodeActivityRow(rec)
	}
	return s.appendRows(ctx, activityRange, rows)
}

// Hidden implements Store.
func (s *SheetsStore) Hidden(ctx context.Context, user string) ([]models.HiddenMark, error) {
	rows, err := s.readRows(ctx, hiddenRange)
	if err != nil {
		return nil, err
	}

	var marks []models.HiddenMark
	for _, row := range rows {
		mark, ok := decodeHiddenRow(row)
		if !ok {
			slog.Warn("skipping malformed hidden row", "row", row)
			continue
		}
		if user != "" && mark.User != user {
			continue
		}
		marks = append(marks, mark)
	}
	return marks, nil
}

// AppendHidden implements Store.
func (s *SheetsStore) AppendHidden(ctx context.Context, marks ...models.HiddenMark) error {
	if len(marks) == 0 {
		return nil
	}
	rows := make([][]interface{}, len(marks))
	for i, mark := range marks {
		rows[i] = encodeHiddenRow(mark)
	}
	return s.appendRows(ctx, hiddenRange, rows)
}

// Profiles implements Store.
func (s *SheetsStore) Profiles(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := s.readRows(ctx, profilesRange)
	if err != nil {
		return nil, err
	}

	var profiles []models.UserProfile
	for _, row := range rows {
		if p, ok := decodeProfileRow(row); ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// SaveProfile implements Store.
func (s *SheetsStore) SaveProfile(ctx context.Context, profile models.UserProfile) error {
	return s.appendRows(ctx, profilesRange, [][]interface{}{encodeProfileRow(profile)})
}
