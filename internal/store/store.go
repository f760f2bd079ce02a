package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"matchlens/internal/config"
)

// Store manages clip record persistence backed by SQLite. Writes are atomic
// at record granularity and durable before Put returns, which is what makes
// the annotation pool idempotent across restarts.
type Store struct {
	db   *sql.DB
	path string
}

// DBFileName is the SQLite file created inside the results directory.
const DBFileName = "records.db"

// Open initializes or connects to the record database inside the configured
// results directory and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.ResultsDir, DBFileName))
}

// OpenPath opens the record database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applySchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS clip_records (
    clip_id        TEXT PRIMARY KEY,
    offset_seconds INTEGER NOT NULL,
    segment        TEXT,
    status         TEXT NOT NULL,
    raw_response   TEXT,
    extraction_json TEXT,
    failure_reason TEXT,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clip_records_status ON clip_records(status);
CREATE INDEX IF NOT EXISTS idx_clip_records_offset ON clip_records(offset_seconds);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// EnsurePending inserts a pending record for a clip unless one already exists.
// An existing record is returned untouched, preserving its persisted offset.
func (s *Store) EnsurePending(ctx context.Context, clipID string, offsetSeconds int, segment string) (*Record, error) {
	if clipID == "" {
		return nil, errors.New("clip id is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO clip_records (clip_id, offset_seconds, segment, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(clip_id) DO NOTHING`,
		clipID,
		offsetSeconds,
		nullableString(segment),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure pending record: %w", err)
	}
	return s.Get(ctx, clipID)
}

// Has reports whether a record exists for the clip.
func (s *Store) Has(ctx context.Context, clipID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM clip_records WHERE clip_id = ?`, clipID)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has record: %w", err)
	}
	return true, nil
}

// Get fetches a clip record by identifier, or nil when absent.
func (s *Store) Get(ctx context.Context, clipID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM clip_records WHERE clip_id = ?`, clipID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// Put persists a record with last-write-wins semantics. The write is a single
// upsert statement, so no partially written record is ever observable.
func (s *Store) Put(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if record.ClipID == "" {
		return errors.New("clip id is required")
	}
	record.UpdatedAt = time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}

	extractionJSON, err := marshalExtraction(record.Extraction)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO clip_records (
            clip_id, offset_seconds, segment, status, raw_response,
            extraction_json, failure_reason, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(clip_id) DO UPDATE SET
            segment = excluded.segment,
            status = excluded.status,
            raw_response = excluded.raw_response,
            extraction_json = excluded.extraction_json,
            failure_reason = excluded.failure_reason,
            updated_at = excluded.updated_at`,
		record.ClipID,
		record.OffsetSeconds,
		nullableString(record.Segment),
		record.Status,
		nullableString(record.RawResponse),
		nullableString(extractionJSON),
		nullableString(record.FailureReason),
		record.CreatedAt.Format(time.RFC3339Nano),
		record.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// List returns records filtered by status set (or all records when no status
// is provided), ordered by offset ascending then clip id.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM clip_records`
	orderClause := ` ORDER BY offset_seconds, clip_id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ResetInFlight returns records interrupted mid-flight back to pending so a
// subsequent run resumes cleanly from persisted state.
func (s *Store) ResetInFlight(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clip_records SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusInFlight,
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight records: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed records back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE clip_records
        SET status = ?, failure_reason = NULL, updated_at = ?
        WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed records: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (StatsSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM clip_records GROUP BY status`)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	summary := StatsSummary{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatsSummary{}, err
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending += count
		case StatusInFlight:
			summary.InFlight += count
		case StatusDone:
			summary.Done += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}

const recordColumns = "clip_id, offset_seconds, segment, status, raw_response, extraction_json, failure_reason, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		clipID        string
		offsetSeconds int
		segment       sql.NullString
		statusStr     string
		rawResponse   sql.NullString
		extraction    sql.NullString
		failureReason sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&clipID,
		&offsetSeconds,
		&segment,
		&statusStr,
		&rawResponse,
		&extraction,
		&failureReason,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ClipID:        clipID,
		OffsetSeconds: offsetSeconds,
		Segment:       segment.String,
		Status:        Status(statusStr),
		RawResponse:   rawResponse.String,
		FailureReason: failureReason.String,
	}
	if extraction.Valid && extraction.String != "" {
		parsed := &Extraction{}
		if err := json.Unmarshal([]byte(extraction.String), parsed); err != nil {
			return nil, fmt.Errorf("decode extraction for %s: %w", clipID, err)
		}
		record.Extraction = parsed
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func marshalExtraction(extraction *Extraction) (string, error) {
	if extraction == nil {
		return "", nil
	}
	encoded, err := json.Marshal(extraction)
	if err != nil {
		return "", fmt.Errorf("encode extraction: %w", err)
	}
	return string(encoded), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
