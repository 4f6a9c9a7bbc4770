package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docpipe/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extractions (
	id                TEXT PRIMARY KEY,
	reference         TEXT NOT NULL DEFAULT '',
	provider          TEXT NOT NULL DEFAULT '',
	latency_ms        INTEGER NOT NULL DEFAULT 0,
	needs_review      INTEGER NOT NULL DEFAULT 0,
	validation_errors TEXT NOT NULL DEFAULT '[]',
	review_reasons    TEXT NOT NULL DEFAULT '[]',
	record            TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extractions_reference ON extractions(reference);
CREATE INDEX IF NOT EXISTS idx_extractions_needs_review ON extractions(needs_review);
CREATE INDEX IF NOT EXISTS idx_extractions_provider ON extractions(provider);
CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveExtraction(ctx context.Context, res *model.Result) error {
	recordJSON, err := json.Marshal(res.Record)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	validationJSON, err := marshalStrings(res.ValidationErrors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation errors")
	}
	reasonsJSON, err := marshalStrings(res.ReviewReasons)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review reasons")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extractions (id, reference, provider, latency_ms, needs_review, validation_errors, review_reasons, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RequestID, res.Record.Reference, res.ProviderUsed, res.LatencyMs,
		boolToInt(res.NeedsReview), validationJSON, reasonsJSON, string(recordJSON),
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert extraction %s", res.RequestID)
}

func (s *SQLiteStore) GetExtraction(ctx context.Context, requestID string) (*model.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider, latency_ms, needs_review, validation_errors, review_reasons, record
		 FROM extractions WHERE id = ?`,
		requestID,
	)
	return scanExtraction(row)
}

func (s *SQLiteStore) ListExtractions(ctx context.Context, filter ExtractionFilter) ([]model.Result, error) {
	query := `SELECT id, provider, latency_ms, needs_review, validation_errors, review_reasons, record
	          FROM extractions WHERE 1=1`
	var args []any

	if filter.NeedsReview != nil {
		query += ` AND needs_review = ?`
		args = append(args, boolToInt(*filter.NeedsReview))
	}
	if filter.Reference != "" {
		query += ` AND reference = ?`
		args = append(args, filter.Reference)
	}
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extractions")
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		r, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list extractions iterate")
}

// helpers

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalStrings(s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	b, err := json.Marshal(s)
	return string(b), err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanExtraction(row scannable) (*model.Result, error) {
	var r model.Result
	var needsReview int
	var validationJSON, reasonsJSON, recordJSON string

	err := row.Scan(&r.RequestID, &r.ProviderUsed, &r.LatencyMs, &needsReview,
		&validationJSON, &reasonsJSON, &recordJSON)
	if err == sql.ErrNoRows {
		return nil, eris.New("extraction not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan extraction")
	}

	r.NeedsReview = needsReview != 0
	if err := json.Unmarshal([]byte(validationJSON), &r.ValidationErrors); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal validation errors")
	}
	if err := json.Unmarshal([]byte(reasonsJSON), &r.ReviewReasons); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal review reasons")
	}
	if err := json.Unmarshal([]byte(recordJSON), &r.Record); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &r, nil
}
