package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used in tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extractions (
	id                TEXT PRIMARY KEY,
	reference         TEXT NOT NULL DEFAULT '',
	provider          TEXT NOT NULL DEFAULT '',
	latency_ms        BIGINT NOT NULL DEFAULT 0,
	needs_review      BOOLEAN NOT NULL DEFAULT false,
	validation_errors JSONB NOT NULL DEFAULT '[]',
	review_reasons    JSONB NOT NULL DEFAULT '[]',
	record            JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extractions_reference ON extractions(reference);
CREATE INDEX IF NOT EXISTS idx_extractions_needs_review ON extractions(needs_review);
CREATE INDEX IF NOT EXISTS idx_extractions_provider ON extractions(provider);
CREATE INDEX IF NOT EXISTS idx_extractions_created_at ON extractions(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveExtraction(ctx context.Context, res *model.Result) error {
	recordJSON, err := json.Marshal(res.Record)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	validationJSON, err := marshalStrings(res.ValidationErrors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validation errors")
	}
	reasonsJSON, err := marshalStrings(res.ReviewReasons)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal review reasons")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extractions (id, reference, provider, latency_ms, needs_review, validation_errors, review_reasons, record, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.RequestID, res.Record.Reference, res.ProviderUsed, res.LatencyMs,
		res.NeedsReview, validationJSON, reasonsJSON, string(recordJSON),
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert extraction %s", res.RequestID)
}

func (s *PostgresStore) GetExtraction(ctx context.Context, requestID string) (*model.Result, error) {
	var r model.Result
	var validationJSON, reasonsJSON, recordJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, provider, latency_ms, needs_review, validation_errors, review_reasons, record
		 FROM extractions WHERE id = $1`,
		requestID,
	).Scan(&r.RequestID, &r.ProviderUsed, &r.LatencyMs, &r.NeedsReview,
		&validationJSON, &reasonsJSON, &recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.New("extraction not found")
		}
		return nil, eris.Wrapf(err, "postgres: get extraction %s", requestID)
	}

	if err := unmarshalResult(&r, validationJSON, reasonsJSON, recordJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListExtractions(ctx context.Context, filter ExtractionFilter) ([]model.Result, error) {
	query := `SELECT id, provider, latency_ms, needs_review, validation_errors, review_reasons, record
	          FROM extractions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.NeedsReview != nil {
		query += fmt.Sprintf(` AND needs_review = $%d`, argIdx)
		args = append(args, *filter.NeedsReview)
		argIdx++
	}
	if filter.Reference != "" {
		query += fmt.Sprintf(` AND reference = $%d`, argIdx)
		args = append(args, filter.Reference)
		argIdx++
	}
	if filter.Provider != "" {
		query += fmt.Sprintf(` AND provider = $%d`, argIdx)
		args = append(args, filter.Provider)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extractions")
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var validationJSON, reasonsJSON, recordJSON []byte

		if err := rows.Scan(&r.RequestID, &r.ProviderUsed, &r.LatencyMs, &r.NeedsReview,
			&validationJSON, &reasonsJSON, &recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction")
		}
		if err := unmarshalResult(&r, validationJSON, reasonsJSON, recordJSON); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list extractions iterate")
}

func unmarshalResult(r *model.Result, validationJSON, reasonsJSON, recordJSON []byte) error {
	if err := json.Unmarshal(validationJSON, &r.ValidationErrors); err != nil {
		return eris.Wrap(err, "postgres: unmarshal validation errors")
	}
	if err := json.Unmarshal(reasonsJSON, &r.ReviewReasons); err != nil {
		return eris.Wrap(err, "postgres: unmarshal review reasons")
	}
	if err := json.Unmarshal(recordJSON, &r.Record); err != nil {
		return eris.Wrap(err, "postgres: unmarshal record")
	}
	return nil
}
