package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Recorder = (*PostgresRecorder)(nil)

const ddlAudit = `
CREATE TABLE IF NOT EXISTS session_completions (
    id               BIGSERIAL    PRIMARY KEY,
    session_id       TEXT         NOT NULL,
    started_at       TIMESTAMPTZ  NOT NULL,
    completed_at     TIMESTAMPTZ  NOT NULL,
    final_transcript TEXT         NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_completions_session_id
    ON session_completions (session_id);

CREATE TABLE IF NOT EXISTS corrections (
    id            BIGSERIAL PRIMARY KEY,
    completion_id BIGINT    NOT NULL REFERENCES session_completions (id) ON DELETE CASCADE,
    session_id    TEXT      NOT NULL,
    segment_idx   INT       NOT NULL,
    word_idx      INT       NOT NULL,
    original      TEXT      NOT NULL,
    corrected     TEXT      NOT NULL,
    word_ts       DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_corrections_session_id
    ON corrections (session_id);
`

// PostgresRecorder is a [Recorder] backed by PostgreSQL. All methods are safe
// for concurrent use; writes for a single record run in one transaction.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder connects to the database at dsn and runs [Migrate] so
// the audit tables exist. Close the returned recorder when done.
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	return &PostgresRecorder{pool: pool}, nil
}

// Migrate creates the audit tables if they do not exist. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlAudit); err != nil {
		return fmt.Errorf("audit migrate: %w", err)
	}
	return nil
}

// RecordCompletion implements [Recorder].
func (r *PostgresRecorder) RecordCompletion(ctx context.Context, record CompletionRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertCompletion = `
		INSERT INTO session_completions (session_id, started_at, completed_at, final_transcript)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var completionID int64
	err = tx.QueryRow(ctx, insertCompletion,
		record.SessionID,
		record.StartedAt,
		record.CompletedAt,
		record.FinalTranscript,
	).Scan(&completionID)
	if err != nil {
		return fmt.Errorf("audit: insert completion: %w", err)
	}

	const insertCorrection = `
		INSERT INTO corrections (completion_id, session_id, segment_idx, word_idx, original, corrected, word_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, c := range record.Corrections {
		_, err := tx.Exec(ctx, insertCorrection,
			completionID,
			record.SessionID,
			c.Segment,
			c.Word,
			c.Original,
			c.Corrected,
			c.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("audit: insert correction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("audit: commit: %w", err)
	}
	return nil
}

// Corrections implements [Recorder].
func (r *PostgresRecorder) Corrections(ctx context.Context, sessionID string) ([]CorrectionRecord, error) {
	const q = `
		SELECT segment_idx, word_idx, original, corrected, word_ts
		FROM   corrections
		WHERE  session_id = $1
		ORDER  BY segment_idx, word_idx`

	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("audit: query corrections: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CorrectionRecord, error) {
		var c CorrectionRecord
		err := row.Scan(&c.Segment, &c.Word, &c.Original, &c.Corrected, &c.Timestamp)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("audit: scan corrections: %w", err)
	}
	if records == nil {
		records = []CorrectionRecord{}
	}
	return records, nil
}

// Ping verifies database connectivity. Used by readiness checks.
func (r *PostgresRecorder) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (r *PostgresRecorder) Close() {
	r.pool.Close()
}
