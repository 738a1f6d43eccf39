package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for a uniqueness constraint hit.
const uniqueViolation = "23505"

// PostgresReportStore backs the read model with Postgres when DATABASE_URL
// is configured. The data column uses JSONB so normalized fields stay
// queryable server-side.
type PostgresReportStore struct {
	db *sql.DB
}

func NewPostgresReportStore(db *sql.DB) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

// Init creates the reports table and indexes if they do not exist.
func (s *PostgresReportStore) Init(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS reports (
        id VARCHAR(36) PRIMARY KEY,
        source VARCHAR(32) NOT NULL,
        fingerprint VARCHAR(64) NOT NULL UNIQUE,
        ingested_at TIMESTAMPTZ NOT NULL,
        data JSONB NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_reports_fingerprint ON reports (fingerprint);
    CREATE INDEX IF NOT EXISTS idx_reports_source_ingested_at ON reports (source, ingested_at DESC);`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresReportStore) Insert(ctx context.Context, r *Report) error {
	dataJSON, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("marshal report data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, source, fingerprint, ingested_at, data) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.Source, r.Fingerprint, r.IngestedAt.UTC(), string(dataJSON),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) Get(ctx context.Context, id string) (*Report, error) {
	return s.queryOne(ctx,
		`SELECT id, source, fingerprint, ingested_at, data FROM reports WHERE id = $1`, id)
}

func (s *PostgresReportStore) GetByFingerprint(ctx context.Context, fingerprint string) (*Report, error) {
	return s.queryOne(ctx,
		`SELECT id, source, fingerprint, ingested_at, data FROM reports WHERE fingerprint = $1`, fingerprint)
}

func (s *PostgresReportStore) List(ctx context.Context, opts ListOptions) ([]*Report, error) {
	opts = opts.Normalize()

	query := `SELECT id, source, fingerprint, ingested_at, data FROM reports`
	args := []any{}
	if opts.Source != "" {
		query += ` WHERE source = $1`
		args = append(args, opts.Source)
	}
	query += fmt.Sprintf(` ORDER BY ingested_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	reports := []*Report{}
	for rows.Next() {
		r, err := scanPostgresRow(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *PostgresReportStore) queryOne(ctx context.Context, query string, arg any) (*Report, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	r, err := scanPostgresRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func scanPostgresRow(row rowScanner) (*Report, error) {
	var (
		id          string
		source      string
		fingerprint string
		ingestedAt  time.Time
		dataJSON    string
	)
	if err := row.Scan(&id, &source, &fingerprint, &ingestedAt, &dataJSON); err != nil {
		return nil, err
	}
	return buildReport(id, source, fingerprint, ingestedAt.UTC(), dataJSON)
}
