package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bpsr-tools/crowddata/pkg/canonicalize"

	_ "modernc.org/sqlite"
)

// SQLiteReportStore is the default single-file backend, used when no
// DATABASE_URL is configured.
type SQLiteReportStore struct {
	db *sql.DB
}

func NewSQLiteReportStore(db *sql.DB) (*SQLiteReportStore, error) {
	s := &SQLiteReportStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteReportStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS reports (
        id TEXT PRIMARY KEY,
        source TEXT NOT NULL,
        fingerprint TEXT NOT NULL UNIQUE,
        ingested_at TEXT NOT NULL,
        data JSON NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_reports_fingerprint ON reports (fingerprint);
    CREATE INDEX IF NOT EXISTS idx_reports_source_ingested_at ON reports (source, ingested_at DESC);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteReportStore) Insert(ctx context.Context, r *Report) error {
	dataJSON, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("marshal report data: %w", err)
	}
	ingestedAt := r.IngestedAt.UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, source, fingerprint, ingested_at, data) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.Fingerprint, ingestedAt, string(dataJSON),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *SQLiteReportStore) Get(ctx context.Context, id string) (*Report, error) {
	return s.queryOne(ctx,
		`SELECT id, source, fingerprint, ingested_at, data FROM reports WHERE id = ?`, id)
}

func (s *SQLiteReportStore) GetByFingerprint(ctx context.Context, fingerprint string) (*Report, error) {
	return s.queryOne(ctx,
		`SELECT id, source, fingerprint, ingested_at, data FROM reports WHERE fingerprint = ?`, fingerprint)
}

func (s *SQLiteReportStore) List(ctx context.Context, opts ListOptions) ([]*Report, error) {
	opts = opts.Normalize()

	query := `SELECT id, source, fingerprint, ingested_at, data FROM reports`
	args := []any{}
	if opts.Source != "" {
		query += ` WHERE source = ?`
		args = append(args, opts.Source)
	}
	query += ` ORDER BY ingested_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	reports := []*Report{}
	for rows.Next() {
		r, err := scanReportRow(rows)
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

func (s *SQLiteReportStore) queryOne(ctx context.Context, query string, arg any) (*Report, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var (
		id          string
		source      string
		fingerprint string
		ingestedAt  string
		dataJSON    string
	)
	if err := row.Scan(&id, &source, &fingerprint, &ingestedAt, &dataJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return buildReport(id, source, fingerprint, parseTime(ingestedAt), dataJSON)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReportRow(rows rowScanner) (*Report, error) {
	var (
		id          string
		source      string
		fingerprint string
		ingestedAt  string
		dataJSON    string
	)
	if err := rows.Scan(&id, &source, &fingerprint, &ingestedAt, &dataJSON); err != nil {
		return nil, err
	}
	return buildReport(id, source, fingerprint, parseTime(ingestedAt), dataJSON)
}

func buildReport(id, source, fingerprint string, ingestedAt time.Time, dataJSON string) (*Report, error) {
	var data canonicalize.Envelope
	if dataJSON != "" {
		if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
			return nil, fmt.Errorf("unmarshal report data: %w", err)
		}
	}
	return &Report{
		ID:          id,
		Source:      source,
		Fingerprint: fingerprint,
		IngestedAt:  ingestedAt,
		Data:        data,
	}, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
