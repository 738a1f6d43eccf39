package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresReportStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresReportStore(db), mock
}

func TestPostgres_InsertUniqueViolationIsConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reports`)).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := s.Insert(context.Background(), newReport("bp_timer", "fp-race", time.Now().UTC()))
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertOtherErrorPropagates(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reports`)).
		WillReturnError(errors.New("connection reset"))

	err := s.Insert(context.Background(), newReport("bp_timer", "fp-x", time.Now().UTC()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertSuccess(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reports`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Insert(context.Background(), newReport("bpsr_logs", "fp-ok", time.Now().UTC()))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, source, fingerprint, ingested_at, data FROM reports WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "source", "fingerprint", "ingested_at", "data"}))

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByFingerprint(t *testing.T) {
	s, mock := newMockStore(t)

	ingestedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "source", "fingerprint", "ingested_at", "data"}).
		AddRow("id-1", "bp_timer", "fp-1", ingestedAt, `{"normalized":{"boss_name":"Frostclaw"},"raw":{"boss":"Frostclaw"}}`)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, source, fingerprint, ingested_at, data FROM reports WHERE fingerprint = $1`)).
		WithArgs("fp-1").
		WillReturnRows(rows)

	got, err := s.GetByFingerprint(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Frostclaw", got.Data.Normalized["boss_name"])
	assert.Equal(t, ingestedAt, got.IngestedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListWithSourceFilter(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "source", "fingerprint", "ingested_at", "data"}).
		AddRow("id-2", "bpsr_logs", "fp-2", time.Now().UTC(), `{"normalized":{},"raw":{}}`).
		AddRow("id-1", "bpsr_logs", "fp-1", time.Now().UTC().Add(-time.Minute), `{"normalized":{},"raw":{}}`)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE source = $1 ORDER BY ingested_at DESC, id DESC LIMIT $2 OFFSET $3`)).
		WithArgs("bpsr_logs", 50, 0).
		WillReturnRows(rows)

	got, err := s.List(context.Background(), ListOptions{Source: "bpsr_logs"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id-2", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
