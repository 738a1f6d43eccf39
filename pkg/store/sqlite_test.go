package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpsr-tools/crowddata/pkg/canonicalize"
)

func newTestStore(t *testing.T) *SQLiteReportStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteReportStore(db)
	require.NoError(t, err)
	return s
}

func newReport(source, fingerprint string, ingestedAt time.Time) *Report {
	return &Report{
		ID:          uuid.New().String(),
		Source:      source,
		Fingerprint: fingerprint,
		IngestedAt:  ingestedAt,
		Data: canonicalize.NewEnvelope(
			map[string]any{"boss_name": "Frostclaw"},
			map[string]any{"boss": "Frostclaw"},
		),
	}
}

func TestSQLite_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := newReport("bp_timer", "fp-1", time.Now().UTC())
	require.NoError(t, s.Insert(ctx, r))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "bp_timer", got.Source)
	assert.Equal(t, "fp-1", got.Fingerprint)
	assert.Equal(t, "Frostclaw", got.Data.Normalized["boss_name"])
	assert.Equal(t, "Frostclaw", got.Data.Raw["boss"])
	assert.WithinDuration(t, r.IngestedAt, got.IngestedAt, time.Millisecond)
}

func TestSQLite_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_GetByFingerprint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := newReport("bpsr_logs", "fp-2", time.Now().UTC())
	require.NoError(t, s.Insert(ctx, r))

	got, err := s.GetByFingerprint(ctx, "fp-2")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = s.GetByFingerprint(ctx, "fp-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_DuplicateFingerprintConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newReport("bp_timer", "fp-dup", time.Now().UTC())))

	err := s.Insert(ctx, newReport("bp_timer", "fp-dup", time.Now().UTC()))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSQLite_ListOrderingAndPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 4; i++ {
		r := newReport("bp_timer", fmt.Sprintf("fp-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Insert(ctx, r))
		ids = append(ids, r.ID)
	}

	// Most recent first.
	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID)
	assert.Equal(t, ids[0], all[3].ID)

	// Adjacent pages are disjoint and cover the 4 most recent records.
	page1, err := s.List(ctx, ListOptions{Limit: 2, Offset: 0})
	require.NoError(t, err)
	page2, err := s.List(ctx, ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)

	seen := map[string]bool{}
	for _, r := range append(page1, page2...) {
		assert.False(t, seen[r.ID], "pages overlap on %s", r.ID)
		seen[r.ID] = true
	}
	assert.Equal(t, ids[3], page1[0].ID)
	assert.Equal(t, ids[2], page1[1].ID)
	assert.Equal(t, ids[1], page2[0].ID)
	assert.Equal(t, ids[0], page2[1].ID)
}

func TestSQLite_ListSourceFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newReport("bp_timer", "fp-a", time.Now().UTC())))
	require.NoError(t, s.Insert(ctx, newReport("bpsr_logs", "fp-b", time.Now().UTC())))

	got, err := s.List(ctx, ListOptions{Source: "bpsr_logs"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bpsr_logs", got[0].Source)
}

func TestSQLite_ListEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListOptions_Normalize(t *testing.T) {
	cases := []struct {
		name       string
		in         ListOptions
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ListOptions{}, 50, 0},
		{"negative limit", ListOptions{Limit: -3}, 1, 0},
		{"over max", ListOptions{Limit: 1000}, 200, 0},
		{"negative offset", ListOptions{Limit: 10, Offset: -5}, 10, 0},
		{"in range", ListOptions{Limit: 25, Offset: 75}, 25, 75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			assert.Equal(t, tc.wantLimit, got.Limit)
			assert.Equal(t, tc.wantOffset, got.Offset)
		})
	}
}
