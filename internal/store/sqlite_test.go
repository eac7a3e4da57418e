package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/certspend/internal/export"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestSQLite_Publish(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	summary := export.Table{
		Name: "prime_summary",
		Columns: []export.Column{
			{Name: "agency", Kind: export.KindText},
			{Name: "certified_spend", Kind: export.KindFloat},
			{Name: "sub_count", Kind: export.KindInt},
			{Name: "orphan", Kind: export.KindBool},
		},
		Rows: [][]any{
			{"DOT", 85000.0, 1, false},
			{nil, 500.0, 1, true},
		},
	}
	require.NoError(t, st.Publish(ctx, []export.Table{summary, testTable()}))

	n, err := st.Count(ctx, "prime_summary")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var spend float64
	var orphan bool
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT certified_spend, orphan FROM prime_summary WHERE agency IS NULL`).Scan(&spend, &orphan))
	assert.Equal(t, 500.0, spend)
	assert.True(t, orphan)
}

func TestSQLite_PublishReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Publish(ctx, []export.Table{testTable()}))

	smaller := testTable()
	smaller.Rows = smaller.Rows[:1]
	require.NoError(t, st.Publish(ctx, []export.Table{smaller}))

	n, err := st.Count(ctx, "certified_spend")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_PublishIsAtomic(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Publish(ctx, []export.Table{testTable()}))

	replacement := testTable()
	replacement.Rows = replacement.Rows[:1]
	broken := export.Table{
		Name:    "broken",
		Columns: []export.Column{{Name: "a", Kind: export.KindText}},
		Rows:    [][]any{{"x", "extra value"}},
	}
	require.Error(t, st.Publish(ctx, []export.Table{replacement, broken}))

	// The failed publish left the previous tables untouched.
	n, err := st.Count(ctx, "certified_spend")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = st.Count(ctx, "broken")
	assert.Error(t, err)
}

func TestSQLite_StageAbortKeepsPublishedTables(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Publish(ctx, []export.Table{testTable()}))

	replacement := testTable()
	replacement.Rows = nil
	staged, err := st.Stage(ctx, []export.Table{replacement})
	require.NoError(t, err)
	require.NoError(t, staged.Abort(ctx))

	n, err := st.Count(ctx, "certified_spend")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	staged, err = st.Stage(ctx, []export.Table{replacement})
	require.NoError(t, err)
	require.NoError(t, staged.Commit(ctx))

	n, err = st.Count(ctx, "certified_spend")
	require.NoError(t, err)
	assert.Zero(t, n)
}
