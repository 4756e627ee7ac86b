package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// setupTestStore creates a store in a temp dir with a 3-dimension schema.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	require.NoError(t, store.EnsureSchema(context.Background(), domain.IndexSchema{
		Name: "test", Dimensions: 3, Model: "hash-3",
	}))
	return store
}

func testRecord(id, path string, seq int, vec ...float32) domain.IndexRecord {
	return domain.IndexRecord{
		ID:     id,
		Vector: vec,
		Text:   "text of " + id,
		Metadata: domain.ChunkMetadata{
			SourcePath:    path,
			Extension:     ".go",
			SizeBytes:     120,
			ModifiedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			SequenceIndex: seq,
			Strategy:      domain.StrategyCode,
			Section:       "func Run",
			StartLine:     1,
			EndLine:       9,
		},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStore(dir, "repo")
		require.NoError(t, err)
		defer store.Close()

		assert.Equal(t, filepath.Join(dir, "repo.db"), store.Path())
		_, err = os.Stat(store.Path())
		assert.NoError(t, err)
	})

	t.Run("rejects bad names", func(t *testing.T) {
		for _, name := range []string{"", "a/b", ".."} {
			_, err := NewStore(t.TempDir(), name)
			assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
		}
	})

	t.Run("reopen keeps data and skips applied migrations", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()
		store, err := NewStore(dir, "repo")
		require.NoError(t, err)
		require.NoError(t, store.EnsureSchema(ctx, domain.IndexSchema{Name: "repo", Dimensions: 3, Model: "m"}))
		_, err = store.Upsert(ctx, []domain.IndexRecord{testRecord("a", "a.go", 0, 1, 0, 0)})
		require.NoError(t, err)
		require.NoError(t, store.Close())

		store, err = NewStore(dir, "repo")
		require.NoError(t, err)
		defer store.Close()
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestMigrate(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	version := func() int {
		var v int
		require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&v))
		return v
	}

	fsys := fstest.MapFS{
		"001_a.up.sql":   {Data: []byte("CREATE TABLE a (x INTEGER);")},
		"001_a.down.sql": {Data: []byte("DROP TABLE a;")},
		"002_b.up.sql":   {Data: []byte("CREATE TABLE b (y TEXT);")},
	}
	require.NoError(t, migrate(db, fsys))
	assert.Equal(t, 2, version())

	// applied scripts are not run again
	require.NoError(t, migrate(db, fsys))

	fsys["003_bad.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (x INTEGER);")}
	err = migrate(db, fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_bad.up.sql")
	assert.Equal(t, 2, version(), "failed script is rolled back")
}

func TestStore_EnsureSchema(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	tests := []struct {
		name    string
		schema  domain.IndexSchema
		wantErr error
	}{
		{"same schema is a no-op", domain.IndexSchema{Name: "test", Dimensions: 3, Model: "hash-3"}, nil},
		{"dimension differs", domain.IndexSchema{Name: "test", Dimensions: 4, Model: "hash-3"}, domain.ErrDimensionMismatch},
		{"model differs", domain.IndexSchema{Name: "test", Dimensions: 3, Model: "other"}, domain.ErrModelMismatch},
		{"wrong name", domain.IndexSchema{Name: "nope", Dimensions: 3, Model: "hash-3"}, domain.ErrInvalidInput},
		{"zero dimensions", domain.IndexSchema{Name: "test", Model: "hash-3"}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.EnsureSchema(ctx, tt.schema)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	schema, err := store.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.IndexSchema{Name: "test", Dimensions: 3, Model: "hash-3"}, schema)
}

func TestStore_SchemaMissing(t *testing.T) {
	store, err := NewStore(t.TempDir(), "empty")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Schema(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	results, err := store.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = store.Upsert(ctx, []domain.IndexRecord{testRecord("a", "a.go", 0, 1, 0, 0)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	rec := testRecord("a", "pkg/a.go", 0, 1, 0, 0)
	failures, err := store.Upsert(ctx, []domain.IndexRecord{rec, testRecord("b", "pkg/a.go", 1, 0, 1, 0)})
	require.NoError(t, err)
	assert.Empty(t, failures)

	got, err := store.Get(ctx, []string{"b", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, rec.Vector, got[1].Vector)
	assert.Equal(t, rec.Text, got[1].Text)
	assert.Equal(t, rec.Metadata, got[1].Metadata)
	assert.Equal(t, int64(1), got[1].Seq)
	assert.Equal(t, int64(2), got[0].Seq)
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	batch := []domain.IndexRecord{testRecord("a", "a.go", 0, 1, 0, 0), testRecord("b", "a.go", 1, 0, 1, 0)}
	_, err := store.Upsert(ctx, batch)
	require.NoError(t, err)

	updated := testRecord("a", "a.go", 0, 0, 0, 1)
	updated.Text = "rewritten"
	_, err = store.Upsert(ctx, []domain.IndexRecord{updated, testRecord("c", "c.go", 0, 1, 1, 0)})
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.Get(ctx, []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rewritten", got[0].Text)
	assert.Equal(t, []float32{0, 0, 1}, got[0].Vector)
	assert.Equal(t, int64(1), got[0].Seq, "overwrite keeps insertion sequence")
}

func TestStore_UpsertFailures(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	t.Run("dimension mismatch aborts the call", func(t *testing.T) {
		_, err := store.Upsert(ctx, []domain.IndexRecord{testRecord("a", "a.go", 0, 1, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("invalid records are reported individually", func(t *testing.T) {
		bad := testRecord("", "a.go", 4, 1, 0, 0)
		failures, err := store.Upsert(ctx, []domain.IndexRecord{bad, testRecord("ok", "a.go", 5, 1, 0, 0)})
		require.NoError(t, err)
		require.Len(t, failures, 1)
		assert.Equal(t, 4, failures[0].SequenceIndex)
		assert.ErrorIs(t, failures[0].Err, domain.ErrInvalidInput)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Upsert(ctx, []domain.IndexRecord{
		testRecord("x", "x.go", 0, 1, 0, 0),
		testRecord("y", "y.go", 0, 0, 1, 0),
		testRecord("x2", "x2.go", 0, 2, 0, 0),
		testRecord("xy", "xy.go", 0, 1, 1, 0),
	})
	require.NoError(t, err)

	t.Run("orders by score then insertion", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "x", results[0].Record.ID)
		assert.Equal(t, "x2", results[1].Record.ID)
		assert.Equal(t, "xy", results[2].Record.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.InDelta(t, 0.7071, results[2].Score, 1e-3)
	})

	t.Run("k larger than index", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{0, 1, 0}, 50)
		require.NoError(t, err)
		assert.Len(t, results, 4)
		assert.Equal(t, "y", results[0].Record.ID)
	})

	t.Run("non-positive k", func(t *testing.T) {
		_, err := store.Search(ctx, []float32{1, 0, 0}, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		_, err := store.Search(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestStore_DeleteAndIDsBySource(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Upsert(ctx, []domain.IndexRecord{
		testRecord("a0", "a.go", 0, 1, 0, 0),
		testRecord("b0", "b.go", 0, 0, 1, 0),
		testRecord("a1", "a.go", 1, 1, 0, 0),
	})
	require.NoError(t, err)

	groups, err := store.IDsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"a.go": {"a0", "a1"}, "b.go": {"b0"}}, groups)

	n, err := store.Delete(ctx, []string{"a0", "b0", "nope"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Delete(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	groups, err = store.IDsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"a.go": {"a1"}}, groups)
}

func TestStore_DeleteBySourceAndDrop(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Upsert(ctx, []domain.IndexRecord{
		testRecord("a0", "a.go", 0, 1, 0, 0),
		testRecord("a1", "a.go", 1, 1, 0, 0),
		testRecord("b0", "b.go", 0, 0, 1, 0),
	})
	require.NoError(t, err)

	ids, err := store.DeleteBySource(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1"}, ids)

	ids, err = store.DeleteBySource(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Drop(ctx))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = store.Schema(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFloat32Blob(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, in, decodeVector(encodeVector(in)))
	assert.Empty(t, decodeVector(nil))
}
