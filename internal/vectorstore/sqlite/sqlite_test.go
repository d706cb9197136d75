package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

func setupTestStore(t *testing.T) (*Store, *Collection) {
	t.Helper()
	// Use in-memory database for testing
	store, err := New(":memory:", "/work/app")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	col, err := store.Open(context.Background())
	require.NoError(t, err)
	return store, col.(*Collection)
}

func record(path string, index int, mtime int64, vec ...float32) vectorstore.Record {
	chunk := types.Chunk{Path: path, Index: index, Text: path + " chunk"}
	return vectorstore.ChunkRecord(chunk, mtime, vec)
}

func TestNew(t *testing.T) {
	store, col := setupTestStore(t)

	assert.Equal(t, vectorstore.CollectionName("/work/app"), col.Name())
	assert.Equal(t, "sqlite://:memory:", store.Endpoint())

	again, err := store.Open(context.Background())
	require.NoError(t, err)
	assert.Same(t, col, again)
}

func TestNew_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	store, err := New(dbPath, "/work/app")
	require.NoError(t, err)
	col, err := store.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, col.(vectorstore.Upserter).Upsert(ctx, []vectorstore.Record{record("a.go", 0, 1, 1, 0)}))
	require.NoError(t, store.Close())

	store, err = New(dbPath, "/work/app")
	require.NoError(t, err)
	defer store.Close()
	col, err = store.Open(ctx)
	require.NoError(t, err)

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollection_UpsertAndGet(t *testing.T) {
	_, col := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, col.Upsert(ctx, []vectorstore.Record{
		record("a.go", 0, 100, 1, 0, 0),
		record("a.go", 1, 100, 0, 1, 0),
		record("b.go", 0, 200, 0, 0, 1),
	}))

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := col.Get(ctx, vectorstore.FirstChunkOf("a.go"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a.go:0", records[0].ID)
	assert.Equal(t, "a.go chunk", records[0].Document)
	assert.Equal(t, []float32{1, 0, 0}, records[0].Embedding)

	meta, ok := types.MetadataFromMap(records[0].Metadata)
	require.True(t, ok)
	assert.Equal(t, types.ChunkMetadata{Path: "a.go", ChunkIndex: 0, MTime: 100}, meta)

	// Replacing an id keeps one row
	require.NoError(t, col.Upsert(ctx, []vectorstore.Record{record("a.go", 0, 150, 1, 1, 0)}))
	records, err = col.Get(ctx, vectorstore.FirstChunkOf("a.go"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	meta, _ = types.MetadataFromMap(records[0].Metadata)
	assert.Equal(t, int64(150), meta.MTime)

	n, err = col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCollection_GetAll(t *testing.T) {
	_, col := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, col.Upsert(ctx, []vectorstore.Record{
		record("b.go", 0, 1, 1),
		record("a.go", 0, 1, 1),
	}))

	records, err := col.Get(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.go:0", records[0].ID)
}

func TestCollection_ExtraMetadataFilter(t *testing.T) {
	_, col := setupTestStore(t)
	ctx := context.Background()

	rec := record("a.go", 0, 1, 1)
	rec.Metadata["lang"] = "go"
	require.NoError(t, col.Upsert(ctx, []vectorstore.Record{rec, record("b.py", 0, 1, 1)}))

	records, err := col.Get(ctx, vectorstore.Where{{Field: "lang", Value: "go"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "go", records[0].Metadata["lang"])
}

func TestCollection_Delete(t *testing.T) {
	_, col := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, col.Upsert(ctx, []vectorstore.Record{
		record("a.go", 0, 1, 1),
		record("a.go", 1, 1, 1),
		record("b.go", 0, 1, 1),
	}))

	require.NoError(t, col.Delete(ctx, vectorstore.PathIs("a.go")))
	// Deleting what is not there is fine
	require.NoError(t, col.Delete(ctx, vectorstore.PathIs("missing.go")))

	records, err := col.Get(ctx, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b.go:0", records[0].ID)
}

func TestCollection_Query(t *testing.T) {
	_, col := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, col.Upsert(ctx, []vectorstore.Record{
		record("x.go", 0, 1, 1, 0),
		record("y.go", 0, 1, 0, 1),
		record("xy.go", 0, 1, 1, 1),
		record("other.go", 0, 1, 1, 0, 0), // different dimension, never returned
	}))

	matches, err := col.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "x.go:0", matches[0].ID)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)
	assert.Equal(t, "xy.go:0", matches[1].ID)
	assert.Less(t, matches[0].Distance, matches[1].Distance)

	all, err := col.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := col.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCollection_UpsertRejectsMissingEmbedding(t *testing.T) {
	_, col := setupTestStore(t)

	err := col.Upsert(context.Background(), []vectorstore.Record{record("a.go", 0, 1)})
	assert.ErrorIs(t, err, vectorstore.ErrInvalidRecord)
}

func TestCollections_AreIsolated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	first, err := New(dbPath, "/work/one")
	require.NoError(t, err)
	defer first.Close()
	colOne, err := first.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, colOne.(vectorstore.Upserter).Upsert(ctx, []vectorstore.Record{record("a.go", 0, 1, 1)}))

	second, err := New(dbPath, "/work/two")
	require.NoError(t, err)
	defer second.Close()
	colTwo, err := second.Open(ctx)
	require.NoError(t, err)

	n, err := colTwo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriterUsesUpsert(t *testing.T) {
	_, col := setupTestStore(t)

	w, err := vectorstore.NewWriter(col)
	require.NoError(t, err)
	assert.Equal(t, vectorstore.ModeUpsert, w.Mode())
}
