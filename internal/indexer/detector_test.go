package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

type erroringCollection struct {
	vectorstore.Collection
}

func (erroringCollection) Get(context.Context, vectorstore.Where) ([]vectorstore.Record, error) {
	return nil, errors.New("collection is still empty")
}

func TestDetector_Check(t *testing.T) {
	store := newTestStore(t, "/work/app")
	ctx := context.Background()
	col, err := store.Open(ctx)
	require.NoError(t, err)

	stored := []vectorstore.Record{
		vectorstore.ChunkRecord(types.Chunk{Path: "a.go", Index: 0, Text: "a0"}, 100, []float32{1}),
		vectorstore.ChunkRecord(types.Chunk{Path: "a.go", Index: 1, Text: "a1"}, 100, []float32{1}),
		// Only a later chunk survives for b.go
		vectorstore.ChunkRecord(types.Chunk{Path: "b.go", Index: 1, Text: "b1"}, 100, []float32{1}),
	}
	require.NoError(t, col.(vectorstore.Upserter).Upsert(ctx, stored))

	detector := NewDetector(col)

	tests := []struct {
		name     string
		path     string
		mtime    int64
		expected Decision
	}{
		{name: "unchanged", path: "a.go", mtime: 100, expected: Skip},
		{name: "modified", path: "a.go", mtime: 101, expected: Reindex},
		{name: "older on disk", path: "a.go", mtime: 99, expected: Reindex},
		{name: "never indexed", path: "c.go", mtime: 100, expected: Reindex},
		{name: "missing chunk zero", path: "b.go", mtime: 100, expected: Reindex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.Check(ctx, tt.path, tt.mtime))
		})
	}
}

func TestDetector_LookupErrorMeansReindex(t *testing.T) {
	detector := NewDetector(erroringCollection{})
	assert.Equal(t, Reindex, detector.Check(context.Background(), "a.go", 1))
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "reindex", Reindex.String())
}
