package vectorstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/pkg/types"
)

func TestCollectionName(t *testing.T) {
	name := CollectionName("/work/app")
	assert.Len(t, name, len(CollectionPrefix)+12)
	assert.Equal(t, CollectionPrefix, name[:len(CollectionPrefix)])

	assert.Equal(t, name, CollectionName("/work/app"))
	assert.NotEqual(t, name, CollectionName("/work/app2"))
}

func TestCollectionName_KnownDigest(t *testing.T) {
	// sha1("abc") = a9993e364706816aba3e...
	assert.Equal(t, "codex_index_a9993e364706", CollectionName("abc"))
}

func TestWhere_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		where    Where
		expected string
	}{
		{name: "empty", where: Where{}, expected: `{}`},
		{name: "single clause", where: PathIs("src/a.go"), expected: `{"path":{"$eq":"src/a.go"}}`},
		{
			name:     "conjunction",
			where:    FirstChunkOf("src/a.go"),
			expected: `{"$and":[{"path":{"$eq":"src/a.go"}},{"chunk_index":{"$eq":0}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.where)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestWhere_Matches(t *testing.T) {
	meta := map[string]any{"path": "a.go", "chunk_index": float64(0), "mtime": int64(5)}

	assert.True(t, FirstChunkOf("a.go").Matches(meta))
	assert.True(t, PathIs("a.go").Matches(meta))
	assert.True(t, Where{}.Matches(meta))
	assert.True(t, Where{{Field: "mtime", Value: 5}}.Matches(meta))
	assert.False(t, PathIs("b.go").Matches(meta))
	assert.False(t, Where{{Field: "missing", Value: 1}}.Matches(meta))
	assert.False(t, Where{{Field: "path", Value: 1}}.Matches(meta))
}

type upsertOnly struct{ named }
type appendOnly struct{ named }
type readOnly struct{ named }

type named struct{}

func (named) Name() string                                           { return "test" }
func (named) Get(context.Context, Where) ([]Record, error)           { return nil, nil }
func (named) Delete(context.Context, Where) error                    { return nil }
func (named) Query(context.Context, []float32, int) ([]Match, error) { return nil, nil }
func (named) Count(context.Context) (int, error)                     { return 0, nil }

func (upsertOnly) Upsert(context.Context, []Record) error { return nil }
func (appendOnly) Add(context.Context, []Record) error    { return nil }

func TestNewWriter(t *testing.T) {
	w, err := NewWriter(upsertOnly{})
	require.NoError(t, err)
	assert.Equal(t, ModeUpsert, w.Mode())

	w, err = NewWriter(appendOnly{})
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, w.Mode())

	_, err = NewWriter(readOnly{})
	assert.Error(t, err)
}

func TestChunkRecord(t *testing.T) {
	rec := ChunkRecord(types.Chunk{Path: "a.go", Index: 2, Text: "body"}, 42, []float32{1})

	assert.Equal(t, "a.go:2", rec.ID)
	assert.Equal(t, "body", rec.Document)
	assert.Equal(t, map[string]any{"path": "a.go", "chunk_index": 2, "mtime": int64(42)}, rec.Metadata)
}
