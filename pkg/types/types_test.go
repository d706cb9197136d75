package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID(t *testing.T) {
	c := Chunk{Path: "src/app.py", Index: 2, Text: "x"}
	assert.Equal(t, "src/app.py:2", c.ID())

	path, index, err := ParseChunkID("C:/work/a:b.go:12")
	require.NoError(t, err)
	assert.Equal(t, "C:/work/a:b.go", path)
	assert.Equal(t, 12, index)

	for _, bad := range []string{"", "noindex", ":3", "a.go:", "a.go:-1", "a.go:x"} {
		_, _, err := ParseChunkID(bad)
		assert.Error(t, err, bad)
	}
}

func TestChunkValidate(t *testing.T) {
	assert.NoError(t, (&Chunk{Path: "a", Index: 0, Text: "t"}).Validate())
	assert.ErrorIs(t, (&Chunk{Index: 0, Text: "t"}).Validate(), ErrEmptyPath)
	assert.ErrorIs(t, (&Chunk{Path: "a", Index: -1, Text: "t"}).Validate(), ErrInvalidChunkIndex)
	assert.ErrorIs(t, (&Chunk{Path: "a"}).Validate(), ErrEmptyContent)
}

func TestMetadataFromMap(t *testing.T) {
	c := Chunk{Path: "lib/x.go", Index: 1, Text: "t"}
	meta := c.Metadata(1700000000)

	got, ok := MetadataFromMap(meta.AsMap())
	require.True(t, ok)
	assert.Equal(t, meta, got)

	// JSON decoding yields float64 numbers
	var decoded map[string]any
	data, err := json.Marshal(meta.AsMap())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	got, ok = MetadataFromMap(decoded)
	require.True(t, ok)
	assert.Equal(t, meta, got)

	_, ok = MetadataFromMap(map[string]any{MetaPath: "a", MetaChunkIndex: "1", MetaMTime: 1})
	assert.False(t, ok)
	_, ok = MetadataFromMap(map[string]any{MetaChunkIndex: 1, MetaMTime: 1})
	assert.False(t, ok)
}

func TestSearchResultValidate(t *testing.T) {
	r := SearchResult{Rank: 1, Document: "d", Metadata: ChunkMetadata{Path: "a"}}
	assert.NoError(t, r.Validate())

	r.Rank = 0
	assert.ErrorIs(t, r.Validate(), ErrInvalidRank)
}
