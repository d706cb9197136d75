package types

import (
	"errors"
	"strconv"
	"strings"
)

// Metadata keys stored alongside every chunk in the vector store
const (
	MetaPath       = "path"
	MetaChunkIndex = "chunk_index"
	MetaMTime      = "mtime"
)

// Chunk is a contiguous character slice of one file's text
type Chunk struct {
	Path  string // Relative to the workspace root that contains the file
	Index int    // Zero-based position within the file
	Text  string
}

// ChunkMetadata is persisted next to each chunk vector
type ChunkMetadata struct {
	Path       string `json:"path"`
	ChunkIndex int    `json:"chunk_index"`
	MTime      int64  `json:"mtime"` // Owning file's modification time (unix seconds) at index time
}

// ID returns the storage identity of the chunk, "<path>:<index>"
func (c *Chunk) ID() string {
	return ChunkID(c.Path, c.Index)
}

// Metadata builds the metadata record for the chunk
func (c *Chunk) Metadata(mtime int64) ChunkMetadata {
	return ChunkMetadata{
		Path:       c.Path,
		ChunkIndex: c.Index,
		MTime:      mtime,
	}
}

// Validate checks the chunk can be stored
func (c *Chunk) Validate() error {
	if c.Path == "" {
		return ErrEmptyPath
	}
	if c.Index < 0 {
		return ErrInvalidChunkIndex
	}
	if c.Text == "" {
		return ErrEmptyContent
	}
	return nil
}

// ChunkID formats the storage id for a chunk of path
func ChunkID(path string, index int) string {
	return path + ":" + strconv.Itoa(index)
}

// ParseChunkID splits an id produced by ChunkID. Paths may themselves contain
// colons, so the index is taken from the last separator.
func ParseChunkID(id string) (string, int, error) {
	i := strings.LastIndexByte(id, ':')
	if i <= 0 || i == len(id)-1 {
		return "", 0, errors.New("malformed chunk id: " + id)
	}
	index, err := strconv.Atoi(id[i+1:])
	if err != nil || index < 0 {
		return "", 0, errors.New("malformed chunk id: " + id)
	}
	return id[:i], index, nil
}

// AsMap converts metadata into the loosely typed form vector stores exchange
func (m ChunkMetadata) AsMap() map[string]any {
	return map[string]any{
		MetaPath:       m.Path,
		MetaChunkIndex: m.ChunkIndex,
		MetaMTime:      m.MTime,
	}
}

// MetadataFromMap reads metadata decoded from a vector store response.
// Numbers arrive as float64 from JSON and as int64 from SQL drivers.
func MetadataFromMap(m map[string]any) (ChunkMetadata, bool) {
	path, ok := m[MetaPath].(string)
	if !ok {
		return ChunkMetadata{}, false
	}
	index, ok := toInt64(m[MetaChunkIndex])
	if !ok {
		return ChunkMetadata{}, false
	}
	mtime, ok := toInt64(m[MetaMTime])
	if !ok {
		return ChunkMetadata{}, false
	}
	return ChunkMetadata{Path: path, ChunkIndex: int(index), MTime: mtime}, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	default:
		return 0, false
	}
}
