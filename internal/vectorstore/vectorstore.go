package vectorstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/codeindex/pkg/types"
)

// Common errors
var (
	ErrUnavailable     = errors.New("vector store unavailable")
	ErrNotFound        = errors.New("collection not found")
	ErrDuplicateID     = errors.New("record id already exists")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrUnsupportedKind = errors.New("unsupported store kind")
)

// CollectionPrefix prefixes every per-workspace collection name
const CollectionPrefix = "codex_index_"

// CollectionName derives the collection used for a workspace root:
// CollectionPrefix followed by the first 12 hex digits of sha1(root).
func CollectionName(root string) string {
	digest := sha1.Sum([]byte(root))
	return CollectionPrefix + hex.EncodeToString(digest[:])[:12]
}

// Eq is a single equality clause
type Eq struct {
	Field string
	Value any
}

// Where is a conjunction of equality clauses. An empty Where matches everything.
type Where []Eq

// PathIs matches every chunk of one file
func PathIs(path string) Where {
	return Where{{Field: types.MetaPath, Value: path}}
}

// FirstChunkOf matches chunk 0 of one file
func FirstChunkOf(path string) Where {
	return Where{
		{Field: types.MetaPath, Value: path},
		{Field: types.MetaChunkIndex, Value: 0},
	}
}

// Matches reports whether metadata satisfies every clause
func (w Where) Matches(meta map[string]any) bool {
	for _, clause := range w {
		got, ok := meta[clause.Field]
		if !ok || !equalValues(got, clause.Value) {
			return false
		}
	}
	return true
}

// MarshalJSON renders the filter in Chroma's where syntax. A single clause is
// {"field":{"$eq":value}}; several are wrapped in one "$and" since Chroma
// requires exactly one top-level operator.
func (w Where) MarshalJSON() ([]byte, error) {
	switch len(w) {
	case 0:
		return []byte("{}"), nil
	case 1:
		return json.Marshal(w[0].clause())
	}

	clauses := make([]map[string]any, len(w))
	for i, eq := range w {
		clauses[i] = eq.clause()
	}
	return json.Marshal(map[string]any{"$and": clauses})
}

func (e Eq) clause() map[string]any {
	return map[string]any{e.Field: map[string]any{"$eq": e.Value}}
}

// equalValues compares metadata values, treating all numeric kinds alike so
// decoded JSON numbers match Go ints.
func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Record is one stored chunk
type Record struct {
	ID        string
	Document  string
	Metadata  map[string]any
	Embedding []float32
}

// Match is a similarity query hit
type Match struct {
	Record
	Distance float64
}

// Collection is a named set of records in a vector store
type Collection interface {
	Name() string

	// Get returns the records whose metadata satisfies where
	Get(ctx context.Context, where Where) ([]Record, error)

	// Delete removes the records whose metadata satisfies where. Deleting
	// nothing is not an error.
	Delete(ctx context.Context, where Where) error

	// Query returns up to k records closest to vector, nearest first
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
}

// Upserter is implemented by collections that replace records with an
// existing id
type Upserter interface {
	Upsert(ctx context.Context, records []Record) error
}

// Appender is implemented by collections that only add records; adding an
// existing id fails
type Appender interface {
	Add(ctx context.Context, records []Record) error
}

// Writer persists records into a collection
type Writer interface {
	Write(ctx context.Context, records []Record) error
	Mode() string
}

// Writer modes
const (
	ModeUpsert = "upsert"
	ModeAppend = "append"
)

type writerFunc struct {
	write func(ctx context.Context, records []Record) error
	mode  string
}

func (w writerFunc) Write(ctx context.Context, records []Record) error {
	return w.write(ctx, records)
}

func (w writerFunc) Mode() string {
	return w.mode
}

// NewWriter picks the write operation for col once: Upsert when the
// collection supports it, Add otherwise.
func NewWriter(col Collection) (Writer, error) {
	if u, ok := col.(Upserter); ok {
		return writerFunc{write: u.Upsert, mode: ModeUpsert}, nil
	}
	if a, ok := col.(Appender); ok {
		return writerFunc{write: a.Add, mode: ModeAppend}, nil
	}
	return nil, fmt.Errorf("collection %s supports neither upsert nor add", col.Name())
}

// Opener connects to a store and returns the collection to index into
type Opener interface {
	Open(ctx context.Context) (Collection, error)

	// Endpoint describes where the store lives, for error messages
	Endpoint() string

	Close() error
}

// ChunkRecord builds the record stored for a chunk
func ChunkRecord(chunk types.Chunk, mtime int64, embedding []float32) Record {
	return Record{
		ID:        chunk.ID(),
		Document:  chunk.Text,
		Metadata:  chunk.Metadata(mtime).AsMap(),
		Embedding: embedding,
	}
}

// ValidateRecords checks that every record carries an id and an embedding
func ValidateRecords(records []Record) error {
	for i, r := range records {
		if r.ID == "" || len(r.Embedding) == 0 {
			return fmt.Errorf("%w: record %d has no id or embedding", ErrInvalidRecord, i)
		}
	}
	return nil
}
