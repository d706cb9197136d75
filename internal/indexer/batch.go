package indexer

import (
	"context"
	"fmt"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

// Batch accumulates up to limit chunks before they are embedded and written.
// Its buffers are reused across flushes.
type Batch struct {
	limit   int
	chunks  []types.Chunk
	mtimes  []int64
	texts   []string
	records []vectorstore.Record
}

// NewBatch returns an empty batch holding at most limit chunks (minimum 1)
func NewBatch(limit int) *Batch {
	if limit < 1 {
		limit = 1
	}
	return &Batch{
		limit:   limit,
		chunks:  make([]types.Chunk, 0, limit),
		mtimes:  make([]int64, 0, limit),
		texts:   make([]string, 0, limit),
		records: make([]vectorstore.Record, 0, limit),
	}
}

// Append adds a chunk of a file modified at mtime
func (b *Batch) Append(chunk types.Chunk, mtime int64) {
	b.chunks = append(b.chunks, chunk)
	b.mtimes = append(b.mtimes, mtime)
	b.texts = append(b.texts, chunk.Text)
}

// Len returns the number of buffered chunks
func (b *Batch) Len() int {
	return len(b.chunks)
}

// Full reports whether the batch reached its limit
func (b *Batch) Full() bool {
	return len(b.chunks) >= b.limit
}

// Reset empties the batch, keeping its allocations
func (b *Batch) Reset() {
	clear(b.chunks)
	clear(b.texts)
	clear(b.records)
	b.chunks = b.chunks[:0]
	b.mtimes = b.mtimes[:0]
	b.texts = b.texts[:0]
	b.records = b.records[:0]
}

// Flush embeds the buffered chunks, writes them through w and resets the
// batch. It returns the number of chunks written. On error the batch is
// left intact.
func (b *Batch) Flush(ctx context.Context, emb embedder.Embedder, w vectorstore.Writer) (int, error) {
	n := b.Len()
	if n == 0 {
		return 0, nil
	}

	vectors, err := embedder.EmbedTexts(ctx, emb, b.texts, b.limit)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != n {
		return 0, fmt.Errorf("embed: %w: got %d for %d chunks", embedder.ErrShapeMismatch, len(vectors), n)
	}

	b.records = b.records[:0]
	for i, chunk := range b.chunks {
		b.records = append(b.records, vectorstore.ChunkRecord(chunk, b.mtimes[i], vectors[i]))
	}

	if err := w.Write(ctx, b.records); err != nil {
		return 0, fmt.Errorf("%s: %w", w.Mode(), err)
	}

	b.Reset()
	return n, nil
}
