package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/codeindex/internal/chunker"
	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

// ErrBatchWrite is returned when embedding or persisting a batch fails
var ErrBatchWrite = errors.New("failed to write batch")

// Writer replaces the stored chunks of one file at a time, streaming them
// through a bounded batch
type Writer struct {
	col      vectorstore.Collection
	out      vectorstore.Writer
	emb      embedder.Embedder
	chunker  *chunker.Chunker
	progress *Tracker
	batch    *Batch
}

// NewWriter returns a writer for col. The write mode (upsert or add) is
// chosen here, once.
func NewWriter(col vectorstore.Collection, emb embedder.Embedder, progress *Tracker, batchSize int) (*Writer, error) {
	out, err := vectorstore.NewWriter(col)
	if err != nil {
		return nil, err
	}
	return &Writer{
		col:      col,
		out:      out,
		emb:      emb,
		chunker:  chunker.New(),
		progress: progress,
		batch:    NewBatch(batchSize),
	}, nil
}

// Mode returns the store write mode in use
func (w *Writer) Mode() string {
	return w.out.Mode()
}

// WriteFile deletes every stored chunk of relPath, then chunks text and
// writes the chunks in batches. Progress advances after each successful
// flush. It returns the number of chunks in the file.
//
// A failed delete or flush returns an error wrapping ErrBatchWrite; chunks
// from earlier flushes stay stored.
func (w *Writer) WriteFile(ctx context.Context, relPath string, mtime int64, text string) (int, error) {
	// Stale chunks left behind here would never be revisited
	if err := w.col.Delete(ctx, vectorstore.PathIs(relPath)); err != nil {
		slog.Error("failed to delete stale chunks", "path", relPath, "error", err)
		return 0, fmt.Errorf("%w for %s: deleting stale chunks: %w", ErrBatchWrite, relPath, err)
	}

	total := w.chunker.CountText(text)
	w.progress.AddTotalChunks(total)

	w.batch.Reset()
	err := w.chunker.Each(text, func(index int, chunk string) error {
		c := types.Chunk{Path: relPath, Index: index, Text: chunk}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w for %q: chunk %d: %w", ErrBatchWrite, relPath, index, err)
		}
		w.batch.Append(c, mtime)
		if w.batch.Full() {
			return w.flush(ctx, relPath)
		}
		return nil
	})
	if err == nil {
		err = w.flush(ctx, relPath)
	}
	if err != nil {
		w.batch.Reset()
		return total, err
	}

	return total, nil
}

func (w *Writer) flush(ctx context.Context, relPath string) error {
	start := time.Now()
	n, err := w.batch.Flush(ctx, w.emb, w.out)
	if err != nil {
		slog.Error("failed to write batch", "path", relPath, "error", err)
		return fmt.Errorf("%w for %s: %w", ErrBatchWrite, relPath, err)
	}
	if n == 0 {
		return nil
	}

	w.progress.AddProcessedChunks(n)
	slog.Debug("persisted chunks", "path", relPath, "chunks", n,
		"mode", w.out.Mode(), "duration", time.Since(start))
	return nil
}
