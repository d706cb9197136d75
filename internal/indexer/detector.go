package indexer

import (
	"context"
	"log/slog"

	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

// Decision is the change detector's verdict for one file
type Decision int

const (
	// Reindex means the file must be chunked, embedded and written again
	Reindex Decision = iota
	// Skip means the stored chunks are current
	Skip
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "reindex"
}

// Detector decides whether a file's stored chunks are up to date by comparing
// the mtime recorded on its first chunk with the file's current mtime
type Detector struct {
	col vectorstore.Collection
}

// NewDetector returns a detector reading from col
func NewDetector(col vectorstore.Collection) *Detector {
	return &Detector{col: col}
}

// Check returns Skip only when chunk 0 of relPath exists and carries mtime.
// Lookup failures are not errors: the file is simply reindexed.
func (d *Detector) Check(ctx context.Context, relPath string, mtime int64) Decision {
	records, err := d.col.Get(ctx, vectorstore.FirstChunkOf(relPath))
	if err != nil {
		slog.Debug("up-to-date check failed, reindexing", "path", relPath, "error", err)
		return Reindex
	}
	if len(records) == 0 {
		return Reindex
	}

	meta, ok := types.MetadataFromMap(records[0].Metadata)
	if !ok || meta.MTime != mtime {
		return Reindex
	}
	return Skip
}
