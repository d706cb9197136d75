package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dshills/codeindex/internal/chunker"
	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/scanner"
	"github.com/dshills/codeindex/internal/vectorstore"
)

// ErrStoreUnavailable is returned when the vector store cannot be reached at
// the start of a run
var ErrStoreUnavailable = errors.New("vector store unavailable")

// DefaultBatchSize is the number of chunks embedded and written together
const DefaultBatchSize = 4

// Config contains configuration for the indexer
type Config struct {
	Roots     []string // Primary workspace root first; at least one required
	BatchSize int      // Chunks per flush (default: DefaultBatchSize)
}

// Outcome is what happened to one file during a run
type Outcome int

const (
	OutcomeIndexed Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// FileResult describes the handling of one file
type FileResult struct {
	Path    string
	Outcome Outcome
	Chunks  int
	Reason  string // Set for OutcomeFailed
}

// Summary contains statistics about a run
type Summary struct {
	RunID    string
	Indexed  int
	Skipped  int
	Failed   int
	Chunks   int
	Duration time.Duration
}

func (s *Summary) record(res FileResult) {
	switch res.Outcome {
	case OutcomeIndexed:
		s.Indexed++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Chunks += res.Chunks
}

// Indexer runs the indexing pipeline: scan -> detect changes -> chunk -> embed -> store.
// At most one run is in flight at a time.
type Indexer struct {
	roots     []string
	batchSize int
	opener    vectorstore.Opener
	emb       embedder.Embedder
	chunker   *chunker.Chunker
	progress  *Tracker

	mu       sync.Mutex
	finished []func(State)
	wg       sync.WaitGroup
}

// New creates a new Indexer
func New(opener vectorstore.Opener, emb embedder.Embedder, config Config) *Indexer {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultBatchSize
	}
	return &Indexer{
		roots:     config.Roots,
		batchSize: config.BatchSize,
		opener:    opener,
		emb:       emb,
		chunker:   chunker.New(),
		progress:  NewTracker(),
	}
}

// Progress returns a snapshot of the current or last run
func (idx *Indexer) Progress() State {
	return idx.progress.Snapshot()
}

// OnRunFinished registers fn to be called with the final state of every run
func (idx *Indexer) OnRunFinished(fn func(State)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.finished = append(idx.finished, fn)
}

// Start launches a run in the background and returns immediately. It returns
// ErrAlreadyRunning, without touching progress, when a run is in flight.
// The run is not tied to ctx's cancellation.
func (idx *Indexer) Start(ctx context.Context) (string, error) {
	runID, err := idx.progress.Begin()
	if err != nil {
		return "", err
	}

	runCtx := context.WithoutCancel(ctx)
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		_, _ = idx.execute(runCtx, runID)
	}()
	return runID, nil
}

// Run performs one run synchronously. It is subject to the same single-run
// rule as Start.
func (idx *Indexer) Run(ctx context.Context) (Summary, error) {
	runID, err := idx.progress.Begin()
	if err != nil {
		return Summary{}, err
	}
	return idx.execute(ctx, runID)
}

// Wait blocks until background runs launched by Start have finished
func (idx *Indexer) Wait() {
	idx.wg.Wait()
}

// execute drives one run. Every failure, including a panic, ends in the
// error state rather than escaping.
func (idx *Indexer) execute(ctx context.Context, runID string) (summary Summary, err error) {
	start := time.Now()
	summary.RunID = runID
	log := slog.With("run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("indexing panicked: %v", r)
		}
		summary.Duration = time.Since(start)
		if err != nil {
			idx.progress.Fail(err)
			log.Error("indexing run failed", "error", err, "duration", summary.Duration)
		} else {
			idx.progress.Complete()
			log.Info("indexing completed",
				"indexed", summary.Indexed, "skipped", summary.Skipped, "failed", summary.Failed,
				"chunks", summary.Chunks, "duration", summary.Duration)
		}
		idx.notifyFinished()
	}()

	log.Info("starting workspace index run", "roots", idx.roots, "batch_size", idx.batchSize)

	if len(idx.roots) == 0 {
		return summary, errors.New("no workspace roots configured")
	}

	col, err := idx.opener.Open(ctx)
	if err != nil {
		return summary, fmt.Errorf("%w: unable to connect to the vector store at %s, make sure it is running: %w",
			ErrStoreUnavailable, idx.opener.Endpoint(), err)
	}

	writer, err := NewWriter(col, idx.emb, idx.progress, idx.batchSize)
	if err != nil {
		return summary, err
	}
	detector := NewDetector(col)

	files := scanner.Scan(ctx, idx.roots)
	idx.progress.SetTotalFiles(len(files))
	log.Info("discovered candidate files", "files", len(files),
		"duration", time.Since(start), "mode", writer.Mode())

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		idx.progress.StartFile(file.Path, i+1)

		res, err := idx.indexFile(ctx, detector, writer, file)
		if err != nil {
			return summary, err
		}
		summary.record(res)

		log.Debug("file handled", "path", res.Path, "outcome", res.Outcome.String(),
			"chunks", res.Chunks, "progress", fmt.Sprintf("%d/%d", i+1, len(files)))
	}

	return summary, nil
}

// indexFile handles one file. Only errors that must abort the run are returned.
func (idx *Indexer) indexFile(ctx context.Context, detector *Detector, writer *Writer, file scanner.SourceFile) (FileResult, error) {
	relPath := scanner.Relative(idx.roots, file.Path)
	res := FileResult{Path: relPath}

	// The scan's mtime is what gets stored. A file modified after the scan
	// carries a newer mtime on the next run and is reindexed then.
	mtime := file.ModTime

	if detector.Check(ctx, relPath, mtime) == Skip {
		res.Outcome = OutcomeSkipped
		res.Chunks = idx.storedChunkCount(file)
		idx.progress.SkipChunks(res.Chunks)
		return res, nil
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		slog.Warn("failed to read file, skipping", "path", file.Path, "error", err)
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		return res, nil
	}

	n, err := writer.WriteFile(ctx, relPath, mtime, chunker.Normalize(data))
	if err != nil {
		return res, err
	}

	res.Outcome = OutcomeIndexed
	res.Chunks = n
	return res, nil
}

// storedChunkCount estimates the chunk count of an unchanged file from its
// character length, falling back to its byte size when it cannot be read.
// Chunk boundaries are in characters, so multibyte text needs the read: the
// byte size alone would overcount and total_chunks would not match what a
// reindex writes.
func (idx *Indexer) storedChunkCount(file scanner.SourceFile) int {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return idx.chunker.Count(int(file.Size))
	}
	return idx.chunker.Count(utf8.RuneCountInString(chunker.Normalize(data)))
}

func (idx *Indexer) notifyFinished() {
	idx.mu.Lock()
	hooks := append([]func(State){}, idx.finished...)
	idx.mu.Unlock()

	state := idx.progress.Snapshot()
	for _, fn := range hooks {
		fn(state)
	}
}
