// Package indexer keeps a workspace's vector index in step with its files.
//
// # Basic Usage
//
//	store, _ := chroma.NewStore("http://localhost:8000", root)
//	emb, _ := embedder.New(embedder.Config{})
//
//	idx := indexer.New(store, emb, indexer.Config{
//	    Roots:     []string{root},
//	    BatchSize: 4,
//	})
//
//	// Background run, as triggered over HTTP or MCP
//	if _, err := idx.Start(ctx); errors.Is(err, indexer.ErrAlreadyRunning) {
//	    // a run is already in flight
//	}
//	state := idx.Progress()
//
// # Pipeline
//
// A run executes sequentially on one goroutine:
//
//  1. Open the collection; failure ends the run with ErrStoreUnavailable
//  2. Scan every root for candidate files
//  3. For each file, compare its mtime with the one stored on chunk 0 and
//     skip it when they match
//  4. Otherwise delete the file's stored chunks, then chunk, embed and write
//     the new ones in batches of Config.BatchSize
//
// An unreadable file is logged and passed over. A failed batch write aborts
// the run, as does anything unexpected, including a panic.
//
// # Progress
//
// The Tracker is the only state shared with callers. Every field is read and
// written under one mutex, snapshots are copies, and Begin both checks for a
// running run and resets the counters in the same critical section, so two
// concurrent starts can never both proceed.
//
// Skipped files count towards both total and processed chunks, so for a
// fully up-to-date workspace the two are equal when the run completes.
package indexer
