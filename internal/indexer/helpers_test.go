package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/internal/vectorstore/sqlite"
)

// mockEmbedder implements embedder.Embedder for testing. Hooks run before
// each call while no lock is held.
type mockEmbedder struct {
	mu          sync.Mutex
	batchCalls  int
	singleCalls int

	generateErr error
	beforeBatch func()
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.mu.Lock()
	m.singleCalls++
	err := m.generateErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &embedder.Embedding{Vector: embedder.HashVector(req.Text), Dimension: embedder.HashDimension}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	m.batchCalls++
	err := m.generateErr
	hook := m.beforeBatch
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		embeddings[i] = &embedder.Embedding{Vector: embedder.HashVector(text), Dimension: embedder.HashDimension}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return embedder.HashDimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls + m.singleCalls
}

// failingOpener simulates a store that cannot be reached
type failingOpener struct {
	endpoint string
}

func (f failingOpener) Open(context.Context) (vectorstore.Collection, error) {
	return nil, errors.New("connection refused")
}
func (f failingOpener) Endpoint() string { return f.endpoint }
func (f failingOpener) Close() error     { return nil }

// appendOnlyOpener exposes a store's collections through Add only
type appendOnlyOpener struct {
	vectorstore.Opener
}

type appendOnlyCollection struct {
	vectorstore.Collection
	upsert vectorstore.Upserter
}

func (c appendOnlyCollection) Add(ctx context.Context, records []vectorstore.Record) error {
	for _, r := range records {
		existing, err := c.Collection.Get(ctx, vectorstore.Where{
			{Field: "path", Value: r.Metadata["path"]},
			{Field: "chunk_index", Value: r.Metadata["chunk_index"]},
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return vectorstore.ErrDuplicateID
		}
	}
	return c.upsert.Upsert(ctx, records)
}

func (o appendOnlyOpener) Open(ctx context.Context) (vectorstore.Collection, error) {
	col, err := o.Opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	return appendOnlyCollection{Collection: col, upsert: col.(vectorstore.Upserter)}, nil
}

// newTestStore returns an in-memory store for root
func newTestStore(t *testing.T, root string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:", root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// writeFile writes content and pins its mtime so change detection is deterministic
func writeFile(t *testing.T, path, content string, mtime int64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	ts := time.Unix(mtime, 0)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func text(n int) string {
	return strings.Repeat("x", n)
}

func storedIDs(t *testing.T, store vectorstore.Opener, where vectorstore.Where) []string {
	t.Helper()
	col, err := store.Open(context.Background())
	require.NoError(t, err)
	records, err := col.Get(context.Background(), where)
	require.NoError(t, err)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
