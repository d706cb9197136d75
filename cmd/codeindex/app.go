package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/codeindex/internal/config"
	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/logging"
	"github.com/dshills/codeindex/internal/searcher"
	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/internal/vectorstore/chroma"
	"github.com/dshills/codeindex/internal/vectorstore/sqlite"
)

// app holds the components shared by every command. The embedder is shared
// by the indexer and the searcher so queries land in the same vector space.
type app struct {
	cfg      config.Config
	store    vectorstore.Opener
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logs     io.Closer
}

func newApp(cfg config.Config, console io.Writer) (*app, error) {
	logs, err := logging.ConfigureLogging(logging.Options{
		Level:   cfg.Log.Level,
		Dir:     cfg.Log.Dir,
		Console: console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	roots, err := cfg.Roots()
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	store, err := openStore(cfg, roots[0])
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	idx := indexer.New(store, emb, indexer.Config{
		Roots:     roots,
		BatchSize: cfg.BatchSize,
	})
	srch := searcher.NewSearcher(store, emb)
	idx.OnRunFinished(func(indexer.State) { srch.InvalidateCache() })

	slog.Info("index service configured",
		"roots", roots,
		"store", cfg.Store.Kind,
		"endpoint", store.Endpoint(),
		"embedder", emb.Provider(),
		"model", emb.Model(),
		"batch_size", cfg.BatchSize)

	return &app{
		cfg:      cfg,
		store:    store,
		embedder: emb,
		indexer:  idx,
		searcher: srch,
		logs:     logs,
	}, nil
}

// openStore builds the configured vector store for the primary root's collection
func openStore(cfg config.Config, primary string) (vectorstore.Opener, error) {
	switch cfg.Store.Kind {
	case config.StoreSQLite:
		if cfg.Store.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		store, err := sqlite.New(cfg.Store.SQLitePath, primary)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreChroma, "":
		store, err := chroma.NewStore(cfg.Store.ChromaURL, primary)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", vectorstore.ErrUnsupportedKind, cfg.Store.Kind)
	}
}

// Close releases the store, embedder and log file. A background run still in
// flight fails on its next store call.
func (a *app) Close() error {
	_ = a.embedder.Close()
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}
