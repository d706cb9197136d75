package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/codeindex/internal/vectorstore"
)

// Store is an embedded vector store backed by a SQLite database file
type Store struct {
	db         *sql.DB
	path       string
	collection string

	mu  sync.Mutex
	col *Collection
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; it also keeps ":memory:" to one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// New opens (creating if needed) the database at dbPath and returns a store
// for the collection of workspace root. Use ":memory:" for a throwaway store.
func New(dbPath, root string) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Store{
		db:         db,
		path:       dbPath,
		collection: vectorstore.CollectionName(root),
	}, nil
}

// Open returns the workspace collection, creating it on first use
func (s *Store) Open(ctx context.Context) (vectorstore.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.col != nil {
		return s.col, nil
	}

	col, err := s.getOrCreateCollection(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", vectorstore.ErrUnavailable, s.Endpoint(), err)
	}
	s.col = col
	return col, nil
}

func (s *Store) getOrCreateCollection(ctx context.Context, name string) (*Collection, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name); err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vectorstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", name, err)
	}

	return &Collection{db: s.db, id: id, name: name}, nil
}

// Endpoint describes the database location
func (s *Store) Endpoint() string {
	return "sqlite://" + s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

var _ vectorstore.Opener = (*Store)(nil)
