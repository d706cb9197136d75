package chroma

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dshills/codeindex/internal/vectorstore"
)

// Store opens the workspace collection on a Chroma server
type Store struct {
	client     *Client
	collection string
}

// NewStore returns an opener for the collection of workspace root on the
// server at endpoint
func NewStore(endpoint, root string) (*Store, error) {
	client, err := NewClient(endpoint)
	if err != nil {
		return nil, err
	}
	return &Store{
		client:     client,
		collection: vectorstore.CollectionName(root),
	}, nil
}

// Open checks the server is reachable and returns the collection, creating
// it if necessary
func (s *Store) Open(ctx context.Context) (vectorstore.Collection, error) {
	if err := s.client.Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("%w at %s: %v", vectorstore.ErrUnavailable, s.client.Endpoint(), err)
	}

	col, err := s.client.GetOrCreateCollection(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", vectorstore.ErrUnavailable, s.client.Endpoint(), err)
	}

	if n, err := col.Count(ctx); err == nil {
		slog.Debug("chroma collection ready",
			"collection", col.Name(), "endpoint", s.client.Endpoint(),
			"api", s.client.APIVersion(), "count", n)
	}
	return col, nil
}

// Endpoint returns the server URL
func (s *Store) Endpoint() string {
	return s.client.Endpoint()
}

// Close releases the HTTP client
func (s *Store) Close() error {
	return s.client.Close()
}

var _ vectorstore.Opener = (*Store)(nil)
