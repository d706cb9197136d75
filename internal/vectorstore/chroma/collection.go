package chroma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dshills/codeindex/internal/vectorstore"
)

// Collection is a Chroma collection addressed by id. It offers the read and
// delete operations every server version supports; UpsertCollection and
// AppendOnlyCollection add the write capability.
type Collection struct {
	client *Client
	base   string // route of this collection, API generation included
	name   string
}

// UpsertCollection is a collection on a server that supports upsert
type UpsertCollection struct {
	*Collection
}

// AppendOnlyCollection is a collection on a server that only supports add
type AppendOnlyCollection struct {
	*Collection
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) path(op string) string {
	return c.base + "/" + op
}

type getRequest struct {
	Where   vectorstore.Where `json:"where,omitempty"`
	Include []string          `json:"include"`
}

type getResponse struct {
	IDs       []string         `json:"ids"`
	Documents []*string        `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// Get returns documents and metadatas of the records matching where
func (c *Collection) Get(ctx context.Context, where vectorstore.Where) ([]vectorstore.Record, error) {
	req := getRequest{Where: where, Include: []string{"documents", "metadatas"}}

	var resp getResponse
	if err := c.client.do(ctx, http.MethodPost, c.path("get"), req, &resp); err != nil {
		return nil, fmt.Errorf("get from %s: %w", c.name, err)
	}

	records := make([]vectorstore.Record, len(resp.IDs))
	for i, id := range resp.IDs {
		records[i].ID = id
		if i < len(resp.Documents) && resp.Documents[i] != nil {
			records[i].Document = *resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			records[i].Metadata = resp.Metadatas[i]
		}
	}
	return records, nil
}

// Delete removes the records matching where
func (c *Collection) Delete(ctx context.Context, where vectorstore.Where) error {
	req := map[string]any{"where": where}
	if err := c.client.do(ctx, http.MethodPost, c.path("delete"), req, nil); err != nil {
		return fmt.Errorf("delete from %s: %w", c.name, err)
	}
	return nil
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]*string        `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// Query returns the k records nearest to vector
func (c *Collection) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	req := queryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        k,
		Include:         []string{"documents", "metadatas", "distances"},
	}

	var resp queryResponse
	if err := c.client.do(ctx, http.MethodPost, c.path("query"), req, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	ids := resp.IDs[0]
	matches := make([]vectorstore.Match, len(ids))
	for i, id := range ids {
		matches[i].ID = id
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) && resp.Documents[0][i] != nil {
			matches[i].Document = *resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			matches[i].Metadata = resp.Metadatas[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			matches[i].Distance = resp.Distances[0][i]
		}
	}
	return matches, nil
}

// Count returns the number of records in the collection
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.client.do(ctx, http.MethodGet, c.path("count"), nil, &n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}

type writeRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

func newWriteRequest(records []vectorstore.Record) writeRequest {
	req := writeRequest{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Documents:  make([]string, len(records)),
		Metadatas:  make([]map[string]any, len(records)),
	}
	for i, r := range records {
		req.IDs[i] = r.ID
		req.Embeddings[i] = r.Embedding
		req.Documents[i] = r.Document
		req.Metadatas[i] = r.Metadata
	}
	return req
}

func (c *Collection) write(ctx context.Context, op string, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}
	if err := c.client.do(ctx, http.MethodPost, c.path(op), newWriteRequest(records), nil); err != nil {
		return fmt.Errorf("%s into %s: %w", op, c.name, err)
	}
	return nil
}

// Upsert inserts records, replacing those whose id already exists
func (c *UpsertCollection) Upsert(ctx context.Context, records []vectorstore.Record) error {
	return c.write(ctx, "upsert", records)
}

// Add inserts records. The server rejects ids that already exist.
func (c *AppendOnlyCollection) Add(ctx context.Context, records []vectorstore.Record) error {
	err := c.write(ctx, "add", records)
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Body), "exist") {
		return fmt.Errorf("%w: %v", vectorstore.ErrDuplicateID, err)
	}
	return err
}

var (
	_ vectorstore.Collection = (*UpsertCollection)(nil)
	_ vectorstore.Upserter   = (*UpsertCollection)(nil)
	_ vectorstore.Collection = (*AppendOnlyCollection)(nil)
	_ vectorstore.Appender   = (*AppendOnlyCollection)(nil)
)
