package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/dshills/codeindex/internal/vectorstore"
)

// Query returns the k records nearest to vector by cosine distance
func (c *Collection) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	if k <= 0 || len(vector) == 0 {
		return []vectorstore.Match{}, nil
	}

	// Use SQL-side ranking when sqlite-vec is available
	if VectorExtensionAvailable {
		matches, err := c.queryOptimized(ctx, vector, k)
		if err == nil {
			return matches, nil
		}
		slog.Debug("sqlite-vec query failed, ranking in Go", "error", err)
	}
	return c.queryFallback(ctx, vector, k)
}

// queryOptimized uses the sqlite-vec extension to rank in SQL
func (c *Collection) queryOptimized(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	query := `
		SELECT id, document, path, chunk_index, mtime, metadata, vector,
			vec_distance_cosine(vector, ?) AS distance
		FROM records
		WHERE collection_id = ? AND dimension = ?
		ORDER BY distance ASC
		LIMIT ?
	`
	rows, err := c.db.QueryContext(ctx, query, serializeVector(vector), c.id, len(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]vectorstore.Match, 0, k)
	for rows.Next() {
		var distance float64
		rec, err := scanRecord(scanFunc(func(dest ...interface{}) error {
			return rows.Scan(append(dest, &distance)...)
		}))
		if err != nil {
			return nil, err
		}
		matches = append(matches, vectorstore.Match{Record: rec, Distance: distance})
	}
	return matches, rows.Err()
}

type scanFunc func(dest ...interface{}) error

func (f scanFunc) Scan(dest ...interface{}) error {
	return f(dest...)
}

// queryFallback loads candidate vectors and ranks them in Go
func (c *Collection) queryFallback(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	query := `
		SELECT id, document, path, chunk_index, mtime, metadata, vector
		FROM records
		WHERE collection_id = ? AND dimension = ?
	`
	rows, err := c.db.QueryContext(ctx, query, c.id, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []vectorstore.Match
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, vectorstore.Match{
			Record:   rec,
			Distance: 1 - cosineSimilarity(vector, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortMatches(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// sortMatches orders by distance ascending, ties broken by id for stable output
func sortMatches(matches []vectorstore.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
