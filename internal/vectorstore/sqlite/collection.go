package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

// Collection is one named set of records in the database
type Collection struct {
	db   *sql.DB
	id   int64
	name string
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Metadata fields with their own columns; other fields are matched inside
// the JSON metadata document
var metadataColumns = map[string]string{
	types.MetaPath:       "path",
	types.MetaChunkIndex: "chunk_index",
	types.MetaMTime:      "mtime",
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.name
}

// whereClause renders w as SQL conditions appended after collection_id = ?
func (c *Collection) whereClause(w vectorstore.Where) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("collection_id = ?")
	args := []interface{}{c.id}

	for _, eq := range w {
		if col, ok := metadataColumns[eq.Field]; ok {
			sb.WriteString(" AND " + col + " = ?")
		} else {
			sb.WriteString(" AND json_extract(metadata, ?) = ?")
			args = append(args, `$."`+strings.ReplaceAll(eq.Field, `"`, `\"`)+`"`)
		}
		args = append(args, eq.Value)
	}
	return sb.String(), args
}

// Get returns the records matching where
func (c *Collection) Get(ctx context.Context, where vectorstore.Where) ([]vectorstore.Record, error) {
	cond, args := c.whereClause(where)
	query := `
		SELECT id, document, path, chunk_index, mtime, metadata, vector
		FROM records
		WHERE ` + cond + `
		ORDER BY path, chunk_index
	`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []vectorstore.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the records matching where
func (c *Collection) Delete(ctx context.Context, where vectorstore.Where) error {
	cond, args := c.whereClause(where)
	if _, err := c.db.ExecContext(ctx, "DELETE FROM records WHERE "+cond, args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Count returns the number of records in the collection
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE collection_id = ?", c.id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Upsert inserts records in one transaction, replacing existing ids
func (c *Collection) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		if err := c.upsertWithQuerier(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *Collection) upsertWithQuerier(ctx context.Context, q querier, rec vectorstore.Record) error {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", rec.ID, err)
	}

	var path, chunkIndex, mtime interface{}
	if cm, ok := types.MetadataFromMap(meta); ok {
		path, chunkIndex, mtime = cm.Path, cm.ChunkIndex, cm.MTime
	} else if p, ok := meta[types.MetaPath].(string); ok {
		path = p
	}

	query := `
		INSERT INTO records (collection_id, id, document, path, chunk_index, mtime, metadata, vector, dimension, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			document = excluded.document,
			path = excluded.path,
			chunk_index = excluded.chunk_index,
			mtime = excluded.mtime,
			metadata = excluded.metadata,
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		c.id, rec.ID, rec.Document, path, chunkIndex, mtime, string(metaJSON),
		serializeVector(rec.Embedding), len(rec.Embedding), time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (vectorstore.Record, error) {
	var (
		rec        vectorstore.Record
		path       sql.NullString
		chunkIndex sql.NullInt64
		mtime      sql.NullInt64
		metaJSON   string
		vectorBlob []byte
	)
	if err := row.Scan(&rec.ID, &rec.Document, &path, &chunkIndex, &mtime, &metaJSON, &vectorBlob); err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Metadata = map[string]any{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("failed to decode metadata for %s: %w", rec.ID, err)
		}
	}
	if path.Valid {
		rec.Metadata[types.MetaPath] = path.String
	}
	if chunkIndex.Valid {
		rec.Metadata[types.MetaChunkIndex] = chunkIndex.Int64
	}
	if mtime.Valid {
		rec.Metadata[types.MetaMTime] = mtime.Int64
	}
	rec.Embedding = deserializeVector(vectorBlob)
	return rec, nil
}

var (
	_ vectorstore.Collection = (*Collection)(nil)
	_ vectorstore.Upserter   = (*Collection)(nil)
)
