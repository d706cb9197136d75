// Package sqlite is an embedded vector store for running without a Chroma
// server.
//
// Records live in a single SQLite file (or ":memory:"), one row per chunk,
// with the embedding stored as a little-endian float32 blob. The well-known
// metadata fields (path, chunk_index, mtime) have their own indexed columns;
// any other field is kept in a JSON document and filtered with json_extract.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and ranks query candidates in Go
// by cosine distance. Building with the sqlite_vec tag switches to
// github.com/mattn/go-sqlite3 and ranks in SQL with vec_distance_cosine,
// falling back to Go ranking if the extension is not loaded.
//
// # Schema
//
// Migrations are tracked in schema_version and compared with semver, so a
// database created by an older build is upgraded in place by New.
package sqlite
