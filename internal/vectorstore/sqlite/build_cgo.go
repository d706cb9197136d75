//go:build sqlite_vec
// +build sqlite_vec

package sqlite

// Compiled with CGO and the sqlite_vec tag. Query ranks in SQL with
// vec_distance_cosine when the sqlite-vec extension is loaded.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
