//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package sqlite

// Compiled by default. Uses a pure Go SQLite without the sqlite-vec
// extension; Query ranks records in Go.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
