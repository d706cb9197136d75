// Package types provides shared type definitions for the codeindex service.
//
// # Chunks
//
// A Chunk is a character-offset slice of one workspace file. Its storage identity
// is the pair (path, index), serialized as "<path>:<index>":
//
//	c := types.Chunk{Path: "internal/app/main.go", Index: 2, Text: text}
//	c.ID() // "internal/app/main.go:2"
//
// Paths are always relative to the workspace root containing the file, so ids are
// portable across machines that check the workspace out in different places.
//
// # Metadata
//
// ChunkMetadata is stored next to every vector. MTime is the fingerprint used to
// decide whether a file needs re-indexing; only the record of chunk 0 is consulted.
//
//	meta := c.Metadata(info.ModTime().Unix())
//	fields := meta.AsMap() // {"path": ..., "chunk_index": 2, "mtime": ...}
package types
