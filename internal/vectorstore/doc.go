// Package vectorstore defines the vector store contract the indexer writes
// through, independent of any particular server.
//
// A Collection stores Records (id, document, metadata, embedding) and can be
// filtered with a Where, a conjunction of equality clauses. Writes go through
// a Writer chosen once per collection by NewWriter: Upsert when the backend
// supports replacing ids, Add otherwise.
//
// Backends live in subpackages: chroma (remote Chroma server) and sqlite
// (embedded database file).
package vectorstore
