// Package chroma is a vector store backend for a Chroma server, spoken to
// over its v1 REST API.
//
// Collections on servers satisfying UpsertConstraint are returned as
// UpsertCollection; older servers get an AppendOnlyCollection, which only
// offers Add. vectorstore.NewWriter picks whichever is available.
package chroma
