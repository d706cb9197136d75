// Package searcher answers natural-language queries against the workspace
// index.
//
// A query is embedded with the same backend the indexer uses, then matched
// against the collection by vector similarity. Results are ranked nearest
// first:
//
//	s := searcher.NewSearcher(store, emb)
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:    "where are retries configured",
//	    Limit:    6,
//	    UseCache: true,
//	})
//
// Responses can be cached in an LRU keyed by query and limit, each entry
// expiring after CacheTTL. InvalidateCache clears it; the binaries call it
// whenever an indexing run finishes.
package searcher
