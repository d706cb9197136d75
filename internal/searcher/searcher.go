package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/vectorstore"
	"github.com/dshills/codeindex/pkg/types"
)

const (
	// DefaultLimit is the number of results returned when none is requested
	DefaultLimit = 6
	// MaxLimit caps the number of results per query
	MaxLimit = 100
	// DefaultCacheTTL is how long a cached response stays valid
	DefaultCacheTTL = 5 * time.Minute

	cacheSize = 1000
)

var (
	// ErrEmptyQuery is returned for a blank query
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrStoreUnavailable is returned when the vector store cannot be reached
	ErrStoreUnavailable = errors.New("vector store is unreachable")
	// ErrEmbedFailed is returned when the query cannot be embedded
	ErrEmbedFailed = errors.New("failed to embed query text")
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int           // Number of results (default DefaultLimit, max MaxLimit)
	UseCache bool          // Whether to use the response cache
	CacheTTL time.Duration // Default DefaultCacheTTL
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Duration     time.Duration
	CacheHit     bool
}

// Documents returns the text of each result in rank order
func (r *SearchResponse) Documents() []string {
	docs := make([]string, len(r.Results))
	for i, res := range r.Results {
		docs[i] = res.Document
	}
	return docs
}

// Metadatas returns the metadata of each result in rank order
func (r *SearchResponse) Metadatas() []types.ChunkMetadata {
	metas := make([]types.ChunkMetadata, len(r.Results))
	for i, res := range r.Results {
		metas[i] = res.Metadata
	}
	return metas
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher answers similarity queries against the workspace collection,
// embedding queries with the same backend used for indexing
type Searcher struct {
	opener   vectorstore.Opener
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(opener vectorstore.Opener, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](cacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		opener:   opener,
		embedder: emb,
		cache:    cache,
	}
}

// Search returns the stored chunks nearest to the query
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	preview := queryPreview(req.Query)
	slog.Info("search", "limit", req.Limit, "query", preview)

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	col, err := s.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	vectors, err := embedder.EmbedTexts(ctx, s.embedder, []string{req.Query}, 1)
	if err != nil || len(vectors) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrEmbedFailed, err)
	}

	matches, err := col.Query(ctx, vectors[0], req.Limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := toResults(matches)
	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     time.Since(startTime),
	}
	slog.Info("search finished", "hits", response.TotalResults, "duration", response.Duration)

	if req.UseCache {
		s.storeInCache(req, response)
	}

	return response, nil
}

// toResults ranks matches from 1. Matches with no document or no resolvable
// path are dropped and do not take a rank.
func toResults(matches []vectorstore.Match) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(matches))
	for _, m := range matches {
		meta, ok := types.MetadataFromMap(m.Metadata)
		if !ok {
			if path, _, err := types.ParseChunkID(m.ID); err == nil {
				meta.Path = path
			}
		}
		r := types.SearchResult{
			ID:       m.ID,
			Rank:     len(results) + 1,
			Distance: m.Distance,
			Document: m.Document,
			Metadata: meta,
		}
		if err := r.Validate(); err != nil {
			slog.Warn("dropping unusable match", "id", m.ID, "error", err)
			continue
		}
		results = append(results, r)
	}
	return results
}

func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}

	return nil
}

func queryPreview(query string) string {
	if r := []rune(query); len(r) > 80 {
		query = string(r[:80])
	}
	return strings.ReplaceAll(query, "\n", `\n`)
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		// Remove expired entry - need write lock
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache.Add(computeQueryHash(req), &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	})
}

func copySearchResponse(src *SearchResponse) *SearchResponse {
	dst := *src
	dst.Results = append([]types.SearchResult(nil), src.Results...)
	return &dst
}

func computeQueryHash(req SearchRequest) [32]byte {
	h := sha256.New()
	h.Write([]byte(req.Query))
	var limit [8]byte
	binary.LittleEndian.PutUint64(limit[:], uint64(req.Limit))
	h.Write(limit[:])

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// InvalidateCache drops every cached response. Called when an indexing run
// finishes, since any stored chunk may have changed.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}
