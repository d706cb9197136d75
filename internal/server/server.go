package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/logging"
	"github.com/dshills/codeindex/internal/searcher"
	"github.com/dshills/codeindex/pkg/types"
)

// Indexer is the part of the indexing service the HTTP surface drives
type Indexer interface {
	Start(ctx context.Context) (string, error)
	Progress() indexer.State
}

// Searcher answers similarity queries
type Searcher interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// cacheSizer is implemented by searchers that cache responses
type cacheSizer interface {
	CacheLen() int
}

// Info describes the configured backends for /healthz
type Info struct {
	Embedder string `json:"embedder"`
	Store    string `json:"store"`
	Endpoint string `json:"endpoint"`
	Version  string `json:"version"`
}

// Server exposes indexing and search over HTTP
type Server struct {
	indexer  Indexer
	searcher Searcher
	info     Info
	engine   *gin.Engine
	http     *http.Server
}

// SearchBody is the /search request payload
type SearchBody struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// LogLevelBody is the /log-level request and response payload
type LogLevelBody struct {
	Level string `json:"level"`
}

// SearchResult is the /search response payload
type SearchResult struct {
	Documents []string              `json:"documents"`
	Metadatas []types.ChunkMetadata `json:"metadatas"`
}

// New builds the router. Call ListenAndServe to accept connections.
func New(addr string, idx Indexer, srch Searcher, info Info) *Server {
	s := &Server{
		indexer:  idx,
		searcher: srch,
		info:     info,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.POST("/index", s.startIndexing)
	r.GET("/index/status", s.indexStatus)
	r.POST("/search", s.search)
	r.GET("/healthz", s.health)
	r.GET("/log-level", s.logLevel)
	r.PUT("/log-level", s.setLogLevel)
	s.engine = r

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) ListenAndServe() error {
	slog.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) startIndexing(c *gin.Context) {
	runID, err := s.indexer.Start(c.Request.Context())
	if errors.Is(err, indexer.ErrAlreadyRunning) {
		slog.Warn("index request rejected, a run is already in progress")
		c.JSON(http.StatusConflict, gin.H{"detail": "Indexing already in progress"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	slog.Info("index request accepted", "run_id", runID)
	c.JSON(http.StatusAccepted, gin.H{"detail": "Indexing started", "run_id": runID})
}

func (s *Server) indexStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.indexer.Progress())
}

func (s *Server) search(c *gin.Context) {
	var body SearchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if body.K <= 0 {
		body.K = searcher.DefaultLimit
	}

	resp, err := s.searcher.Search(c.Request.Context(), searcher.SearchRequest{
		Query:    body.Query,
		Limit:    body.K,
		UseCache: true,
	})
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Query cannot be empty"})
		return
	case errors.Is(err, searcher.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Vector store is unreachable"})
		return
	case errors.Is(err, searcher.ErrEmbedFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to embed query text"})
		return
	case err != nil:
		slog.Error("search failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, SearchResult{
		Documents: resp.Documents(),
		Metadatas: resp.Metadatas(),
	})
}

func (s *Server) health(c *gin.Context) {
	progress := s.indexer.Progress()
	resp := gin.H{
		"status":    "ok",
		"info":      s.info,
		"index":     progress.Status,
		"indexing":  progress.Running(),
		"log_level": logging.Level().String(),
	}
	if cs, ok := s.searcher.(cacheSizer); ok {
		resp["cached_searches"] = cs.CacheLen()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) logLevel(c *gin.Context) {
	c.JSON(http.StatusOK, LogLevelBody{Level: logging.Level().String()})
}

// setLogLevel changes the service log level without a restart
func (s *Server) setLogLevel(c *gin.Context) {
	var body LogLevelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	level, ok := logging.LookupLevel(body.Level)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unknown log level " + body.Level})
		return
	}

	logging.SetLogLevel(level)
	slog.Info("log level changed", "level", level.String())
	c.JSON(http.StatusOK, LogLevelBody{Level: level.String()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
