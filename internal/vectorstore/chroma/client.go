package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/codeindex/internal/vectorstore"
)

const (
	// DefaultURL is used when no endpoint is configured
	DefaultURL = "http://localhost:8000"

	// DefaultTenant and DefaultDatabase scope collections on v2 servers
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"

	apiV1          = "/api/v1"
	apiV2          = "/api/v2"
	requestTimeout = 30 * time.Second
)

// UpsertConstraint is the server version range whose collections support upsert.
// Older servers only accept add.
const UpsertConstraint = ">= 0.4.0"

// Client talks to a Chroma server over its REST API. The API generation is
// detected on the first successful heartbeat: v2 (tenant and database scoped
// routes, Chroma 0.6 and later) is preferred, v1 is used for older servers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tenant     string
	database   string

	mu  sync.Mutex
	api string // apiV1 or apiV2; empty until detected
}

// NewClient validates endpoint and returns a client for it
func NewClient(endpoint string) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultURL
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid chroma url %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid chroma url %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid chroma url %q: missing host", endpoint)
	}

	return &Client{
		baseURL: endpoint,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		tenant:   DefaultTenant,
		database: DefaultDatabase,
	}, nil
}

// Endpoint returns the server base URL
func (c *Client) Endpoint() string {
	return c.baseURL
}

// Heartbeat checks that the server answers. Until the API generation is
// known it probes v2 first and falls back to v1.
func (c *Client) Heartbeat(ctx context.Context) error {
	if api := c.detectedAPI(); api != "" {
		var resp map[string]any
		return c.do(ctx, http.MethodGet, api+"/heartbeat", nil, &resp)
	}

	var firstErr error
	for _, api := range []string{apiV2, apiV1} {
		var resp map[string]any
		err := c.do(ctx, http.MethodGet, api+"/heartbeat", nil, &resp)
		if err == nil {
			c.mu.Lock()
			c.api = api
			c.mu.Unlock()
			slog.Debug("chroma API detected", "endpoint", c.baseURL, "api", api)
			return nil
		}

		// A transport failure will not improve on the other route set
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// APIVersion returns "v1" or "v2" once a heartbeat has succeeded, or "" before
func (c *Client) APIVersion() string {
	return strings.TrimPrefix(c.detectedAPI(), "/api/")
}

func (c *Client) detectedAPI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

// ensureAPI returns the detected API prefix, detecting it when needed
func (c *Client) ensureAPI(ctx context.Context) (string, error) {
	if api := c.detectedAPI(); api != "" {
		return api, nil
	}
	if err := c.Heartbeat(ctx); err != nil {
		return "", err
	}
	return c.detectedAPI(), nil
}

// collectionsPath is the route under which collections live for api
func (c *Client) collectionsPath(api string) string {
	if api == apiV2 {
		return apiV2 + "/tenants/" + url.PathEscape(c.tenant) +
			"/databases/" + url.PathEscape(c.database) + "/collections"
	}
	return apiV1 + "/collections"
}

// Version returns the server version
func (c *Client) Version(ctx context.Context) (*semver.Version, error) {
	api, err := c.ensureAPI(ctx)
	if err != nil {
		return nil, err
	}

	var raw string
	if err := c.do(ctx, http.MethodGet, api+"/version", nil, &raw); err != nil {
		return nil, err
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("parse server version %q: %w", raw, err)
	}
	return v, nil
}

// SupportsUpsert reports whether a server of version v accepts upsert
func SupportsUpsert(v *semver.Version) bool {
	constraint, err := semver.NewConstraint(UpsertConstraint)
	if err != nil {
		return false
	}
	return constraint.Check(v)
}

type collectionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetOrCreateCollection returns the collection called name, creating it when
// it does not exist. The collection supports upsert unless the server is older
// than UpsertConstraint.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (vectorstore.Collection, error) {
	body := map[string]any{
		"name":          name,
		"get_or_create": true,
	}

	api, err := c.ensureAPI(ctx)
	if err != nil {
		return nil, err
	}
	base := c.collectionsPath(api)

	var info collectionInfo
	if err := c.do(ctx, http.MethodPost, base, body, &info); err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("get or create collection %s: %w", name, vectorstore.ErrNotFound)
	}

	col := &Collection{client: c, base: base + "/" + url.PathEscape(info.ID), name: info.Name}

	// An unknown version is treated as current
	if v, err := c.Version(ctx); err == nil && !SupportsUpsert(v) {
		return &AppendOnlyCollection{Collection: col}, nil
	}
	return &UpsertCollection{Collection: col}, nil
}

// APIError is a non-2xx response from the server
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chroma api error %d: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", vectorstore.ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
