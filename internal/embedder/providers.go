package embedder

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderHash   = "hash"

	// ProviderLocal is accepted as an alias of ProviderHash
	ProviderLocal = "local"

	// Default models
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"
	HashModel          = "sha1-bytes"

	// Default endpoints
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"

	// Dimensions
	OpenAIDimension = 1536
	JinaDimension   = 1024
	HashDimension   = sha1.Size

	// Batch limits
	MaxBatchSize = 100

	requestTimeout = 30 * time.Second
)

// apiClient speaks the OpenAI-compatible /embeddings protocol shared by the
// network providers. One HTTP attempt is made per call.
type apiClient struct {
	provider   string
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

func newAPIClient(provider, baseURL, apiKey, model string, dimension int, cache *Cache) *apiClient {
	return &apiClient{
		provider:  provider,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		cache: cache,
	}
}

func (a *apiClient) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if a.cache != nil {
		if emb, ok := a.cache.Get(hash); ok {
			return emb, nil
		}
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	embeddings, err := a.callAPI(ctx, []string{req.Text}, model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: %d vectors for a single text", ErrShapeMismatch, len(embeddings))
	}

	emb := embeddings[0]
	emb.Hash = hash
	if a.cache != nil {
		a.cache.Set(hash, emb)
	}
	return emb, nil
}

func (a *apiClient) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	embeddings, err := a.callAPI(ctx, req.Texts, model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	// Only cache when the response lines up with the request
	if a.cache != nil && len(embeddings) == len(req.Texts) {
		for i, emb := range embeddings {
			hash := ComputeHash(req.Texts[i])
			emb.Hash = hash
			a.cache.Set(hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   a.provider,
		Model:      model,
	}, nil
}

func (a *apiClient) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	sort.SliceStable(apiResp.Data, func(i, j int) bool {
		return apiResp.Data[i].Index < apiResp.Data[j].Index
	})

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  a.provider,
			Model:     apiResp.Model,
		}
	}

	return embeddings, nil
}

func (a *apiClient) Dimension() int {
	return a.dimension
}

func (a *apiClient) Provider() string {
	return a.provider
}

func (a *apiClient) Model() string {
	return a.model
}

func (a *apiClient) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	*apiClient
}

// NewOpenAIProvider creates a new OpenAI embedder. An empty model or baseURL
// selects the defaults.
func NewOpenAIProvider(apiKey, model, baseURL string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		apiClient: newAPIClient(ProviderOpenAI, baseURL, apiKey, model, OpenAIDimension, cache),
	}, nil
}

// JinaProvider implements Embedder using the Jina AI embeddings API
type JinaProvider struct {
	*apiClient
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(apiKey, model, baseURL string, cache *Cache) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	if model == "" {
		model = DefaultJinaModel
	}
	if baseURL == "" {
		baseURL = DefaultJinaBaseURL
	}
	return &JinaProvider{
		apiClient: newAPIClient(ProviderJina, baseURL, apiKey, model, JinaDimension, cache),
	}, nil
}

// HashProvider produces deterministic pseudo-embeddings without network access.
// Each vector is the SHA-1 digest of the text with every byte scaled to [0, 1].
// Semantic quality is poor, but indexing always succeeds.
type HashProvider struct{}

// NewHashProvider creates a new hash embedder
func NewHashProvider() *HashProvider {
	return &HashProvider{}
}

// HashVector returns the hash embedding of text
func HashVector(text string) []float32 {
	digest := sha1.Sum([]byte(text))
	vector := make([]float32, len(digest))
	for i, b := range digest {
		vector[i] = float32(b) / 255.0
	}
	return vector
}

func (h *HashProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	return &Embedding{
		Vector:    HashVector(req.Text),
		Dimension: HashDimension,
		Provider:  ProviderHash,
		Model:     HashModel,
		Hash:      ComputeHash(req.Text),
	}, nil
}

func (h *HashProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := h.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderHash,
		Model:      HashModel,
	}, nil
}

func (h *HashProvider) Dimension() int {
	return HashDimension
}

func (h *HashProvider) Provider() string {
	return ProviderHash
}

func (h *HashProvider) Model() string {
	return HashModel
}

func (h *HashProvider) Close() error {
	return nil
}
