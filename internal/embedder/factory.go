package embedder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Environment variables consulted by the configuration layer
const (
	EnvProvider     = "CODEINDEX_EMBEDDING_PROVIDER"
	EnvAPIVersion   = "CODEINDEX_EMBEDDING_API_VERSION"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIModel  = "OPENAI_EMBEDDING_MODEL"
	EnvJinaAPIKey   = "JINA_API_KEY"
)

// SupportedAPIVersions is the semver constraint a configured embeddings API
// version must satisfy for a network provider to be selected
const SupportedAPIVersions = ">= 1.0.0, < 2.0.0"

// Config holds embedder configuration
type Config struct {
	Provider      string // Explicit provider; empty means auto-detect
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	JinaKey       string
	JinaModel     string
	JinaBaseURL   string
	APIVersion    string // Optional embeddings API version; empty means compatible
	CacheSize     int
}

// New selects and creates the embedding backend. It is called once at startup.
//
// Selection order:
//  1. An explicit Provider ("openai", "jina", "hash"/"local")
//  2. OpenAI when OpenAIKey is set, then Jina when JinaKey is set
//  3. The deterministic hash embedder
//
// A network provider whose credential is missing, or whose configured API
// version is incompatible, degrades to the hash embedder with a warning.
func New(cfg Config) (Embedder, error) {
	provider := DetectProvider(cfg)

	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch provider {
	case ProviderHash:
		return NewHashProvider(), nil
	case ProviderOpenAI, ProviderJina:
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}

	if err := checkAPIVersion(cfg.APIVersion); err != nil {
		slog.Warn("embedding API version incompatible, using hash embeddings",
			"provider", provider, "error", err)
		return NewHashProvider(), nil
	}

	var (
		emb Embedder
		err error
	)
	if provider == ProviderOpenAI {
		emb, err = NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cache)
	} else {
		emb, err = NewJinaProvider(cfg.JinaKey, cfg.JinaModel, cfg.JinaBaseURL, cache)
	}
	if err != nil {
		slog.Warn("network embeddings unavailable, using hash embeddings",
			"provider", provider, "error", err)
		return NewHashProvider(), nil
	}
	return emb, nil
}

// DetectProvider returns the provider New would attempt for cfg
func DetectProvider(cfg Config) string {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == ProviderLocal {
		return ProviderHash
	}
	if provider != "" {
		return provider
	}

	if cfg.OpenAIKey != "" {
		return ProviderOpenAI
	}
	if cfg.JinaKey != "" {
		return ProviderJina
	}

	return ProviderHash
}

func checkAPIVersion(version string) error {
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid API version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(SupportedAPIVersions)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("API version %s does not satisfy %s", v, SupportedAPIVersions)
	}
	return nil
}
