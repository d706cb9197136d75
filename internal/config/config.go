package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/scanner"
)

// Environment variables
const (
	EnvConfigFile = "CODEINDEX_CONFIG"
	EnvWorkspace  = "CODEX_WORKSPACE"
	EnvExtraPaths = "CODEX_EXTRA_PATHS"
	EnvChromaURL  = "CHROMA_URL"
	EnvChromaURL2 = "CHROMADB_URL"
	EnvBatchSize  = "CODEX_INDEX_BATCH_SIZE"
	EnvLogLevel   = "CODEX_LOG_LEVEL"
	EnvLogDir     = "CODEX_LOG_DIR"
	EnvHost       = "INDEX_SERVICE_HOST"
	EnvPort       = "PORT"
	EnvStore      = "CODEINDEX_STORE"
	EnvSQLitePath = "CODEINDEX_SQLITE_PATH"
	EnvJinaModel  = "JINA_EMBEDDING_MODEL"
)

// Defaults
const (
	DefaultChromaURL   = "http://localhost:8000"
	DefaultBatchSize   = 4
	DefaultLogLevel    = "DEBUG"
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8034
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultCacheSize   = 1000

	// FileName is the per-workspace config file looked up in the primary root
	FileName = ".codeindex.toml"
)

// Store kinds
const (
	StoreChroma = "chroma"
	StoreSQLite = "sqlite"
)

var (
	// ErrInvalidConfig is returned by Validate
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the process configuration shared by every command
type Config struct {
	Workspace  string          `toml:"workspace"`
	ExtraPaths []string        `toml:"extra_paths"`
	BatchSize  int             `toml:"batch_size"`
	Store      StoreConfig     `toml:"store"`
	Embedding  EmbeddingConfig `toml:"embedding"`
	Log        LogConfig       `toml:"log"`
	Server     ServerConfig    `toml:"server"`
}

// StoreConfig selects the vector store backend
type StoreConfig struct {
	Kind       string `toml:"kind"`
	ChromaURL  string `toml:"chroma_url"`
	SQLitePath string `toml:"sqlite_path"`
}

// EmbeddingConfig selects the embedding backend
type EmbeddingConfig struct {
	Provider      string `toml:"provider"`
	APIVersion    string `toml:"api_version"`
	OpenAIKey     string `toml:"-"`
	OpenAIModel   string `toml:"openai_model"`
	OpenAIBaseURL string `toml:"openai_base_url"`
	JinaKey       string `toml:"-"`
	JinaModel     string `toml:"jina_model"`
	JinaBaseURL   string `toml:"jina_base_url"`
	CacheSize     int    `toml:"cache_size"`
}

// LogConfig controls the log level and where the rotating log file lives
type LogConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"` // Default <workspace>/logs
}

// ServerConfig is the HTTP listen address
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Store: StoreConfig{
			Kind:      StoreChroma,
			ChromaURL: DefaultChromaURL,
		},
		Embedding: EmbeddingConfig{
			OpenAIModel: DefaultOpenAIModel,
			CacheSize:   DefaultCacheSize,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// Load builds the configuration. Later sources win:
// defaults, the TOML file, .env/.env.local, then the process environment.
// Dotenv files never override variables that are already set.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := mergeFile(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.fillDerived()
	return cfg, nil
}

func loadDotEnv() error {
	for _, name := range []string{".env", ".env.local"} {
		values, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, exists := os.LookupEnv(k); !exists {
				if err := os.Setenv(k, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Path returns the config file Load reads, which may not exist
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p
	}
	return filepath.Join(primaryWorkspace(), FileName)
}

func primaryWorkspace() string {
	if ws := strings.TrimSpace(os.Getenv(EnvWorkspace)); ws != "" {
		return ws
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func mergeFile(cfg *Config) error {
	path := Path()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func mergeEnv(cfg *Config) error {
	if v := env(EnvWorkspace); v != "" {
		cfg.Workspace = v
	}
	if v := env(EnvExtraPaths); v != "" {
		cfg.ExtraPaths = scanner.SplitPathList(v)
	}
	if v := env(EnvChromaURL); v != "" {
		cfg.Store.ChromaURL = v
	} else if v := env(EnvChromaURL2); v != "" {
		cfg.Store.ChromaURL = v
	}
	if v := env(EnvStore); v != "" {
		cfg.Store.Kind = strings.ToLower(v)
	}
	if v := env(EnvSQLitePath); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := env(EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvBatchSize, v)
		}
		cfg.BatchSize = n
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := env(EnvLogDir); v != "" {
		cfg.Log.Dir = v
	}
	if v := env(EnvHost); v != "" {
		cfg.Server.Host = v
	}
	if v := env(EnvPort); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvPort, v)
		}
		cfg.Server.Port = n
	}

	if v := env(embedder.EnvProvider); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := env(embedder.EnvAPIVersion); v != "" {
		cfg.Embedding.APIVersion = v
	}
	if v := env(embedder.EnvOpenAIAPIKey); v != "" {
		cfg.Embedding.OpenAIKey = v
	}
	if v := env(embedder.EnvOpenAIModel); v != "" {
		cfg.Embedding.OpenAIModel = v
	}
	if v := env(embedder.EnvJinaAPIKey); v != "" {
		cfg.Embedding.JinaKey = v
	}
	if v := env(EnvJinaModel); v != "" {
		cfg.Embedding.JinaModel = v
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (c *Config) fillDerived() {
	if c.Workspace == "" {
		c.Workspace = primaryWorkspace()
	}
	if c.Log.Dir == "" {
		c.Log.Dir = filepath.Join(c.Workspace, "logs")
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(c.Workspace, ".codeindex", "index.db")
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidConfig, c.BatchSize)
	}

	switch c.Store.Kind {
	case StoreChroma:
		u, err := url.Parse(c.Store.ChromaURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: chroma url %q must be http(s)://host[:port]", ErrInvalidConfig, c.Store.ChromaURL)
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite store needs a database path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store.Kind)
	}

	switch embedder.DetectProvider(c.EmbedderConfig()) {
	case embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderHash:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

// EmbedderConfig maps the embedding section onto the embedder factory input
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:      c.Embedding.Provider,
		OpenAIKey:     c.Embedding.OpenAIKey,
		OpenAIModel:   c.Embedding.OpenAIModel,
		OpenAIBaseURL: c.Embedding.OpenAIBaseURL,
		JinaKey:       c.Embedding.JinaKey,
		JinaModel:     c.Embedding.JinaModel,
		JinaBaseURL:   c.Embedding.JinaBaseURL,
		APIVersion:    c.Embedding.APIVersion,
		CacheSize:     c.Embedding.CacheSize,
	}
}

// Roots resolves the primary workspace and extra paths to absolute,
// de-duplicated directories
func (c *Config) Roots() ([]string, error) {
	return scanner.ResolveRoots(c.Workspace, c.ExtraPaths)
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
