package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/config"
)

// globalFlags override configuration loaded from files and the environment
type globalFlags struct {
	Workspace string
	Store     string
	ChromaURL string
	LogLevel  string
	BatchSize int
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "codeindex",
	Short: "Incremental vector index over workspace source files",
	Long: "codeindex scans one or more workspace roots, splits text files into overlapping chunks, " +
		"embeds them and keeps a vector store collection in sync for similarity search.",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.Workspace, "workspace", "", "primary workspace root (default: $CODEX_WORKSPACE or the current directory)")
	pf.StringVar(&flags.Store, "store", "", "vector store backend: chroma or sqlite")
	pf.StringVar(&flags.ChromaURL, "chroma-url", "", "Chroma server URL")
	pf.StringVar(&flags.LogLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	pf.IntVar(&flags.BatchSize, "batch-size", 0, "chunks embedded and written per batch")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration and applies command-line overrides
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	applyFlags(&cfg, flags)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, f globalFlags) {
	if f.Workspace != "" {
		cfg.Workspace = f.Workspace
	}
	if f.Store != "" {
		cfg.Store.Kind = f.Store
	}
	if f.ChromaURL != "" {
		cfg.Store.ChromaURL = f.ChromaURL
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.BatchSize != 0 {
		cfg.BatchSize = f.BatchSize
	}
}
