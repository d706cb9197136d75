package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/embedder"
)

const previewValues = 8

var embedCmd = &cobra.Command{
	Use:   "embed [text]",
	Short: "Embed text with the configured backend and print the vector",
	Long:  "Embed text with the configured backend. Useful for checking credentials and the vector dimension before indexing.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

// embedProbe is the JSON printed by the embed command
type embedProbe struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Preview   []float32 `json:"preview"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	return probe(cmd, emb, strings.Join(args, " "), cmd.OutOrStdout())
}

func probe(cmd *cobra.Command, emb embedder.Embedder, text string, out io.Writer) error {
	vectors, err := embedder.EmbedTexts(cmd.Context(), emb, []string{text}, 1)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	vec := vectors[0]
	preview := vec
	if len(preview) > previewValues {
		preview = preview[:previewValues]
	}

	data, err := json.MarshalIndent(embedProbe{
		Provider:  emb.Provider(),
		Model:     emb.Model(),
		Dimension: len(vec),
		Preview:   preview,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
