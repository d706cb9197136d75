package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run one indexing pass and print the final progress state",
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	// Interrupting a foreground run stops it before the next file
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := a.indexer.Run(ctx)

	out, err := json.MarshalIndent(a.indexer.Progress(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "indexed %d, skipped %d, failed %d files (%d chunks) in %s\n",
		summary.Indexed, summary.Skipped, summary.Failed, summary.Chunks, summary.Duration.Round(time.Millisecond))
	return nil
}
