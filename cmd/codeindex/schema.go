package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/config"
	"github.com/dshills/codeindex/internal/vectorstore/sqlite"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the SQLite store schema",
}

var schemaRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the newest SQLite schema migration",
	Long: "Roll back the newest migration of the SQLite store database. " +
		"The next command that opens the store applies it again.",
	Args: cobra.NoArgs,
	RunE: runSchemaRollback,
}

func init() {
	schemaCmd.AddCommand(schemaRollbackCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaRollback(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return rollbackSchema(cmd, cfg)
}

func rollbackSchema(cmd *cobra.Command, cfg config.Config) error {
	if cfg.Store.Kind != config.StoreSQLite {
		return fmt.Errorf("schema rollback needs the sqlite store, configured store is %q", cfg.Store.Kind)
	}
	path := cfg.Store.SQLitePath
	if path == ":memory:" {
		return errors.New("schema rollback needs a database file")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database %s: %w", path, err)
	}

	v, err := sqlite.RollbackFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema of %s rolled back to %s\n", path, v)
	return nil
}
