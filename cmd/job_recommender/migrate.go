package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the index schema on the resolved endpoint",
	Long:  "Open the resolved index endpoint. Postgres endpoints get the document schema and vector extension applied.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	health := store.Health(cmd.Context())
	log.Info("index ready", zap.String("engine", health.Engine), zap.Bool("vector_search", health.VectorSearch))
	fmt.Fprintf(os.Stdout, "Index ready at %s (%s)\n", health.Host, health.Engine)
	return nil
}
