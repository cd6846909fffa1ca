package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamilpajak/quorum/internal/database"
	"github.com/kamilpajak/quorum/internal/llm"
	"github.com/kamilpajak/quorum/internal/search"
)

var indexDir string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed and index the project's Go files for semantic context search",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable required")
		}

		db, err := database.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		embedder, err := llm.NewGoogleEmbedder("")
		if err != nil {
			return err
		}
		searcher, err := search.NewSearcher(embedder, db)
		if err != nil {
			return err
		}

		root := indexDir
		if root == "" {
			root = "."
		}
		n, err := searcher.IndexTree(cmd.Context(), root)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "indexed %d files\n", n)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable required")
		}
		return database.Migrate(dbURL)
	},
}

func init() {
	indexCmd.Flags().StringVarP(&indexDir, "dir", "d", "", "Directory to index (default: current)")
}
