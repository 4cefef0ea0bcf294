package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"aula/api/internal/store"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push every content item to Meilisearch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		searchService, meiliClient := newSearch(db)
		if meiliClient == nil {
			return errors.New("MEILI_URL is not set")
		}
		defer meiliClient.Close()
		if !meiliClient.Healthy() {
			return errors.New("meilisearch is unavailable")
		}

		sent, err := searchService.ReindexAll(ctx, store.NewPostgresStore(db))
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d items\n", sent)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
