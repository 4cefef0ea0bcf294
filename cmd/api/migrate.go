package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"aula/api/internal/store"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations, or revert the latest one with --down",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateDown {
			version, err := store.RevertLatestMigration(ctx, db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			if version == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", version)
			return nil
		}

		applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		logrus.WithField("count", len(applied)).Info("migrations complete")
		for _, version := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Revert the most recently applied migration")
	rootCmd.AddCommand(migrateCmd)
}
