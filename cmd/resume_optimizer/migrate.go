package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if state.cfg.Database.URL == "" {
				return fmt.Errorf("a database url is required (RESUME_OPTIMIZER_DATABASE_URL or DATABASE_URL)")
			}
			database, err := openDatabase(cmd.Context(), state.cfg.Database, true)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			database.Close()
			state.logger.Info("migrations applied")
			return nil
		},
	}
}
