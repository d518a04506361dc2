package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-optimizer/internal/server"
)

func newServeCmd(state *appState) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long:  `Start an HTTP server exposing /v1/optimize, /v1/scan and /v1/optimizations/{id}.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, state, migrate)
		},
	}
	cmd.Flags().Int("port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply database migrations before serving")
	_ = state.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

func runServe(ctx context.Context, state *appState, migrate bool) error {
	cfg, logger := state.cfg, state.logger

	coord, err := newCoordinator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := coord.Close(); err != nil {
			logger.Warn("failed to close providers", zap.Error(err))
		}
	}()

	database, err := openDatabase(ctx, cfg.Database, migrate)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	var store server.Store
	if database != nil {
		defer database.Close()
		store = database
	} else {
		logger.Info("persistence disabled, no database url configured")
	}

	return server.New(cfg.Server.HTTP(), coord, store, logger.Named("http")).Start(ctx)
}
