// Package main provides the command line entry point for the résumé optimizer: the HTTP
// API server plus one-shot optimize, scan and migrate commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/logging"
)

const app = "resume_optimizer"

// appState holds what every subcommand shares once flags and config are resolved.
type appState struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	state := &appState{v: config.New()}

	root := &cobra.Command{
		Use:   app,
		Short: "Résumé optimizer: PII-safe résumé rewriting against a job description",
		Long: `Masks personal data, scores a résumé against a job description with text embeddings
and drives an LLM through a validated rewrite loop.

Configuration comes from defaults, an optional --config file and RESUME_OPTIMIZER_* variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return state.load()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if state.logger != nil {
				_ = state.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&state.cfgFile, "config", "", "config file (YAML or JSON)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	_ = state.v.BindPFlag("log.debug", root.PersistentFlags().Lookup("debug"))
	_ = state.v.BindPFlag("log.json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(
		newServeCmd(state),
		newOptimizeCmd(state),
		newScanCmd(state),
		newMigrateCmd(state),
	)
	return root
}

func (s *appState) load() error {
	if s.cfgFile != "" {
		s.v.SetConfigFile(s.cfgFile)
		if err := s.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", s.cfgFile, err)
		}
	}
	cfg, err := config.FromViper(s.v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	s.cfg = cfg
	s.logger = logger
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
