package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-optimizer/internal/apperr"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/optimizer"
	"github.com/jonathan/resume-optimizer/internal/types"
)

type optimizeFlags struct {
	resumePath      string
	jobPath         string
	jobTitle        string
	company         string
	embeddingModel  string
	generationModel string
	maxRetries      int
	timeout         time.Duration
	save            bool
	format          string
}

func newOptimizeCmd(state *appState) *cobra.Command {
	var f optimizeFlags

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize one résumé against one job description",
		Long: `Reads a résumé and a job description from files ("-" reads stdin) and prints the
optimization result as JSON. Personal data is masked before anything leaves the process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptimize(cmd, state, f)
		},
	}
	cmd.Flags().StringVarP(&f.resumePath, "resume", "r", "", "Path to the résumé text file (required)")
	cmd.Flags().StringVar(&f.jobPath, "job", "", "Path to the job description text file (required)")
	cmd.Flags().StringVar(&f.jobTitle, "job-title", "", "Job title")
	cmd.Flags().StringVar(&f.company, "company", "", "Company name")
	cmd.Flags().StringVar(&f.embeddingModel, "embedding-model", "", "Override the embedding model")
	cmd.Flags().StringVar(&f.generationModel, "generation-model", "", "Override the generation model")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 0, "Generation attempt ceiling (0 uses the configured default)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Overall deadline (0 uses the configured default)")
	cmd.Flags().BoolVar(&f.save, "save", false, "Store the masked result in the configured database")
	cmd.Flags().StringVar(&f.format, "format", formatJSON, "Output format: json or text")
	_ = cmd.MarkFlagRequired("resume")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func runOptimize(cmd *cobra.Command, state *appState, f optimizeFlags) error {
	if err := checkFormat(f.format); err != nil {
		return err
	}
	if f.resumePath == "-" && f.jobPath == "-" {
		return fmt.Errorf("only one of --resume and --job may read stdin")
	}
	resumeText, err := readInput(cmd.InOrStdin(), f.resumePath)
	if err != nil {
		return err
	}
	jobText, err := readInput(cmd.InOrStdin(), f.jobPath)
	if err != nil {
		return err
	}

	req := types.OptimizeRequest{
		ResumeText: resumeText,
		JobText:    jobText,
		JobTitle:   f.jobTitle,
		Company:    f.company,
		Options: types.OptimizationOptions{
			EmbeddingModel:  f.embeddingModel,
			GenerationModel: f.generationModel,
			MaxRetries:      f.maxRetries,
			TimeoutMs:       int(f.timeout / time.Millisecond),
		},
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
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

	report, err := coord.OptimizeReport(ctx, req.Resume(), req.Job(), req.Options)
	if err != nil {
		return fmt.Errorf("optimization failed (%s): %w", apperr.KindOf(err), err)
	}

	resp := types.OptimizeResponse{
		RequestID: report.RequestID,
		Result:    report.Result,
		ResumePII: report.ResumePII,
		JobPII:    report.JobPII,
	}
	if f.save {
		id, err := saveReport(ctx, state, report)
		if err != nil {
			return err
		}
		resp.ID = id
	}

	if f.format == formatText {
		observability.NewPrinter(cmd.OutOrStdout()).PrintOptimization(&resp)
		return nil
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}

func saveReport(ctx context.Context, state *appState, report *optimizer.Report) (string, error) {
	database, err := openDatabase(ctx, state.cfg.Database, false)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	if database == nil {
		return "", fmt.Errorf("--save needs a database url (RESUME_OPTIMIZER_DATABASE_URL or DATABASE_URL)")
	}
	defer database.Close()

	record := db.OptimizationFromReport(report)
	if err := database.SaveOptimization(ctx, record); err != nil {
		return "", err
	}
	return record.ID.String(), nil
}

// readInput reads a whole file, or stdin when path is "-".
func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

const (
	formatJSON = "json"
	formatText = "text"
)

func checkFormat(format string) error {
	if format != formatJSON && format != formatText {
		return fmt.Errorf("unknown output format %q (want json or text)", format)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
