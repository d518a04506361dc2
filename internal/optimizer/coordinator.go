// Package optimizer sequences one optimization: mask, embed, score, prompt, generate.
// A call either returns a complete result or a kinded error, never a partial result.
package optimizer

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-optimizer/internal/apperr"
	"github.com/jonathan/resume-optimizer/internal/generation"
	"github.com/jonathan/resume-optimizer/internal/logging"
	"github.com/jonathan/resume-optimizer/internal/pii"
	"github.com/jonathan/resume-optimizer/internal/prompting"
	"github.com/jonathan/resume-optimizer/internal/similarity"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Embedder turns text into vectors. *embedding.Client implements it.
type Embedder interface {
	Embed(ctx context.Context, model, text string) (types.EmbeddingVector, error)
	Close() error
}

// Generator produces a validated rewrite. *generation.Orchestrator implements it.
type Generator interface {
	Run(ctx context.Context, payload prompting.Payload, findings []types.PIIFinding, opts generation.RunOptions) (*generation.Generated, error)
	Close() error
}

// Config holds the defaults applied when a request leaves an option unset.
type Config struct {
	EmbeddingModel   string
	GenerationModel  string
	MaxRetries       int           // Generation attempt ceiling, repair retries included
	Timeout          time.Duration // Overall wall-clock budget of one optimization
	SimilarityWeight float64       // Share of the embedding similarity in match_score; 1 ignores the model score
	MaxResumeChars   int
	MaxJobChars      int
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		EmbeddingModel:   "text-embedding-3-small",
		GenerationModel:  "gemini-2.5-flash",
		MaxRetries:       3,
		Timeout:          90 * time.Second,
		SimilarityWeight: 0.5,
		MaxResumeChars:   30000,
		MaxJobChars:      15000,
	}
}

// Report is a finished optimization plus what the persistence layer may keep: masked
// texts and finding counts, never the raw input.
type Report struct {
	RequestID       string
	Result          *types.OptimizationResult
	MaskedResume    types.MaskedText
	MaskedJob       types.MaskedText
	ResumePII       map[types.PIICategory]int
	JobPII          map[types.PIICategory]int
	EmbeddingModel  string
	GenerationModel string
	Duration        time.Duration
}

// Coordinator is constructed once at process start and shared by all requests.
type Coordinator struct {
	embedder  Embedder
	generator Generator
	scanner   *pii.Scanner
	cfg       Config
	logger    *zap.Logger
}

// New builds a coordinator. A nil scanner gets the default categories.
func New(embedder Embedder, generator Generator, scanner *pii.Scanner, cfg Config, logger *zap.Logger) *Coordinator {
	defaults := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.SimilarityWeight < 0 || cfg.SimilarityWeight > 1 {
		cfg.SimilarityWeight = defaults.SimilarityWeight
	}
	if cfg.MaxResumeChars <= 0 {
		cfg.MaxResumeChars = defaults.MaxResumeChars
	}
	if cfg.MaxJobChars <= 0 {
		cfg.MaxJobChars = defaults.MaxJobChars
	}
	if scanner == nil {
		scanner = pii.NewScanner()
	}
	return &Coordinator{
		embedder:  embedder,
		generator: generator,
		scanner:   scanner,
		cfg:       cfg,
		logger:    logging.OrNop(logger),
	}
}

// Scanner returns the PII scanner shared with the rest of the pipeline.
func (c *Coordinator) Scanner() *pii.Scanner {
	return c.scanner
}

// Close tears down the providers.
func (c *Coordinator) Close() error {
	return errors.Join(c.embedder.Close(), c.generator.Close())
}

// Optimize runs the pipeline and returns only the result.
func (c *Coordinator) Optimize(ctx context.Context, resume types.ResumeText, job types.JobText, opts types.OptimizationOptions) (*types.OptimizationResult, error) {
	report, err := c.OptimizeReport(ctx, resume, job, opts)
	if err != nil {
		return nil, err
	}
	return report.Result, nil
}

// OptimizeReport runs mask → embed (concurrently) → score → prompt → generate under one
// overall deadline. When that deadline has expired the error is always
// OptimizationTimeoutError, whichever stage was running.
func (c *Coordinator) OptimizeReport(ctx context.Context, resume types.ResumeText, job types.JobText, opts types.OptimizationOptions) (*Report, error) {
	started := time.Now()
	requestID := RequestID(ctx)
	logger := c.logger.With(zap.String("request_id", requestID))

	if err := c.checkInput(resume, job, opts); err != nil {
		logger.Info("optimization rejected", zap.String("kind", string(apperr.KindOf(err))))
		return nil, err
	}

	embeddingModel := firstNonEmpty(opts.EmbeddingModel, c.cfg.EmbeddingModel)
	generationModel := firstNonEmpty(opts.GenerationModel, c.cfg.GenerationModel)
	maxRetries := c.cfg.MaxRetries
	if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}
	budget := c.cfg.Timeout
	if opts.TimeoutMs > 0 {
		budget = time.Duration(opts.TimeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	fail := func(stage string, err error) error {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = &OptimizationTimeoutError{Budget: budget, Stage: stage, Cause: err}
		}
		logger.Warn("optimization failed",
			zap.String("stage", stage),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Duration("elapsed", time.Since(started)),
		)
		return err
	}

	// Mask
	maskedResume, resumeFindings := c.scanner.Scan(resume.Text)
	maskedJob, jobFindings := c.scanner.Scan(job.Text)
	logger.Info("pii masked", append(logging.FindingFields(resumeFindings), zap.String("document", "resume"))...)
	logger.Info("pii masked", append(logging.FindingFields(jobFindings), zap.String("document", "job"))...)

	// Embed
	var resumeVec, jobVec types.EmbeddingVector
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.embedder.Embed(gCtx, embeddingModel, maskedResume.String())
		if err != nil {
			return err
		}
		resumeVec = v
		return nil
	})
	g.Go(func() error {
		v, err := c.embedder.Embed(gCtx, embeddingModel, maskedJob.String())
		if err != nil {
			return err
		}
		jobVec = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fail("embedding", err)
	}

	// Score
	sim, err := similarity.Score(resumeVec, jobVec)
	if err != nil {
		return nil, fail("scoring", err)
	}
	if sim.Degenerate {
		logger.Warn("degenerate embedding", zap.String("model", embeddingModel))
	}

	// Generate
	findings := make([]types.PIIFinding, 0, len(resumeFindings)+len(jobFindings))
	findings = append(findings, resumeFindings...)
	findings = append(findings, jobFindings...)

	payload := prompting.Build(maskedResume, maskedJob, sim.Score)
	generated, err := c.generator.Run(ctx, payload, findings, generation.RunOptions{
		Model:       generationModel,
		MaxAttempts: maxRetries,
	})
	if err != nil {
		return nil, fail("generation", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fail("generation", ctx.Err())
	}

	result := &types.OptimizationResult{
		OptimizedText:       generated.OptimizedText,
		Score:               similarity.Blend(sim.Score, generated.Score, c.cfg.SimilarityWeight),
		SimilarityScore:     sim.Score,
		ModelScore:          generated.Score,
		Suggestions:         generated.Suggestions,
		Keywords:            generated.Keywords,
		AttemptCount:        generated.AttemptCount,
		ScoreClamped:        generated.ScoreClamped,
		DegenerateEmbedding: sim.Degenerate,
	}

	elapsed := time.Since(started)
	logger.Info("optimization completed",
		zap.Float64("match_score", float64(result.Score)),
		zap.Int("attempts", result.AttemptCount),
		zap.Bool("score_clamped", result.ScoreClamped),
		zap.Duration("elapsed", elapsed),
	)

	return &Report{
		RequestID:       requestID,
		Result:          result,
		MaskedResume:    maskedResume,
		MaskedJob:       maskedJob,
		ResumePII:       pii.Summary(resumeFindings),
		JobPII:          pii.Summary(jobFindings),
		EmbeddingModel:  embeddingModel,
		GenerationModel: generationModel,
		Duration:        elapsed,
	}, nil
}

func (c *Coordinator) checkInput(resume types.ResumeText, job types.JobText, opts types.OptimizationOptions) error {
	switch {
	case strings.TrimSpace(resume.Text) == "":
		return apperr.InvalidInput("resume_text is required")
	case strings.TrimSpace(job.Text) == "":
		return apperr.InvalidInput("job_text is required")
	case !utf8.ValidString(resume.Text) || !utf8.ValidString(job.Text):
		return apperr.InvalidInput("input must be valid UTF-8")
	case utf8.RuneCountInString(resume.Text) > c.cfg.MaxResumeChars:
		return apperr.InvalidInput("resume_text exceeds the maximum length")
	case utf8.RuneCountInString(job.Text) > c.cfg.MaxJobChars:
		return apperr.InvalidInput("job_text exceeds the maximum length")
	case opts.MaxRetries < 0:
		return apperr.InvalidInput("max_retries must not be negative")
	case opts.TimeoutMs < 0:
		return apperr.InvalidInput("timeout_ms must not be negative")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
