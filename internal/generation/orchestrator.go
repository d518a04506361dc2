// Package generation drives the rewrite request against the generation provider:
// one call per attempt, schema and semantic validation of every answer, and repair or
// backoff retries under a single attempt ceiling.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/logging"
	"github.com/jonathan/resume-optimizer/internal/pii"
	"github.com/jonathan/resume-optimizer/internal/prompting"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Config controls the retry behavior of the orchestrator.
type Config struct {
	Model              string        // Default generation model
	MaxAttempts        int           // Ceiling across transient and repair retries
	BaseBackoff        time.Duration // Delay after the first transient failure, doubled afterwards
	MaxBackoff         time.Duration
	CallTimeout        time.Duration // Deadline of a single provider call
	MaxDiagnosticChars int           // Length of the masked raw answer kept on GenerationError
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:        3,
		BaseBackoff:        500 * time.Millisecond,
		MaxBackoff:         4 * time.Second,
		CallTimeout:        60 * time.Second,
		MaxDiagnosticChars: 500,
	}
}

// RunOptions are per-request overrides. Zero values keep the configured defaults.
type RunOptions struct {
	Model       string
	MaxAttempts int
}

// Orchestrator is safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	client  llm.Client
	scanner *pii.Scanner
	cfg     Config
	logger  *zap.Logger
}

// NewOrchestrator builds an orchestrator. The scanner re-checks every answer for PII.
func NewOrchestrator(client llm.Client, scanner *pii.Scanner, cfg Config, logger *zap.Logger) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaults.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaults.CallTimeout
	}
	if cfg.MaxDiagnosticChars <= 0 {
		cfg.MaxDiagnosticChars = defaults.MaxDiagnosticChars
	}
	if scanner == nil {
		scanner = pii.NewScanner()
	}
	return &Orchestrator{
		client:  client,
		scanner: scanner,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
	}
}

// Close releases the generation provider.
func (o *Orchestrator) Close() error {
	return o.client.Close()
}

// Generate performs a single provider call bounded by the per-call timeout.
func (o *Orchestrator) Generate(ctx context.Context, payload prompting.Payload, model string) (Raw, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	text, err := o.client.GenerateJSON(callCtx, llm.Request{
		Model:  firstNonEmpty(model, o.cfg.Model),
		System: payload.System,
		Prompt: payload.User,
	})
	if err != nil {
		return Raw{}, classify(err)
	}
	return Raw{Text: text}, nil
}

type output struct {
	OptimizedText string   `json:"optimized_text"`
	Score         float64  `json:"score"`
	Suggestions   []string `json:"suggestions"`
	Keywords      []string `json:"keywords"`
}

// ValidateAndParse checks an answer against the output schema and the semantic rules.
// original is the set of findings masked from the input; any PII found in the answer is
// a validation failure.
func (o *Orchestrator) ValidateAndParse(raw Raw, original []types.PIIFinding) Outcome {
	text := llm.CleanJSONBlock(raw.Text)
	if text == "" {
		return failed("response is empty")
	}

	if err := schemas.Validate(schemas.OptimizationOutput, text); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return failed(validationErr.Messages()...)
		}
		var docErr *schemas.DocumentError
		if errors.As(err, &docErr) {
			return failed("response is not valid JSON")
		}
		return failed("response could not be checked against the output schema")
	}

	var out output
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return failed("response is not valid JSON")
	}

	var problems []string
	if strings.TrimSpace(out.OptimizedText) == "" {
		problems = append(problems, "optimized_text: must not be blank")
	}
	if _, findings := o.scanner.Scan(out.OptimizedText); len(findings) > 0 {
		problems = append(problems, piiProblem(findings, original))
	}
	if len(problems) > 0 {
		return failed(problems...)
	}

	score, clamped := clampScore(out.Score)
	return Outcome{
		Kind: OutcomeSuccess,
		Parsed: &Parsed{
			OptimizedText: types.MaskedText(strings.TrimSpace(out.OptimizedText)),
			Score:         score,
			ScoreClamped:  clamped,
			Suggestions:   o.cleanSuggestions(out.Suggestions),
			Keywords:      o.normalizeKeywords(out.Keywords),
		},
	}
}

// Drive runs the attempt loop and reports a tagged outcome: OutcomeSuccess or
// OutcomeExhausted. Non-retryable provider failures and caller cancellation end the
// loop early as OutcomeExhausted with the corresponding error.
func (o *Orchestrator) Drive(ctx context.Context, base prompting.Payload, findings []types.PIIFinding, opts RunOptions) Outcome {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = o.cfg.MaxAttempts
	}
	model := firstNonEmpty(opts.Model, o.cfg.Model)

	var (
		attempts   []Attempt
		lastErr    error
		lastRaw    string
		lastIssues []string
		payload    = base
	)

	exhausted := func(err error) Outcome {
		if n := len(attempts); n > 0 {
			attempts[n-1].move(StateExhausted)
		}
		return Outcome{Kind: OutcomeExhausted, Err: err, Attempts: attempts}
	}

	for n := 1; n <= maxAttempts; n++ {
		attempts = append(attempts, Attempt{Number: n, Repair: payload.Repair, States: []State{StatePending}})
		rec := &attempts[len(attempts)-1]
		rec.move(StateSent)

		raw, err := o.Generate(ctx, payload, model)
		if err != nil {
			if ctx.Err() != nil {
				rec.move(StateTimedOut)
				return exhausted(&GenerationTimeoutError{Attempts: n, Cause: ctx.Err()})
			}

			var timeoutErr *GenerationTimeoutError
			if errors.As(err, &timeoutErr) {
				timeoutErr.Attempts = n
				rec.move(StateTimedOut)
			} else {
				rec.move(StateProviderError)
			}
			lastErr = err
			lastRaw, lastIssues = "", nil

			o.logger.Warn("generation call failed",
				zap.Int("attempt", n),
				zap.Int("max_attempts", maxAttempts),
				zap.String("state", string(rec.Final())),
				zap.Error(err),
			)

			if !retryable(err) {
				return exhausted(err)
			}
			if n == maxAttempts {
				break
			}
			if err := sleep(ctx, backoff(o.cfg.BaseBackoff, o.cfg.MaxBackoff, n)); err != nil {
				return exhausted(&GenerationTimeoutError{Attempts: n, Cause: err})
			}
			continue
		}

		rec.move(StateReceived)
		raw.Attempt = n
		outcome := o.ValidateAndParse(raw, findings)

		if outcome.Kind == OutcomeSuccess {
			rec.move(StateValidated)
			rec.move(StateSuccess)
			o.logger.Info("generation succeeded",
				zap.Int("attempt", n),
				zap.Bool("repair", rec.Repair),
				zap.Bool("score_clamped", outcome.Parsed.ScoreClamped),
			)
			outcome.Attempts = attempts
			return outcome
		}

		rec.move(StateValidationFailed)
		rec.Problems = outcome.Problems
		lastErr = &ValidationFailedError{Problems: outcome.Problems}
		lastRaw, lastIssues = raw.Text, outcome.Problems

		o.logger.Warn("generation output rejected",
			zap.Int("attempt", n),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("problems", len(outcome.Problems)),
		)

		payload = prompting.BuildRepair(base, outcome.Problems)
	}

	var validationErr *ValidationFailedError
	if errors.As(lastErr, &validationErr) {
		return exhausted(&GenerationError{
			Attempts: maxAttempts,
			LastRaw:  logging.TruncateForLog(o.scanner.Mask(lastRaw).String(), o.cfg.MaxDiagnosticChars),
			Problems: lastIssues,
		})
	}
	return exhausted(lastErr)
}

// Run is Drive with the outcome unwrapped into a result or an error.
func (o *Orchestrator) Run(ctx context.Context, payload prompting.Payload, findings []types.PIIFinding, opts RunOptions) (*Generated, error) {
	outcome := o.Drive(ctx, payload, findings, opts)
	switch outcome.Kind {
	case OutcomeSuccess:
		return &Generated{
			Parsed:       *outcome.Parsed,
			AttemptCount: len(outcome.Attempts),
			Attempts:     outcome.Attempts,
		}, nil
	case OutcomeExhausted:
		return nil, outcome.Err
	default:
		return nil, fmt.Errorf("unexpected generation outcome %s", outcome.Kind)
	}
}

func failed(problems ...string) Outcome {
	return Outcome{Kind: OutcomeValidationFailed, Problems: problems}
}

func piiProblem(found, original []types.PIIFinding) string {
	masked := make(map[types.PIICategory]bool)
	for _, f := range original {
		masked[f.Category] = true
	}

	var categories []string
	seen := make(map[types.PIICategory]bool)
	for _, f := range found {
		if seen[f.Category] {
			continue
		}
		seen[f.Category] = true
		label := string(f.Category)
		if masked[f.Category] {
			label += " (reintroduced)"
		}
		categories = append(categories, label)
	}
	return "optimized_text: contains personal data: " + strings.Join(categories, ", ")
}

func clampScore(v float64) (types.MatchScore, bool) {
	switch {
	case v < 0:
		return 0, true
	case v > 1:
		return 1, true
	default:
		return types.MatchScore(v), false
	}
}

// cleanSuggestions trims entries, drops blanks and masks any PII they carry.
func (o *Orchestrator) cleanSuggestions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, o.scanner.Mask(s).String())
	}
	return out
}

// normalizeKeywords lowercases, trims and de-duplicates keywords in first-seen order.
func (o *Orchestrator) normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.Join(strings.Fields(k), " "))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o.scanner.Mask(k).String())
	}
	return out
}

func classify(err error) error {
	var providerErr *llm.ProviderError
	if errors.As(err, &providerErr) {
		return &GenerationProviderError{
			StatusCode: providerErr.StatusCode,
			Message:    providerErr.Message,
			Retryable:  providerErr.Retryable(),
			Cause:      err,
		}
	}
	if errors.Is(err, llm.ErrNoModel) {
		return &GenerationProviderError{Message: "no generation model configured", Retryable: false, Cause: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GenerationTimeoutError{Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &GenerationTimeoutError{Cause: err}
	}
	return &GenerationProviderError{Message: "request failed", Retryable: true, Cause: err}
}

func retryable(err error) bool {
	var timeoutErr *GenerationTimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var providerErr *GenerationProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}

func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	if delay <= 0 || delay > maxDelay {
		return maxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
