// Package embedding turns text into model-tagged vectors through a pluggable provider,
// with deterministic truncation, a process-lifetime cache and bounded retries.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jonathan/resume-optimizer/internal/apperr"
	"github.com/jonathan/resume-optimizer/internal/logging"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// Provider is the remote embedding service. It returns one vector per input, in order.
type Provider interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// Config controls truncation, retries and throughput of the client.
type Config struct {
	MaxChars      int           // Rune ceiling per input; longer inputs keep their prefix
	MaxAttempts   int           // Attempts per provider call, first one included
	BaseBackoff   time.Duration // Delay before the second attempt, doubled afterwards
	MaxBackoff    time.Duration
	CallTimeout   time.Duration // Deadline of a single provider call
	BatchSize     int
	RatePerSecond float64 // 0 disables rate limiting
	Burst         int
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars:    8000,
		MaxAttempts: 3,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
		CallTimeout: 15 * time.Second,
		BatchSize:   32,
		Burst:       1,
	}
}

// Client embeds text through a Provider. It is safe for concurrent use; the cache is
// the only state shared between callers.
type Client struct {
	provider Provider
	cache    *Cache
	cfg      Config
	limiter  *rate.Limiter
	group    singleflight.Group
	logger   *zap.Logger
}

// NewClient builds a client. A nil cache gets an unbounded one.
func NewClient(provider Provider, cache *Cache, cfg Config, logger *zap.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaults.MaxChars
	}
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
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cache == nil {
		cache = NewCache(CacheConfig{})
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		limiter:  limiter,
		logger:   logging.OrNop(logger),
	}
}

// Embed returns the vector of text under model.
func (c *Client) Embed(ctx context.Context, model, text string) (types.EmbeddingVector, error) {
	input, err := c.prepare(model, text)
	if err != nil {
		return types.EmbeddingVector{}, err
	}

	key := CacheKey(model, input)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	// The shared call outlives any single waiter; each waiter gives up on its own ctx.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sharedBudget())
		defer cancel()
		vectors, err := c.call(shared, model, []string{input})
		if err != nil {
			return nil, err
		}
		v := types.EmbeddingVector{Model: model, Values: vectors[0]}
		c.cache.Put(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return types.EmbeddingVector{}, res.Err
		}
		return res.Val.(types.EmbeddingVector).Clone(), nil
	case <-ctx.Done():
		return types.EmbeddingVector{}, &TimeoutError{Cause: ctx.Err()}
	}
}

// sharedBudget bounds a deduplicated call: every attempt at its full timeout plus the
// longest backoff between attempts.
func (c *Client) sharedBudget() time.Duration {
	n := time.Duration(c.cfg.MaxAttempts)
	return n*c.cfg.CallTimeout + (n-1)*c.cfg.MaxBackoff
}

// EmbedBatch returns one vector per text, in order. Cache hits are served locally and
// the misses are sent in chunks of BatchSize.
func (c *Client) EmbedBatch(ctx context.Context, model string, texts []string) ([]types.EmbeddingVector, error) {
	out := make([]types.EmbeddingVector, len(texts))
	keys := make([]string, len(texts))
	pending := make(map[string][]int)
	var order []string
	inputs := make(map[string]string)

	for i, text := range texts {
		input, err := c.prepare(model, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		key := CacheKey(model, input)
		keys[i] = key
		if v, ok := c.cache.Get(key); ok {
			out[i] = v
			continue
		}
		if _, seen := pending[key]; !seen {
			order = append(order, key)
			inputs[key] = input
		}
		pending[key] = append(pending[key], i)
	}

	for start := 0; start < len(order); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(order))
		chunk := order[start:end]

		batch := make([]string, len(chunk))
		for j, key := range chunk {
			batch[j] = inputs[key]
		}

		vectors, err := c.call(ctx, model, batch)
		if err != nil {
			return nil, err
		}
		for j, key := range chunk {
			v := types.EmbeddingVector{Model: model, Values: vectors[j]}
			c.cache.Put(key, v)
			for _, idx := range pending[key] {
				out[idx] = v.Clone()
			}
		}
	}

	return out, nil
}

// Close releases the provider when it holds resources.
func (c *Client) Close() error {
	if closer, ok := c.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// prepare validates the input and truncates it to MaxChars runes.
func (c *Client) prepare(model, text string) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", apperr.InvalidInput("embedding model is required")
	}
	text = strings.ToValidUTF8(text, "�")
	if strings.TrimSpace(text) == "" {
		return "", apperr.InvalidInput("embedding input is empty")
	}

	if n := utf8.RuneCountInString(text); n > c.cfg.MaxChars {
		text = truncateRunes(text, c.cfg.MaxChars)
		c.logger.Info("embedding input truncated",
			zap.Bool("truncated", true),
			zap.String("model", model),
			zap.Int("original_chars", n),
			zap.Int("max_chars", c.cfg.MaxChars),
		)
	}
	return text, nil
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// call sends texts to the provider, retrying timeouts and transient provider errors
// with exponential backoff. The caller's deadline bounds every attempt and every sleep.
func (c *Client) call(ctx context.Context, model string, texts []string) ([][]float64, error) {
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TimeoutError{Attempts: attempt - 1, Cause: err}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		vectors, err := c.provider.Embed(callCtx, model, texts)
		cancel()

		if err == nil {
			if err := checkShape(vectors, len(texts)); err != nil {
				return nil, err
			}
			return vectors, nil
		}

		err = classify(err, attempt)
		if ctx.Err() != nil {
			return nil, &TimeoutError{Attempts: attempt, Cause: ctx.Err()}
		}
		if !retryable(err) || attempt >= c.cfg.MaxAttempts {
			return nil, err
		}

		delay := backoff(c.cfg.BaseBackoff, c.cfg.MaxBackoff, attempt)
		c.logger.Warn("embedding call failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.String("kind", string(apperr.KindOf(err))),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &TimeoutError{Attempts: attempt, Cause: ctx.Err()}
		}
	}
}

func classify(err error, attempt int) error {
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		timeoutErr.Attempts = attempt
		return timeoutErr
	}
	var providerErr *ProviderError
	var formatErr *FormatError
	if errors.As(err, &providerErr) || errors.As(err, &formatErr) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Attempts: attempt, Cause: err}
	}
	return &ProviderError{Message: "request failed", Cause: err}
}

func retryable(err error) bool {
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable()
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

func checkShape(vectors [][]float64, expected int) error {
	if len(vectors) != expected {
		return &FormatError{Message: fmt.Sprintf("expected %d vectors, got %d", expected, len(vectors))}
	}
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return &FormatError{Message: fmt.Sprintf("vector %d is empty", i)}
		}
		if dim >= 0 && len(v) != dim {
			return &FormatError{Message: fmt.Sprintf("vector %d has dimension %d, expected %d", i, len(v), dim)}
		}
		dim = len(v)
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return &FormatError{Message: fmt.Sprintf("vector %d has non-finite values", i)}
			}
		}
	}
	return nil
}
