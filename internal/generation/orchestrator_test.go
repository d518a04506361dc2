package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-optimizer/internal/apperr"
	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/prompting"
	"github.com/jonathan/resume-optimizer/internal/types"
)

const validAnswer = `{"optimized_text":"Engenheiro de software com experiência em Go e Kubernetes. Contato: [MASKED_EMAIL]","score":0.82,"suggestions":["Destaque projetos com Go"],"keywords":["Go","kubernetes"," GO "]}`

type reply struct {
	text  string
	err   error
	block bool
}

// scriptedClient returns one scripted reply per call and repeats the last one.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []reply
	requests []llm.Request
}

func (c *scriptedClient) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	r := c.replies[min(len(c.requests), len(c.replies))-1]
	c.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func newTestOrchestrator(client llm.Client) *Orchestrator {
	return NewOrchestrator(client, nil, Config{
		Model:       "test-model",
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
		CallTimeout: 50 * time.Millisecond,
	}, nil)
}

func testPayload() prompting.Payload {
	return prompting.Build("Engenheiro de software. Contato: [MASKED_EMAIL]", "Vaga backend Go", 0.7)
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: validAnswer}}}
	o := newTestOrchestrator(client)

	got, err := o.Run(context.Background(), testPayload(), nil, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, types.MatchScore(0.82), got.Score)
	assert.False(t, got.ScoreClamped)
	assert.Equal(t, []string{"go", "kubernetes"}, got.Keywords)
	assert.Equal(t, []string{"Destaque projetos com Go"}, got.Suggestions)
	assert.Contains(t, got.OptimizedText.String(), "[MASKED_EMAIL]")
	assert.Equal(t, []State{StatePending, StateSent, StateReceived, StateValidated, StateSuccess}, got.Attempts[0].States)

	require.Len(t, client.requests, 1)
	assert.Equal(t, "test-model", client.requests[0].Model)
	assert.NotEmpty(t, client.requests[0].System)
}

func TestRun_MalformedThenValid(t *testing.T) {
	const maxRetries = 3

	for k := 0; k <= 4; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			replies := make([]reply, 0, k+1)
			for i := 0; i < k; i++ {
				replies = append(replies, reply{text: `{"optimized_text": "truncated`})
			}
			replies = append(replies, reply{text: validAnswer})
			client := &scriptedClient{replies: replies}
			o := newTestOrchestrator(client)

			got, err := o.Run(context.Background(), testPayload(), nil, RunOptions{MaxAttempts: maxRetries})

			if k < maxRetries {
				require.NoError(t, err)
				assert.Equal(t, k+1, got.AttemptCount)
				assert.Equal(t, k+1, client.calls())
				return
			}

			require.Error(t, err)
			var genErr *GenerationError
			require.True(t, errors.As(err, &genErr))
			assert.Equal(t, maxRetries, genErr.Attempts)
			assert.Equal(t, apperr.KindGenerationExhausted, apperr.KindOf(err))
			assert.Equal(t, maxRetries, client.calls())
		})
	}
}

func TestRun_RepairPromptAfterMalformedOutput(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{text: "desculpe, segue o texto sentinel-9431"},
		{text: validAnswer},
	}}
	o := newTestOrchestrator(client)

	got, err := o.Run(context.Background(), testPayload(), nil, RunOptions{})
	require.NoError(t, err)
	assert.True(t, got.Attempts[1].Repair)
	assert.Equal(t, StateValidationFailed, got.Attempts[0].Final())
	assert.NotEmpty(t, got.Attempts[0].Problems)

	require.Len(t, client.requests, 2)
	first, second := client.requests[0], client.requests[1]
	assert.NotEqual(t, first.Prompt, second.Prompt)
	assert.True(t, strings.HasPrefix(second.Prompt, first.Prompt))
	assert.Contains(t, second.Prompt, "response is not valid JSON")
	assert.NotContains(t, second.Prompt, "sentinel-9431")
}

func TestRun_ReintroducedPIIIsRetried(t *testing.T) {
	leaky := `{"optimized_text":"Contato: joao@example.com","score":0.5,"suggestions":[],"keywords":[]}`
	client := &scriptedClient{replies: []reply{{text: leaky}}}
	o := newTestOrchestrator(client)

	findings := []types.PIIFinding{{Category: types.PIIEmail, Start: 9, End: 25, Confidence: 0.99}}
	_, err := o.Run(context.Background(), testPayload(), findings, RunOptions{})
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 3, client.calls())
	assert.NotContains(t, genErr.LastRaw, "joao@example.com")
	assert.Contains(t, genErr.LastRaw, "[MASKED_EMAIL]")
	assert.NotContains(t, err.Error(), "joao@example.com")
	require.NotEmpty(t, genErr.Problems)
	assert.Contains(t, genErr.Problems[0], "email (reintroduced)")
}

func TestRun_DiagnosticIsTruncated(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: strings.Repeat("a", 2000)}}}
	o := NewOrchestrator(client, nil, Config{MaxAttempts: 1, MaxDiagnosticChars: 100}, nil)

	_, err := o.Run(context.Background(), testPayload(), nil, RunOptions{})

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, strings.Repeat("a", 100)+"...", genErr.LastRaw)
}

func TestRun_TransientProviderErrorsAreRetried(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{err: &llm.ProviderError{StatusCode: 503, Message: "Service Unavailable"}},
		{err: &llm.ProviderError{StatusCode: 429, Message: "rate_limit"}},
		{text: validAnswer},
	}}
	o := newTestOrchestrator(client)

	got, err := o.Run(context.Background(), testPayload(), nil, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, got.AttemptCount)
	assert.Equal(t, StateProviderError, got.Attempts[0].Final())
}

func TestRun_ClientErrorIsNotRetried(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: &llm.ProviderError{StatusCode: 400, Message: "invalid_request_error"}}}}
	o := newTestOrchestrator(client)

	_, err := o.Run(context.Background(), testPayload(), nil, RunOptions{})
	require.Error(t, err)

	var providerErr *GenerationProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, 400, providerErr.StatusCode)
	assert.Equal(t, apperr.KindGenerationProvider, apperr.KindOf(err))
	assert.Equal(t, 1, client.calls())
}

func TestRun_MissingModelIsNotRetried(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: llm.ErrNoModel}}}
	o := newTestOrchestrator(client)

	_, err := o.Run(context.Background(), testPayload(), nil, RunOptions{})
	require.Error(t, err)

	var providerErr *GenerationProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.False(t, providerErr.Retryable)
	assert.ErrorIs(t, err, llm.ErrNoModel)
	assert.Equal(t, 1, client.calls())
}

func TestRun_TimeoutsExhaustAttempts(t *testing.T) {
	client := &scriptedClient{replies: []reply{{block: true}}}
	o := NewOrchestrator(client, nil, Config{
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		CallTimeout: 5 * time.Millisecond,
	}, nil)

	outcome := o.Drive(context.Background(), testPayload(), nil, RunOptions{})
	assert.Equal(t, OutcomeExhausted, outcome.Kind)

	var timeoutErr *GenerationTimeoutError
	require.True(t, errors.As(outcome.Err, &timeoutErr))
	assert.Equal(t, 2, timeoutErr.Attempts)
	assert.Equal(t, apperr.KindGenerationTimeout, apperr.KindOf(outcome.Err))
	require.Len(t, outcome.Attempts, 2)
	assert.Equal(t, StateExhausted, outcome.Attempts[1].Final())
}

func TestRun_CallerDeadlineStopsRetries(t *testing.T) {
	client := &scriptedClient{replies: []reply{{block: true}}}
	o := NewOrchestrator(client, nil, Config{
		MaxAttempts: 5,
		CallTimeout: time.Second,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := o.Run(ctx, testPayload(), nil, RunOptions{})
	require.Error(t, err)

	var timeoutErr *GenerationTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 1, client.calls())
}

func TestValidateAndParse(t *testing.T) {
	o := newTestOrchestrator(&scriptedClient{})

	tests := []struct {
		name        string
		raw         string
		wantKind    OutcomeKind
		wantProblem string
	}{
		{name: "valid", raw: validAnswer, wantKind: OutcomeSuccess},
		{name: "fenced", raw: "```json\n" + validAnswer + "\n```", wantKind: OutcomeSuccess},
		{name: "empty", raw: "   ", wantKind: OutcomeValidationFailed, wantProblem: "empty"},
		{name: "not json", raw: "olá", wantKind: OutcomeValidationFailed, wantProblem: "not valid JSON"},
		{name: "null keywords", raw: `{"optimized_text":"x","score":0.5,"suggestions":[],"keywords":null}`, wantKind: OutcomeValidationFailed, wantProblem: "keywords"},
		{name: "missing suggestions", raw: `{"optimized_text":"x","score":0.5,"keywords":[]}`, wantKind: OutcomeValidationFailed, wantProblem: "suggestions"},
		{name: "score not numeric", raw: `{"optimized_text":"x","score":"0.5","suggestions":[],"keywords":[]}`, wantKind: OutcomeValidationFailed, wantProblem: "score"},
		{name: "blank text", raw: `{"optimized_text":"   ","score":0.5,"suggestions":[],"keywords":[]}`, wantKind: OutcomeValidationFailed, wantProblem: "blank"},
		{name: "cpf in output", raw: `{"optimized_text":"CPF 529.982.247-25","score":0.5,"suggestions":[],"keywords":[]}`, wantKind: OutcomeValidationFailed, wantProblem: "cpf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := o.ValidateAndParse(Raw{Text: tt.raw}, nil)
			assert.Equal(t, tt.wantKind, outcome.Kind)
			if tt.wantProblem != "" {
				assert.Contains(t, strings.Join(outcome.Problems, "\n"), tt.wantProblem)
				assert.Nil(t, outcome.Parsed)
			}
		})
	}
}

func TestValidateAndParse_ClampsScore(t *testing.T) {
	o := newTestOrchestrator(&scriptedClient{})

	tests := []struct {
		score float64
		want  types.MatchScore
	}{
		{score: 1.7, want: 1},
		{score: -0.2, want: 0},
	}
	for _, tt := range tests {
		raw := fmt.Sprintf(`{"optimized_text":"x","score":%v,"suggestions":[],"keywords":[]}`, tt.score)
		outcome := o.ValidateAndParse(Raw{Text: raw}, nil)

		require.Equal(t, OutcomeSuccess, outcome.Kind)
		assert.Equal(t, tt.want, outcome.Parsed.Score)
		assert.True(t, outcome.Parsed.ScoreClamped)
	}
}

func TestValidateAndParse_MasksSideLists(t *testing.T) {
	o := newTestOrchestrator(&scriptedClient{})
	raw := `{"optimized_text":"x","score":0.5,"suggestions":["Escreva para rh@empresa.com.br",""],"keywords":[]}`

	outcome := o.ValidateAndParse(Raw{Text: raw}, nil)
	require.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, []string{"Escreva para [MASKED_EMAIL]"}, outcome.Parsed.Suggestions)
	assert.Equal(t, []string{}, outcome.Parsed.Keywords)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatePending, StateSent))
	assert.True(t, CanTransition(StateSent, StateTimedOut))
	assert.True(t, CanTransition(StateReceived, StateValidationFailed))
	assert.True(t, CanTransition(StateValidationFailed, StateExhausted))
	assert.False(t, CanTransition(StatePending, StateSuccess))
	assert.False(t, CanTransition(StateTimedOut, StateValidated))
}
