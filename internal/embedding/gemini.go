package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiProvider embeds text with Google Gemini embedding models.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

// Embed implements Provider.
func (p *GeminiProvider) Embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	em := p.client.EmbeddingModel(model)

	if len(texts) == 1 {
		resp, err := em.EmbedContent(ctx, genai.Text(texts[0]))
		if err != nil {
			return nil, geminiError(err)
		}
		if resp == nil || resp.Embedding == nil {
			return nil, &FormatError{Message: "no embedding in response"}
		}
		return [][]float64{widen(resp.Embedding.Values)}, nil
	}

	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, geminiError(err)
	}
	if resp == nil {
		return nil, &FormatError{Message: "empty batch response"}
	}

	vectors := make([][]float64, 0, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, &FormatError{Message: fmt.Sprintf("missing embedding %d", i)}
		}
		vectors = append(vectors, widen(e.Values))
	}
	return vectors, nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func widen(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// geminiError maps API errors to ProviderError and leaves transport errors
// (including deadline expiry) to the client's classification.
func geminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{StatusCode: apiErr.Code, Message: fmt.Sprintf("gemini status %d", apiErr.Code)}
	}
	return err
}
