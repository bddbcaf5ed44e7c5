package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by a Gemini embedder created without a key.
var ErrMissingAPIKey = errors.New("gemini API key is not configured")

// GeminiConfig configures the Gemini embedder.
type GeminiConfig struct {
	APIKey   string
	Model    string // e.g. "text-embedding-004"
	TaskType string // e.g. "RETRIEVAL_DOCUMENT"; empty uses the API default
}

// Gemini embeds text with the Gemini API.
type Gemini struct {
	client   *genai.Client // nil without an API key
	model    string
	taskType string
}

// NewGemini creates a Gemini embedder. Without an API key every Embed call
// fails with ErrMissingAPIKey.
func NewGemini(ctx context.Context, config GeminiConfig) (*Gemini, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var client *genai.Client
	if apiKey := strings.TrimSpace(config.APIKey); apiKey != "" {
		var err error
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
	}

	return &Gemini{client: client, model: config.Model, taskType: config.TaskType}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Embed generates an embedding vector for the given text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.client == nil {
		return nil, ErrMissingAPIKey
	}
	var cfg *genai.EmbedContentConfig
	if g.taskType != "" {
		cfg = &genai.EmbedContentConfig{TaskType: g.taskType}
	}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		cfg,
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embeddings[0].Values, nil
}
