package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by a Gemini completer created without a key.
var ErrMissingAPIKey = errors.New("gemini API key is not configured")

// GeminiConfig configures the Gemini completer.
type GeminiConfig struct {
	APIKey      string
	Model       string // e.g. "gemini-2.0-flash"
	Temperature float64
	MaxTokens   int
}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client *genai.Client // nil without an API key
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini creates a Gemini completer. Without an API key every Complete
// call fails with ErrMissingAPIKey.
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

	var genConfig *genai.GenerateContentConfig
	if config.Temperature != 0 || config.MaxTokens != 0 {
		genConfig = &genai.GenerateContentConfig{}
		if config.Temperature != 0 {
			genConfig.Temperature = genai.Ptr(float32(config.Temperature))
		}
		if config.MaxTokens != 0 {
			genConfig.MaxOutputTokens = int32(config.MaxTokens)
		}
	}

	return &Gemini{client: client, model: config.Model, config: genConfig}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Complete sends a prompt to Gemini and returns the trimmed answer.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", ErrMissingAPIKey
	}
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		g.config,
	)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
