package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// dmrBaseURL is the OpenAI-compatible path Docker Model Runner serves on its socket.
const dmrBaseURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1"

// DefaultMaxInputChars keeps chunk-sized inputs well inside small models' windows.
const DefaultMaxInputChars = 2000

// Config holds embeddings client configuration.
type Config struct {
	BaseURL       string // OpenAI-compatible base URL, e.g. http://localhost:8081/v1
	SocketPath    string // Unix socket path for Docker Model Runner
	APIKey        string
	Model         string // e.g. "sentence-transformers/all-MiniLM-L12-v2"
	MaxInputChars int
}

// Client calls an OpenAI-compatible /embeddings endpoint (text-embeddings-inference,
// Ollama, Docker Model Runner, OpenAI).
type Client struct {
	httpClient    *http.Client
	endpoint      string
	apiKey        string
	model         string
	maxInputChars int
}

// New creates a new embeddings client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" && config.SocketPath == "" {
		return nil, fmt.Errorf("base URL or socket path is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	httpClient := &http.Client{}
	baseURL := config.BaseURL
	if config.SocketPath != "" {
		socketPath := config.SocketPath
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		}
		if baseURL == "" {
			baseURL = dmrBaseURL
		}
	}

	maxChars := config.MaxInputChars
	if maxChars == 0 {
		maxChars = DefaultMaxInputChars
	}

	return &Client{
		httpClient:    httpClient,
		endpoint:      strings.TrimRight(baseURL, "/") + "/embeddings",
		apiKey:        config.APIKey,
		model:         config.Model,
		maxInputChars: maxChars,
	}, nil
}

// embeddingRequest is the request payload for the embeddings API.
type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embeddingResponse is the response from the embeddings API.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Embed generates an embedding vector for the given text.
// Text longer than the configured limit is truncated from the end.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	truncated := truncate(text, c.maxInputChars)
	slog.Debug("generating embedding", "original_len", len(text), "truncated_len", len(truncated))

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: truncated})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return embResp.Data[0].Embedding, nil
}
