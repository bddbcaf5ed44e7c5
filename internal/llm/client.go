// Package llm sends prompts to a hosted chat model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Completer turns a prompt into a model answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// dmrBaseURL is the OpenAI-compatible path Docker Model Runner serves on its socket.
const dmrBaseURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1"

// Config holds LLM client configuration.
type Config struct {
	BaseURL     string // OpenAI-compatible base URL, e.g. https://api.groq.com/openai/v1
	SocketPath  string // Unix socket path for Docker Model Runner
	APIKey      string // Sent as a bearer token when set
	Model       string // e.g. "mixtral-8x7b-32768"
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // zero means no timeout
}

// Client wraps an OpenAI-compatible chat completions API.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// New creates a new LLM client. A missing API key is not an error here:
// the provider rejects the first request instead.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" && config.SocketPath == "" {
		return nil, fmt.Errorf("base URL or socket path is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	httpClient := &http.Client{Timeout: config.Timeout}
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

	return &Client{
		httpClient:  httpClient,
		endpoint:    strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:      config.APIKey,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
	}, nil
}

// chatRequest is the request payload for the chat completions API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"` // Limit response length
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a prompt to the LLM and returns the response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithMaxTokens(ctx, prompt, c.maxTokens)
}

// CompleteWithMaxTokens sends a prompt with a token limit on the response.
// If maxTokens is 0, no limit is applied.
func (c *Client) CompleteWithMaxTokens(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}
	if c.temperature != 0 {
		temperature := c.temperature
		req.Temperature = &temperature
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response returned")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
