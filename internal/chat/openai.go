// Package chat talks to chat completion services and builds the
// retrieval-augmented prompt sent to them.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docqa/internal/domain"
)

// Options are the sampling parameters for one completion.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completer returns a single, non-streamed completion for a message sequence.
type Completer interface {
	Complete(ctx context.Context, msgs []domain.Message, opts Options) (string, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, &domain.MissingConfigurationError{Names: []string{"chat API key"}}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}, nil
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Complete(ctx context.Context, msgs []domain.Message, opts Options) (string, error) {
	if len(msgs) == 0 {
		return "", domain.InvalidArgument("chat: no messages")
	}
	messages := make([]map[string]any, len(msgs))
	for i, m := range msgs {
		messages[i] = map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		}
	}
	reqBody := map[string]any{
		"model":       opts.Model,
		"messages":    messages,
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		reqBody["max_tokens"] = opts.MaxTokens
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.ServiceError{Service: "chat", Op: "complete", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.ServiceError{
			Service:    "chat",
			Op:         "complete",
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(respBody))),
		}
	}

	var result openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &domain.ServiceError{Service: "chat", Op: "decode", Err: err}
	}
	if result.Error != nil {
		return "", &domain.ServiceError{Service: "chat", Op: "complete", Err: errors.New(result.Error.Message)}
	}
	if len(result.Choices) == 0 {
		return "", &domain.ServiceError{Service: "chat", Op: "complete", Err: errors.New("response has no choices")}
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
