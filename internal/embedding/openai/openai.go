package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"docqa/internal/domain"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	client     *http.Client
	maxRetries int
	sleep      func(time.Duration)
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions is requested from the service and enforced on every response.
	// Zero accepts whatever length the model returns.
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &domain.MissingConfigurationError{Names: []string{"embedding API key"}}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: t}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimensions,
		client:     hc,
		maxRetries: cfg.MaxRetries,
		sleep:      time.Sleep,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Prepare is not required for remote embedding.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	v, status, err := c.embed(ctx, text)
	if err != nil {
		return nil, &domain.ServiceError{Service: "embedding", Op: "embed", StatusCode: status, Err: err}
	}
	return v, nil
}

type reqBody struct {
	Input      string `json:"input,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

func (c *Client) embed(ctx context.Context, text string) ([]float64, int, error) {
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	data, err := json.Marshal(reqBody{Input: text, Prompt: text, Model: c.model, Dimensions: c.dimension})
	if err != nil {
		return nil, 0, err
	}
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				c.sleep(retryDelay(attempt))
				continue
			}
			return nil, 0, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				// Respect Retry-After if provided
				delay := retryDelay(attempt)
				if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
					delay = time.Duration(secs) * time.Second
				}
				c.sleep(delay)
				continue
			}
			return nil, resp.StatusCode, fmt.Errorf("openai embeddings failed: %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			return nil, resp.StatusCode, fmt.Errorf("openai embeddings failed: %s: %s", resp.Status, bytes.TrimSpace(body))
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, resp.StatusCode, err
		}
		v, err := decodeEmbedding(payload)
		if err != nil {
			return nil, resp.StatusCode, err
		}
		if c.dimension != 0 && len(v) != c.dimension {
			return nil, resp.StatusCode, fmt.Errorf("embedding has %d dimensions, want %d", len(v), c.dimension)
		}
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		return v, resp.StatusCode, nil
	}
}

// decodeEmbedding accepts the OpenAI shape and the Ollama-native
// { "embedding": [...] } shape.
func decodeEmbedding(payload []byte) ([]float64, error) {
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, nil
		}
	}
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
