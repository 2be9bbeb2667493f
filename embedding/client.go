// Package embedding turns text into fixed-dimension vectors via an
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidemind/tidemind/config"
)

// Provider generates vector embeddings for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
	Dimensions() int
}

// ErrMissingAPIKey is returned when no credentials are configured.
var ErrMissingAPIKey = errors.New("embedding: missing api key")

// Client calls an OpenAI-compatible /embeddings endpoint
// (DashScope compatible-mode in the default configuration).
type Client struct {
	apiKey string
	base   string
	model  string
	dims   int
	client *http.Client
}

// NewClient creates a Client from cfg.
func NewClient(cfg config.EmbeddingConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey: cfg.APIKey,
		base:   cfg.APIBase,
		model:  cfg.Model,
		dims:   cfg.Dimensions,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Model() string   { return c.model }
func (c *Client) Dimensions() int { return c.dims }

// Embed sends text to the embeddings endpoint and returns the vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqBody := map[string]any{
		"model": c.model,
		"input": text,
	}
	if c.dims > 0 {
		reqBody["dimensions"] = c.dims
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.base+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response contained no vectors")
	}

	return result.Data[0].Embedding, nil
}
