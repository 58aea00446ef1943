package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/Alirun/StreamSaga/pkg/config"
)

// Client converts free text into a fixed-length vector. Callers on the
// duplicate-detection path catch errors and degrade to "no similar items";
// this layer never suppresses them.
type Client interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
	Dimensions() int
}

// HTTPClient talks to an OpenAI-compatible /v1/embeddings endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient constructs the provider client.
func NewHTTPClient(cfg config.EmbeddingConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Dimensions returns the configured vector width.
func (c *HTTPClient) Dimensions() int {
	return c.dimensions
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed requests a vector for the given text. Empty or whitespace-only input
// is replaced with a single space: the provider rejects empty strings but
// the contract requires a vector for any input.
func (c *HTTPClient) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		input = " "
	}

	payload, err := json.Marshal(embeddingsRequest{Model: c.model, Input: []string{input}})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("read embeddings response: %w", err)
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return pgvector.Vector{}, fmt.Errorf("decode embeddings response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return pgvector.Vector{}, fmt.Errorf("embeddings provider returned %d: %s", resp.StatusCode, msg)
	}

	if len(parsed.Data) == 0 {
		return pgvector.Vector{}, fmt.Errorf("embeddings provider returned no data")
	}

	raw := parsed.Data[0].Embedding
	if c.dimensions > 0 && len(raw) != c.dimensions {
		return pgvector.Vector{}, fmt.Errorf("embeddings provider returned %d dimensions, expected %d", len(raw), c.dimensions)
	}

	vec := make([]float32, len(raw))
	for i, f := range raw {
		vec[i] = float32(f)
	}

	return pgvector.NewVector(vec), nil
}
