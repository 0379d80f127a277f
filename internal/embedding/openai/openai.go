// Package openai implements the Embedder capability against any
// OpenAI-compatible /embeddings endpoint (OpenAI, Azure, Ollama's
// compatibility layer, vLLM and friends).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"docrag/internal/errs"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
)

// Known dimensions per model, used before the first round-trip reveals
// the real value.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the embeddings client. The API key is read from the
// environment variable named by APIKeyEnv so keys never land in config
// files.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// Client talks to an OpenAI-compatible embeddings endpoint. It performs
// a single attempt per call; transient failures are reported as
// CodeEmbedUnavailable and retried by the engine.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	// dimension is set lazily from the first response; concurrent
	// EmbedBatch calls read and publish it without extra locking.
	dimension atomic.Int64
}

// NewClient creates an embeddings client from the configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, errs.Errorf(errs.CodeConfigInvalid, "missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  key,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
	c.dimension.Store(int64(modelDimensions[cfg.Model]))
	return c, nil
}

func (c *Client) Name() string { return "openai" }

// Dimension returns the vector dimension. Zero until known, either from
// the model table or from the first successful embedding.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, errs.New(errs.CodeEmbedInputEmpty, "cannot embed empty text")
		}
	}

	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeEmbedUnavailable, "marshal embeddings request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeEmbedUnavailable, "build embeddings request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeEmbedUnavailable, "embeddings endpoint unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeEmbedUnavailable, "read embeddings response")
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		err := errs.Errorf(errs.CodeEmbedUnavailable, "embeddings endpoint returned %s", resp.Status)
		if delay, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			err = errs.WithRetryAfter(err, delay)
		}
		return nil, err
	}

	var out embeddingResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errs.Wrapf(err, errs.CodeEmbedUnavailable, "decode embeddings response (status %s)", resp.Status)
	}
	if out.Error != nil {
		return nil, errs.Errorf(errs.CodeEmbedUnavailable, "embeddings endpoint error: %s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Errorf(errs.CodeEmbedUnavailable, "embeddings endpoint returned %s: %s", resp.Status, truncate(string(body), 200))
	}
	if len(out.Data) != len(texts) {
		return nil, errs.Errorf(errs.CodeEmbedUnavailable, "expected %d embeddings, got %d", len(texts), len(out.Data))
	}

	// Responses carry an index field; order by it rather than trusting
	// array order.
	vectors := make([][]float32, len(texts))
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, errs.Errorf(errs.CodeEmbedUnavailable, "embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, errs.Errorf(errs.CodeEmbedUnavailable, "no embedding returned for input %d", i)
		}
	}
	c.dimension.CompareAndSwap(0, int64(len(vectors[0])))
	return vectors, nil
}

// parseRetryAfter understands the integer-seconds form of the header;
// HTTP-date values are ignored.
func parseRetryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s… (%d bytes)", s[:n], len(s))
}
