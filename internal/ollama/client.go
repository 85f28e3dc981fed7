// Package ollama is a small client for the Ollama embed and generate endpoints.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/recall/internal/resilience"
	"go.uber.org/zap"
)

// DefaultURL is the address of a local Ollama daemon.
const DefaultURL = "http://127.0.0.1:11434"

// Client talks to one Ollama base URL. Calls go through the resilience
// executor when one is configured.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithExecutor routes every call through exec.
func WithExecutor(exec *resilience.Executor) Option {
	return func(c *Client) { c.executor = exec }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for baseURL (DefaultURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Embed returns one embedding per input text using /api/embed.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	request := map[string]any{
		"model": model,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.call(ctx, resilience.OpEmbed, "/api/embed", request, &response); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

// GenerateOptions are sampling options forwarded to /api/generate.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
}

// Generate runs a non-streaming completion and returns the trimmed response text.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	request := map[string]any{
		"model":   model,
		"prompt":  prompt,
		"stream":  false,
		"options": opts,
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, resilience.OpGenerate, "/api/generate", request, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, op resilience.Operation, path string, payload, out any) error {
	if c.executor == nil {
		return c.postJSON(ctx, op, path, payload, out)
	}
	return c.executor.Execute(ctx, op, func(ctx context.Context) error {
		return c.postJSON(ctx, op, path, payload, out)
	})
}
