package repo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OllamaConfig holds settings for the embedding endpoint.
type OllamaConfig struct {
	URL               string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// OllamaEmbedder turns text into vectors using Ollama's embeddings API.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewOllamaEmbedder creates an embedder. A non-positive RequestsPerSecond
// disables client-side rate limiting.
func NewOllamaEmbedder(cfg OllamaConfig, logger *slog.Logger) *OllamaEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string {
	return e.model
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}

	payload := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: e.model, Prompt: text}

	var response struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := postJSON(ctx, e.httpClient, e.baseURL+"/api/embeddings", nil, payload, &response); err != nil {
		return nil, fmt.Errorf("ollama embeddings request failed: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}

	e.logger.Debug("query embedded", slog.String("model", e.model), slog.Int("dimensions", len(response.Embedding)))
	return response.Embedding, nil
}
