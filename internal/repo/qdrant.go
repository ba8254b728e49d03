package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-care/internal/cache"
	"github.com/miradorstack/mirador-care/internal/models"
)

// Embedder converts query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// QdrantConfig holds connection settings for the vector collection.
type QdrantConfig struct {
	URL          string
	APIKey       string
	Collection   string
	Timeout      time.Duration
	EmbeddingTTL time.Duration
}

// QdrantRepo performs similarity search over document chunks stored in Qdrant.
type QdrantRepo struct {
	endpoint     string
	apiKey       string
	collection   string
	httpClient   *http.Client
	embedder     Embedder
	cache        cache.Provider
	embeddingTTL time.Duration
	logger       *slog.Logger
}

// NewQdrantRepo constructs a Qdrant client. Query embeddings are cached for
// EmbeddingTTL when it is positive.
func NewQdrantRepo(cfg QdrantConfig, embedder Embedder, cacheProvider cache.Provider, logger *slog.Logger) *QdrantRepo {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.EmbeddingTTL < 0 {
		cfg.EmbeddingTTL = 0
	}
	return &QdrantRepo{
		endpoint:     strings.TrimRight(cfg.URL, "/"),
		apiKey:       cfg.APIKey,
		collection:   cfg.Collection,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		embedder:     embedder,
		cache:        cacheProvider,
		embeddingTTL: cfg.EmbeddingTTL,
		logger:       logger,
	}
}

// Search returns up to topK chunks most similar to query. A non-empty source
// restricts results to chunks whose metadata.source equals it.
func (r *QdrantRepo) Search(ctx context.Context, query string, topK int, source string) ([]models.RetrievedChunk, error) {
	if r == nil {
		return nil, fmt.Errorf("qdrant repo not initialised")
	}
	if r.endpoint == "" || r.collection == "" {
		return nil, fmt.Errorf("qdrant endpoint or collection not configured")
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("qdrant embedder not configured")
	}
	if topK <= 0 {
		return nil, nil
	}

	vector, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if source != "" {
		payload["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "metadata.source", "match": map[string]any{"value": source}},
			},
		}
	}

	var response struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				Content  string `json:"content"`
				Metadata struct {
					Source string          `json:"source"`
					Page   json.RawMessage `json:"page"`
				} `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points/search", r.endpoint, url.PathEscape(r.collection))
	if err := postJSON(ctx, r.httpClient, endpoint, r.headers(), payload, &response); err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(response.Result))
	for _, hit := range response.Result {
		chunks = append(chunks, models.RetrievedChunk{
			Content:    hit.Payload.Content,
			SourceName: hit.Payload.Metadata.Source,
			Page:       parsePage(hit.Payload.Metadata.Page),
			Score:      hit.Score,
		})
	}
	return chunks, nil
}

func (r *QdrantRepo) embed(ctx context.Context, query string) ([]float32, error) {
	cacheKey := ""
	if r.embeddingTTL > 0 {
		cacheKey = cache.Key("embedding", r.embedder.Model(), query)
		var cached []float32
		err := cache.GetValue(ctx, r.cache, cacheKey, &cached)
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("embedding cache read failed", slog.Any("error", err))
		}
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if cacheKey != "" {
		if err := cache.SetValue(ctx, r.cache, cacheKey, vector, r.embeddingTTL); err != nil {
			r.logger.Warn("embedding cache write failed", slog.Any("error", err))
		}
	}
	return vector, nil
}

func (r *QdrantRepo) headers() http.Header {
	header := make(http.Header)
	if r.apiKey != "" {
		header.Set("api-key", r.apiKey)
	}
	return header
}

// parsePage accepts numeric or string page numbers; anything else is 0.
func parsePage(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}
