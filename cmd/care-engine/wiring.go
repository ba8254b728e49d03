package main

import (
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-care/internal/cache"
	"github.com/miradorstack/mirador-care/internal/config"
	"github.com/miradorstack/mirador-care/internal/engine"
	"github.com/miradorstack/mirador-care/internal/extractors"
	"github.com/miradorstack/mirador-care/internal/repo"
)

// newCacheProvider opens the embedding cache backend. A backend that cannot
// be opened degrades to no caching.
func newCacheProvider(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	provider, err := cache.Open(cfg.Backend, cache.ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		KeyPrefix:    cfg.KeyPrefix,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
		IdleConns:    cfg.IdleConns,
	})
	if err != nil {
		logger.Warn("cache backend unavailable, continuing without cache", slog.String("backend", cfg.Backend), slog.Any("error", err))
		return cache.NoopProvider{}
	}
	return provider
}

func newRanker(cfg *config.Config, cacheProvider cache.Provider, logger *slog.Logger) *engine.Ranker {
	embedder := repo.NewOllamaEmbedder(repo.OllamaConfig{
		URL:               cfg.Clients.Ollama.URL,
		Model:             cfg.Clients.Ollama.Model,
		Timeout:           cfg.Clients.Ollama.Timeout,
		RequestsPerSecond: cfg.Clients.Ollama.RequestsPerSecond,
		Burst:             cfg.Clients.Ollama.Burst,
	}, logger)

	qdrant := repo.NewQdrantRepo(repo.QdrantConfig{
		URL:          cfg.Clients.Qdrant.URL,
		APIKey:       cfg.Clients.Qdrant.APIKey,
		Collection:   cfg.Clients.Qdrant.Collection,
		Timeout:      cfg.Clients.Qdrant.Timeout,
		EmbeddingTTL: cfg.Cache.EmbeddingTTL,
	}, embedder, cacheProvider, logger)

	return engine.NewRanker(logger, qdrant, engine.RankerOptions{
		DefaultLimit:  cfg.RAG.NChunks,
		SearchTimeout: cfg.RAG.SearchTimeout,
	})
}

func newPipeline(cfg *config.Config, ranker *engine.Ranker, guidance *engine.GuidancePack, logger *slog.Logger) (*engine.Pipeline, error) {
	channels, err := cfg.VitalChannels()
	if err != nil {
		return nil, err
	}

	influx := repo.NewInfluxClient(repo.InfluxConfig{
		URL:       cfg.Clients.Influx.URL,
		Org:       cfg.Clients.Influx.Org,
		Bucket:    cfg.Clients.Influx.Bucket,
		Token:     cfg.Clients.Influx.Token,
		DeviceTag: cfg.Clients.Influx.DeviceTag,
		Timeout:   cfg.Clients.Influx.Timeout,
	}, logger)

	return engine.NewPipeline(
		logger,
		influx,
		ranker,
		engine.NewDiagnosisEngine(logger),
		guidance,
		extractors.NewVitalsAggregator(),
		engine.PipelineOptions{
			Channels:       channels,
			Lookback:       cfg.Vitals.Lookback,
			ChunkLimit:     cfg.RAG.NChunks,
			ScoreThreshold: cfg.RAG.ScoreThreshold,
			FetchTimeout:   cfg.Vitals.FetchTimeout,
		},
	), nil
}

func loadGuidance(cfg *config.Config, logger *slog.Logger) (*engine.GuidancePack, error) {
	pack, err := engine.LoadGuidancePack(cfg.Guidance.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("load guidance pack: %w", err)
	}
	return pack, nil
}
