package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-care/internal/models"
)

// Config captures the settings required to boot the care engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Clients  ClientsConfig  `yaml:"clients"`
	RAG      RAGConfig      `yaml:"rag"`
	Vitals   VitalsConfig   `yaml:"vitals"`
	Logging  LoggingConfig  `yaml:"logging"`
	Guidance GuidanceConfig `yaml:"guidance"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// ClientsConfig groups the external stores the engine reads from.
type ClientsConfig struct {
	Influx InfluxClientConfig `yaml:"influx"`
	Qdrant QdrantClientConfig `yaml:"qdrant"`
	Ollama OllamaClientConfig `yaml:"ollama"`
}

// InfluxClientConfig configures access to the vitals time-series bucket.
type InfluxClientConfig struct {
	URL       string        `yaml:"url"`
	Org       string        `yaml:"org"`
	Bucket    string        `yaml:"bucket"`
	Token     string        `yaml:"token"`
	DeviceTag string        `yaml:"deviceTag"`
	Timeout   time.Duration `yaml:"timeout"`
}

// QdrantClientConfig configures the document similarity-search collection.
type QdrantClientConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"apiKey"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// OllamaClientConfig configures the query embedding model.
type OllamaClientConfig struct {
	URL               string        `yaml:"url"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// RAGConfig controls retrieval ranking.
type RAGConfig struct {
	NChunks        int           `yaml:"nChunks"`
	ScoreThreshold float64       `yaml:"scoreThreshold"`
	SearchTimeout  time.Duration `yaml:"searchTimeout"`
}

// VitalsConfig controls which channels are read and over what window.
type VitalsConfig struct {
	Lookback     time.Duration `yaml:"lookback"`
	Channels     []string      `yaml:"channels"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// GuidanceConfig controls guidance-pack loading.
type GuidanceConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig selects and tunes the cache backend used for query embeddings.
// Backend is one of none, memory or valkey.
type CacheConfig struct {
	Backend      string        `yaml:"backend"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	IdleConns    int           `yaml:"idleConns"`
	TLS          bool          `yaml:"tls"`
	EmbeddingTTL time.Duration `yaml:"embeddingTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_CARE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if c.RAG.NChunks <= 0 {
		return fmt.Errorf("rag.nChunks must be positive, got %d", c.RAG.NChunks)
	}
	if c.RAG.ScoreThreshold < 0 || c.RAG.ScoreThreshold > 1 {
		return fmt.Errorf("rag.scoreThreshold must be within [0, 1], got %v", c.RAG.ScoreThreshold)
	}
	if c.Vitals.Lookback <= 0 {
		return fmt.Errorf("vitals.lookback must be positive, got %s", c.Vitals.Lookback)
	}
	if _, err := c.VitalChannels(); err != nil {
		return err
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "", "none", "memory":
	case "valkey":
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for the valkey backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// VitalChannels resolves the configured channel names. An empty list selects
// every channel.
func (c *Config) VitalChannels() ([]models.Channel, error) {
	if len(c.Vitals.Channels) == 0 {
		return append([]models.Channel(nil), models.AllChannels...), nil
	}
	out := make([]models.Channel, 0, len(c.Vitals.Channels))
	seen := make(map[models.Channel]struct{}, len(c.Vitals.Channels))
	for _, name := range c.Vitals.Channels {
		channel, ok := models.ParseChannel(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("vitals.channels: unknown channel %q", name)
		}
		if _, dup := seen[channel]; dup {
			continue
		}
		seen[channel] = struct{}{}
		out = append(out, channel)
	}
	return out, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Clients: ClientsConfig{
			Influx: InfluxClientConfig{
				URL:       "http://localhost:8086",
				Bucket:    "vitals",
				DeviceTag: "device_id",
				Timeout:   5 * time.Second,
			},
			Qdrant: QdrantClientConfig{
				URL:        "http://localhost:6333",
				Collection: "documents",
				Timeout:    5 * time.Second,
			},
			Ollama: OllamaClientConfig{
				URL:     "http://localhost:11434",
				Model:   "nomic-embed-text",
				Timeout: 30 * time.Second,
			},
		},
		RAG: RAGConfig{
			NChunks:        5,
			ScoreThreshold: 0.5,
			SearchTimeout:  10 * time.Second,
		},
		Vitals: VitalsConfig{
			Lookback:     15 * time.Minute,
			FetchTimeout: 5 * time.Second,
		},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Guidance: GuidanceConfig{Path: "configs/guidance/default.yaml"},
		Cache: CacheConfig{
			Backend:      "memory",
			KeyPrefix:    "mirador-care:",
			EmbeddingTTL: 10 * time.Minute,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			IdleConns:    4,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	envString("MIRADOR_CARE_SERVER_ADDRESS", &cfg.Server.Address)
	envString("MIRADOR_CARE_METRICS_ADDRESS", &cfg.Server.MetricsAddress)
	envDuration("MIRADOR_CARE_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	envString("MIRADOR_CARE_INFLUX_URL", &cfg.Clients.Influx.URL)
	envString("MIRADOR_CARE_INFLUX_ORG", &cfg.Clients.Influx.Org)
	envString("MIRADOR_CARE_INFLUX_BUCKET", &cfg.Clients.Influx.Bucket)
	envString("MIRADOR_CARE_INFLUX_TOKEN", &cfg.Clients.Influx.Token)
	envString("MIRADOR_CARE_QDRANT_URL", &cfg.Clients.Qdrant.URL)
	envString("MIRADOR_CARE_QDRANT_API_KEY", &cfg.Clients.Qdrant.APIKey)
	envString("MIRADOR_CARE_QDRANT_COLLECTION", &cfg.Clients.Qdrant.Collection)
	envString("MIRADOR_CARE_OLLAMA_URL", &cfg.Clients.Ollama.URL)
	envString("MIRADOR_CARE_OLLAMA_MODEL", &cfg.Clients.Ollama.Model)
	envFloat("MIRADOR_CARE_OLLAMA_RPS", &cfg.Clients.Ollama.RequestsPerSecond)

	envInt("MIRADOR_CARE_RAG_N_CHUNKS", &cfg.RAG.NChunks)
	envFloat("MIRADOR_CARE_RAG_SCORE_THRESHOLD", &cfg.RAG.ScoreThreshold)
	envDuration("MIRADOR_CARE_RAG_SEARCH_TIMEOUT", &cfg.RAG.SearchTimeout)
	if v := os.Getenv("MIRADOR_CARE_VITALS_LOOKBACK_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.Vitals.Lookback = time.Duration(minutes) * time.Minute
		}
	}
	envDuration("MIRADOR_CARE_VITALS_LOOKBACK", &cfg.Vitals.Lookback)
	if v := os.Getenv("MIRADOR_CARE_VITALS_CHANNELS"); v != "" {
		cfg.Vitals.Channels = strings.Split(v, ",")
	}

	envString("MIRADOR_CARE_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("MIRADOR_CARE_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	envString("MIRADOR_CARE_GUIDANCE_PATH", &cfg.Guidance.Path)

	envString("MIRADOR_CARE_CACHE_BACKEND", &cfg.Cache.Backend)
	envString("MIRADOR_CARE_CACHE_ADDR", &cfg.Cache.Addr)
	envString("MIRADOR_CARE_CACHE_USERNAME", &cfg.Cache.Username)
	envString("MIRADOR_CARE_CACHE_PASSWORD", &cfg.Cache.Password)
	envInt("MIRADOR_CARE_CACHE_DB", &cfg.Cache.DB)
	envBool("MIRADOR_CARE_CACHE_TLS", &cfg.Cache.TLS)
	envInt("MIRADOR_CARE_CACHE_MAX_RETRIES", &cfg.Cache.MaxRetries)
	envDuration("MIRADOR_CARE_CACHE_EMBEDDING_TTL", &cfg.Cache.EmbeddingTTL)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
