package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider is the byte-level cache used for query embeddings. Misses are
// reported as ErrCacheMiss; callers treat every other error as a degraded
// cache, never as a request failure.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendValkey = "valkey"
)

// Open returns the provider for backend. An empty backend means none; the
// Valkey settings are only consulted for BackendValkey.
func Open(backend string, valkey ValkeyConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendNone:
		return NoopProvider{}, nil
	case BackendMemory:
		return NewMemoryProvider(), nil
	case BackendValkey:
		provider, err := NewValkeyProvider(valkey)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// NoopProvider stores nothing.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
