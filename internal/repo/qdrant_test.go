package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.5, 0.25}, nil
}

func (e *countingEmbedder) Model() string { return "test-embed" }

func qdrantResponse(t *testing.T, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestQdrantSearchFiltersBySource(t *testing.T) {
	embedder := &countingEmbedder{}
	repo := NewQdrantRepo(QdrantConfig{URL: "http://qdrant.local", APIKey: "k", Collection: "docs"}, embedder, nil, nil)
	repo.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/collections/docs/points/search" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if req.Header.Get("api-key") != "k" {
			t.Fatalf("expected api-key header")
		}
		var body struct {
			Vector      []float32 `json:"vector"`
			Limit       int       `json:"limit"`
			WithPayload bool      `json:"with_payload"`
			Filter      struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Limit != 3 || !body.WithPayload || len(body.Vector) != 2 {
			t.Fatalf("unexpected request body: %+v", body)
		}
		if len(body.Filter.Must) != 1 || body.Filter.Must[0].Key != "metadata.source" || body.Filter.Must[0].Match.Value != "cardiology.pdf" {
			t.Fatalf("unexpected filter: %+v", body.Filter)
		}
		return qdrantResponse(t, map[string]any{
			"result": []map[string]any{
				{"id": 1, "score": 0.91, "payload": map[string]any{"content": "ST elevation", "metadata": map[string]any{"source": "cardiology.pdf", "page": 12}}},
				{"id": 2, "score": 0.72, "payload": map[string]any{"content": "Troponin", "metadata": map[string]any{"source": "cardiology.pdf", "page": "13"}}},
			},
		}), nil
	})

	chunks, err := repo.Search(context.Background(), "chest pain", 3, "cardiology.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Page != 12 || chunks[1].Page != 13 || chunks[0].SourceName != "cardiology.pdf" || chunks[0].Score != 0.91 {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestQdrantSearchUnconstrainedOmitsFilter(t *testing.T) {
	repo := NewQdrantRepo(QdrantConfig{URL: "http://qdrant.local", Collection: "docs"}, &countingEmbedder{}, nil, nil)
	repo.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		if _, ok := body["filter"]; ok {
			t.Fatalf("expected no filter for unconstrained search")
		}
		return qdrantResponse(t, map[string]any{"result": []any{}}), nil
	})
	chunks, err := repo.Search(context.Background(), "q", 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected empty result, got %+v", chunks)
	}
}

func TestQdrantSearchCachesQueryEmbedding(t *testing.T) {
	embedder := &countingEmbedder{}
	cacheStub := newStubCache()
	repo := NewQdrantRepo(QdrantConfig{URL: "http://qdrant.local", Collection: "docs", EmbeddingTTL: time.Minute}, embedder, cacheStub, nil)
	repo.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		return qdrantResponse(t, map[string]any{"result": []any{}}), nil
	})

	for i := 0; i < 2; i++ {
		if _, err := repo.Search(context.Background(), "fever", 2, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if embedder.calls != 1 {
		t.Fatalf("expected one embedding call, got %d", embedder.calls)
	}
	if cacheStub.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cacheStub.sets)
	}
}

func TestQdrantSearchPropagatesFailures(t *testing.T) {
	boom := errors.New("ollama down")
	repo := NewQdrantRepo(QdrantConfig{URL: "http://qdrant.local", Collection: "docs"}, &countingEmbedder{err: boom}, nil, nil)
	if _, err := repo.Search(context.Background(), "q", 2, ""); !errors.Is(err, boom) {
		t.Fatalf("expected embed failure to propagate, got %v", err)
	}

	repo = NewQdrantRepo(QdrantConfig{URL: "http://qdrant.local", Collection: "docs"}, &countingEmbedder{}, nil, nil)
	repo.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"status":{"error":"Collection not found"}}`))),
			Header:     make(http.Header),
		}, nil
	})
	if _, err := repo.Search(context.Background(), "q", 2, "a.pdf"); err == nil {
		t.Fatalf("expected search failure")
	}
}
