package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-care/internal/metrics"
	"github.com/miradorstack/mirador-care/internal/models"
)

// Searcher describes the similarity-search operation used for retrieval. An
// empty source means no source constraint.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, source string) ([]models.RetrievedChunk, error)
}

// RankerOptions tunes a Ranker.
type RankerOptions struct {
	// DefaultLimit is used when a caller passes a non-positive cap.
	DefaultLimit int
	// SearchTimeout bounds each individual search call. Zero disables it.
	SearchTimeout time.Duration
}

// Ranker fans a query out across sources and ranks the merged passages.
type Ranker struct {
	logger   *slog.Logger
	searcher Searcher
	opts     RankerOptions
}

// NewRanker constructs a Ranker over the given searcher.
func NewRanker(logger *slog.Logger, searcher Searcher, opts RankerOptions) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	return &Ranker{logger: logger, searcher: searcher, opts: opts}
}

// Rank returns at most limit passages scoring at least threshold, highest
// first. With sources, one search per source runs concurrently and any branch
// failure fails the whole call. An empty result is not an error.
func (r *Ranker) Rank(ctx context.Context, query string, sources []string, limit int, threshold float64) ([]models.RetrievedChunk, error) {
	if r.searcher == nil {
		return nil, fmt.Errorf("searcher not configured")
	}
	if limit <= 0 {
		limit = r.opts.DefaultLimit
	}

	var candidates []models.RetrievedChunk
	if len(sources) == 0 {
		metrics.ObserveRetrievalFanout(1)
		chunks, err := r.search(ctx, query, limit, "")
		if err != nil {
			metrics.ObserveRetrievalFailure()
			return nil, err
		}
		candidates = chunks
	} else {
		gathered, err := r.fanOut(ctx, query, sources, limit)
		if err != nil {
			return nil, err
		}
		candidates = gathered
	}

	ranked := make([]models.RetrievedChunk, 0, len(candidates))
	for _, chunk := range candidates {
		if chunk.Score >= threshold {
			ranked = append(ranked, chunk)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	r.logger.Debug("retrieval ranked",
		slog.Int("sources", len(sources)),
		slog.Int("candidates", len(candidates)),
		slog.Int("kept", len(ranked)),
	)
	return ranked, nil
}

// fanOut runs one capped search per source and flattens the results in source
// order. The first failure cancels the remaining branches.
func (r *Ranker) fanOut(ctx context.Context, query string, sources []string, limit int) ([]models.RetrievedChunk, error) {
	metrics.ObserveRetrievalFanout(len(sources))

	results := make([][]models.RetrievedChunk, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			chunks, err := r.search(gctx, query, limit, source)
			if err != nil {
				metrics.ObserveRetrievalFailure()
				return fmt.Errorf("search source %q: %w", source, err)
			}
			results[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, chunks := range results {
		total += len(chunks)
	}
	merged := make([]models.RetrievedChunk, 0, total)
	for _, chunks := range results {
		merged = append(merged, chunks...)
	}
	return merged, nil
}

func (r *Ranker) search(ctx context.Context, query string, limit int, source string) ([]models.RetrievedChunk, error) {
	if r.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.SearchTimeout)
		defer cancel()
	}
	return r.searcher.Search(ctx, query, limit, source)
}
