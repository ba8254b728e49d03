package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-care/internal/extractors"
	"github.com/miradorstack/mirador-care/internal/metrics"
	"github.com/miradorstack/mirador-care/internal/models"
	"github.com/miradorstack/mirador-care/internal/utils"
)

// ErrInvalidRequest marks requests rejected before any dependency is called.
var ErrInvalidRequest = errors.New("invalid request")

// VitalsStore defines the time-series read used by the pipeline.
type VitalsStore interface {
	FetchSeries(ctx context.Context, deviceID string, channel models.Channel, lookback time.Duration) ([]models.VitalSample, error)
}

// PipelineOptions carries the read-only knobs shared by every interaction.
type PipelineOptions struct {
	Channels       []models.Channel
	Lookback       time.Duration
	ChunkLimit     int
	ScoreThreshold float64
	FetchTimeout   time.Duration
}

// Pipeline orchestrates one interaction: vitals, diagnosis, retrieval and
// context rendering. Answer synthesis is left to the caller.
type Pipeline struct {
	logger     *slog.Logger
	store      VitalsStore
	aggregator *extractors.VitalsAggregator
	diagnosis  *DiagnosisEngine
	ranker     *Ranker
	guidance   *GuidancePack
	opts       PipelineOptions
}

// NewPipeline constructs a new interaction pipeline.
func NewPipeline(
	logger *slog.Logger,
	store VitalsStore,
	ranker *Ranker,
	diagnosis *DiagnosisEngine,
	guidance *GuidancePack,
	aggregator *extractors.VitalsAggregator,
	opts PipelineOptions,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if aggregator == nil {
		aggregator = extractors.NewVitalsAggregator()
	}
	if diagnosis == nil {
		diagnosis = NewDiagnosisEngine(logger)
	}
	if len(opts.Channels) == 0 {
		opts.Channels = append([]models.Channel(nil), models.AllChannels...)
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 15 * time.Minute
	}
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = 5
	}

	return &Pipeline{
		logger:     logger,
		store:      store,
		aggregator: aggregator,
		diagnosis:  diagnosis,
		ranker:     ranker,
		guidance:   guidance,
		opts:       opts,
	}
}

// Analyze runs a single interaction. In data-analysis mode the device's vitals
// are fetched, aggregated and diagnosed before retrieval; otherwise the
// question alone drives retrieval.
func (p *Pipeline) Analyze(ctx context.Context, req models.InteractionRequest) (models.InteractionResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return models.InteractionResult{}, utils.NewAppError("analyze", "question is required", ErrInvalidRequest)
	}
	if req.DataAnalysis && strings.TrimSpace(req.DeviceID) == "" {
		return models.InteractionResult{}, utils.NewAppError("analyze", "device id is required for data analysis", ErrInvalidRequest)
	}
	if p.ranker == nil {
		return models.InteractionResult{}, fmt.Errorf("ranker not configured")
	}

	result := models.InteractionResult{
		InteractionID:  uuid.NewString(),
		Mode:           models.ModeRAG,
		DeviceID:       req.DeviceID,
		SessionID:      req.SessionID,
		Question:       question,
		RetrievalQuery: question,
	}

	if req.DataAnalysis {
		result.Mode = models.ModeDataAnalysis

		stats, err := p.Vitals(ctx, req.DeviceID)
		if err != nil {
			return models.InteractionResult{}, utils.NewAppError("analyze", "fetch vitals", err)
		}
		diagnosis := p.diagnosis.Diagnose(stats)
		codes := diagnosis.Codes()
		metrics.ObserveConditionCodes(diagnosis.Strings())

		result.Statistics = stats
		result.Derived = DerivedIndices(stats)
		result.Diagnosis = codes
		result.Guidance = p.guidance.For(codes)
		result.VitalsSummary = FormatVitals(stats)
		result.RetrievalQuery = BuildRetrievalQuery(question, codes)
	}

	chunks, err := p.ranker.Rank(ctx, result.RetrievalQuery, req.Sources, p.opts.ChunkLimit, p.opts.ScoreThreshold)
	if err != nil {
		return models.InteractionResult{}, utils.NewAppError("analyze", "rank passages", err)
	}
	result.Chunks = chunks
	result.Context = FormatContext(chunks)
	result.CreatedAt = time.Now().UTC()

	p.logger.Info("interaction analysed",
		slog.String("interaction_id", result.InteractionID),
		slog.String("mode", string(result.Mode)),
		slog.Int("chunks", len(chunks)),
		slog.Int("codes", len(result.Diagnosis)),
	)
	return result, nil
}

// Vitals fetches every configured channel for a device concurrently and
// aggregates the readings. Any failed fetch fails the whole call.
func (p *Pipeline) Vitals(ctx context.Context, deviceID string) (models.Statistics, error) {
	if p.store == nil {
		return nil, fmt.Errorf("vitals store not configured")
	}

	channels := p.opts.Channels
	series := make([][]models.VitalSample, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, channel := range channels {
		i, channel := i, channel
		g.Go(func() error {
			fetchCtx := gctx
			if p.opts.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(gctx, p.opts.FetchTimeout)
				defer cancel()
			}
			samples, err := p.store.FetchSeries(fetchCtx, deviceID, channel, p.opts.Lookback)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", channel, err)
			}
			series[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byChannel := make(map[models.Channel][]models.VitalSample, len(channels))
	for i, channel := range channels {
		byChannel[channel] = series[i]
	}
	return p.aggregator.ComputeStatistics(byChannel), nil
}

// BuildRetrievalQuery combines the question and diagnosis into one search
// query, e.g. "Question: why am I dizzy. Diagnosis: Hypoglycemia." Empty parts
// are omitted.
func BuildRetrievalQuery(question string, codes []models.ConditionCode) string {
	parts := make([]string, 0, 2)
	if q := strings.TrimSpace(question); q != "" {
		parts = append(parts, "Question: "+q+".")
	}
	if len(codes) > 0 {
		names := make([]string, len(codes))
		for i, c := range codes {
			names[i] = string(c)
		}
		parts = append(parts, "Diagnosis: "+strings.Join(names, ", ")+".")
	}
	return strings.Join(parts, " ")
}
