package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-care/internal/api"
	"github.com/miradorstack/mirador-care/internal/engine"
	"github.com/miradorstack/mirador-care/internal/extractors"
	carev1 "github.com/miradorstack/mirador-care/internal/grpc/carev1"
	"github.com/miradorstack/mirador-care/internal/metrics"
	"github.com/miradorstack/mirador-care/internal/models"
	"github.com/miradorstack/mirador-care/internal/utils"
)

// CareService implements the gRPC CareEngine service.
type CareService struct {
	carev1.UnimplementedCareEngineServer

	logger         *slog.Logger
	pipeline       *engine.Pipeline
	ranker         *engine.Ranker
	diagnosis      *engine.DiagnosisEngine
	aggregator     *extractors.VitalsAggregator
	guidance       *engine.GuidancePack
	scoreThreshold float64
	latencies      *utils.LatencyTracker
}

// NewCareService constructs the service facade. pipeline and ranker may be nil
// for deployments that only serve the offline operations.
func NewCareService(logger *slog.Logger, pipeline *engine.Pipeline, ranker *engine.Ranker, guidance *engine.GuidancePack, scoreThreshold float64) *CareService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CareService{
		logger:         logger,
		pipeline:       pipeline,
		ranker:         ranker,
		diagnosis:      engine.NewDiagnosisEngine(logger),
		aggregator:     extractors.NewVitalsAggregator(),
		guidance:       guidance,
		scoreThreshold: scoreThreshold,
		latencies:      utils.NewLatencyTracker(1024),
	}
}

// Analyze runs one interaction through the pipeline.
func (s *CareService) Analyze(ctx context.Context, req *carev1.AnalyzeRequest) (*carev1.AnalyzeResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.pipeline == nil {
		return nil, status.Error(codes.FailedPrecondition, "pipeline not configured")
	}

	s.logger.Debug("Analyze called", slog.String("device_id", req.DeviceId), slog.Bool("data_analysis", req.DataAnalysis))

	domainReq, err := api.FromWireAnalyzeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	mode := string(models.ModeRAG)
	if domainReq.DataAnalysis {
		mode = string(models.ModeDataAnalysis)
	}

	start := time.Now()
	result, err := s.pipeline.Analyze(ctx, domainReq)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveInteraction(mode, duration, metrics.OutcomeError)
		s.logger.Error("interaction failed", slog.String("mode", mode), slog.String("op", utils.OpOf(err)), slog.Any("error", err))
		return nil, toStatus(err, "analysis failed")
	}
	s.latencies.Observe(duration)
	metrics.ObserveInteraction(mode, duration, metrics.OutcomeSuccess)
	if total := s.latencies.Total(); total%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("interaction latency", slog.Duration("p95", p95), slog.Int("samples", s.latencies.Count()))
	}

	return api.ToWireAnalyzeResponse(result), nil
}

// ComputeVitals aggregates caller-supplied samples.
func (s *CareService) ComputeVitals(ctx context.Context, req *carev1.ComputeVitalsRequest) (*carev1.ComputeVitalsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	series, err := api.FromWireSeries(req.Series)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	stats := s.aggregator.ComputeStatistics(series)
	return &carev1.ComputeVitalsResponse{Statistics: api.ToWireStatistics(stats)}, nil
}

// Diagnose classifies caller-supplied statistics.
func (s *CareService) Diagnose(ctx context.Context, req *carev1.DiagnoseRequest) (*carev1.DiagnoseResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	stats, err := api.FromWireStatistics(req.Statistics)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result := s.diagnosis.Diagnose(stats)
	names := result.Strings()
	metrics.ObserveConditionCodes(names)
	return &carev1.DiagnoseResponse{
		Codes:    names,
		Derived:  api.ToWireDerived(engine.DerivedIndices(stats)),
		Guidance: api.ToWireGuidance(s.guidance.For(result.Codes())),
	}, nil
}

// Rank runs a standalone retrieval.
func (s *CareService) Rank(ctx context.Context, req *carev1.RankRequest) (*carev1.RankResponse, error) {
	if s.ranker == nil {
		return nil, status.Error(codes.FailedPrecondition, "ranker not configured")
	}
	domainReq, err := api.FromWireRankRequest(req, s.scoreThreshold)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	chunks, err := s.ranker.Rank(ctx, domainReq.Query, domainReq.Sources, domainReq.Limit, domainReq.Threshold)
	if err != nil {
		s.logger.Error("rank failed", slog.Any("error", err))
		return nil, toStatus(err, "ranking failed")
	}
	return &carev1.RankResponse{Chunks: api.ToWireChunks(chunks)}, nil
}

// HealthCheck reports SERVING once the interaction pipeline is wired.
func (s *CareService) HealthCheck(ctx context.Context, req *carev1.HealthRequest) (*carev1.HealthResponse, error) {
	if s.pipeline == nil {
		return &carev1.HealthResponse{Status: "NOT_SERVING"}, nil
	}
	return &carev1.HealthResponse{Status: "SERVING"}, nil
}

// LatencyP95 returns the current p95 interaction latency.
func (s *CareService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, utils.MessageOf(err))
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, msg+": deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msg+": canceled")
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}
