package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-care/internal/api"
	"github.com/miradorstack/mirador-care/internal/config"
	"github.com/miradorstack/mirador-care/internal/engine"
	carev1 "github.com/miradorstack/mirador-care/internal/grpc/carev1"
	"github.com/miradorstack/mirador-care/internal/models"
)

type stubSearcher struct {
	chunks map[string][]models.RetrievedChunk
	err    error
	block  bool
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int, source string) ([]models.RetrievedChunk, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks[source], nil
}

type stubStore struct {
	series map[models.Channel][]float64
}

func (s *stubStore) FetchSeries(ctx context.Context, deviceID string, channel models.Channel, lookback time.Duration) ([]models.VitalSample, error) {
	start := time.Now().Add(-lookback)
	out := make([]models.VitalSample, 0, len(s.series[channel]))
	for i, v := range s.series[channel] {
		out = append(out, models.VitalSample{Channel: channel, Value: v, Timestamp: start.Add(time.Duration(i) * time.Minute)})
	}
	return out, nil
}

func newTestService(t *testing.T, store engine.VitalsStore, searcher engine.Searcher) *CareService {
	t.Helper()
	pack, err := engine.ParseGuidancePack([]byte("guidance:\n  - code: Hypoglycemia\n    severity: high\n    steps: [\"Take fast-acting carbohydrate\"]\n"), nil)
	require.NoError(t, err)

	ranker := engine.NewRanker(nil, searcher, engine.RankerOptions{DefaultLimit: 3})
	pipeline := engine.NewPipeline(nil, store, ranker, nil, pack, nil, engine.PipelineOptions{ChunkLimit: 3, ScoreThreshold: 0.5})
	return NewCareService(nil, pipeline, ranker, pack, 0.5)
}

func TestAnalyzeDataAnalysis(t *testing.T) {
	store := &stubStore{series: map[models.Channel][]float64{models.ChannelGlucose: {90, 65, 72}}}
	searcher := &stubSearcher{chunks: map[string][]models.RetrievedChunk{
		"": {{Content: "Treat low glucose", SourceName: "diabetes.pdf", Page: 2, Score: 0.9}},
	}}
	service := newTestService(t, store, searcher)

	resp, err := service.Analyze(context.Background(), &carev1.AnalyzeRequest{DeviceId: "dev-1", Question: "I feel shaky", DataAnalysis: true})
	require.NoError(t, err)
	assert.Equal(t, "dataAnalysis", resp.Mode)
	assert.Equal(t, []string{"Hypoglycemia"}, resp.Diagnosis)
	assert.Equal(t, "Question: I feel shaky. Diagnosis: Hypoglycemia.", resp.RetrievalQuery)
	require.Len(t, resp.Guidance, 1)
	assert.Equal(t, "high", resp.Guidance[0].Severity)
	require.Len(t, resp.Chunks, 1)
	assert.Contains(t, resp.Context, "Treat low glucose")
	assert.NotEmpty(t, resp.InteractionId)
}

func TestAnalyzeInvalidArgument(t *testing.T) {
	service := newTestService(t, &stubStore{}, &stubSearcher{})

	_, err := service.Analyze(context.Background(), &carev1.AnalyzeRequest{Question: "q", DataAnalysis: true})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = service.Analyze(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAnalyzeWithoutPipeline(t *testing.T) {
	service := NewCareService(nil, nil, nil, nil, 0.5)
	_, err := service.Analyze(context.Background(), &carev1.AnalyzeRequest{Question: "q"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	health, err := service.HealthCheck(context.Background(), &carev1.HealthRequest{})
	require.NoError(t, err)
	assert.Equal(t, "NOT_SERVING", health.Status)
}

func TestRankMapsErrors(t *testing.T) {
	service := newTestService(t, &stubStore{}, &stubSearcher{err: errors.New("qdrant down")})
	_, err := service.Rank(context.Background(), &carev1.RankRequest{Query: "q", Sources: []string{"a.pdf"}})
	assert.Equal(t, codes.Internal, status.Code(err))

	service = newTestService(t, &stubStore{}, &stubSearcher{block: true})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = service.Rank(ctx, &carev1.RankRequest{Query: "q"})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))

	_, err = service.Rank(context.Background(), &carev1.RankRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestComputeVitalsAndDiagnose(t *testing.T) {
	service := NewCareService(nil, nil, nil, nil, 0.5)

	vitals, err := service.ComputeVitals(context.Background(), &carev1.ComputeVitalsRequest{Series: map[string][]carev1.Sample{
		"temp": {{Value: 36.5}, {Value: 40.2}},
		"hr":   {{Value: 120}, {Value: 130}},
	}})
	require.NoError(t, err)
	temp := vitals.Statistics["temp"]
	require.NotNil(t, temp)
	assert.Equal(t, 2, temp.Count)
	assert.InDelta(t, 40.2, *temp.Max, 1e-9)

	diag, err := service.Diagnose(context.Background(), &carev1.DiagnoseRequest{Statistics: vitals.Statistics})
	require.NoError(t, err)
	assert.Contains(t, diag.Codes, "HeatStrokeRisk")
	assert.NotContains(t, diag.Codes, "FeverSyndrome")

	_, err = service.ComputeVitals(context.Background(), &carev1.ComputeVitalsRequest{Series: map[string][]carev1.Sample{"pulse": nil}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = service.ComputeVitals(context.Background(), &carev1.ComputeVitalsRequest{Series: map[string][]carev1.Sample{
		"hr":                {{Value: 60}},
		"vitals_heart_rate": {{Value: 90}},
	}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCRoundTrip(t *testing.T) {
	searcher := &stubSearcher{chunks: map[string][]models.RetrievedChunk{
		"a.pdf": {{Content: "alpha", SourceName: "a.pdf", Page: 1, Score: 0.7}},
		"b.pdf": {{Content: "beta", SourceName: "b.pdf", Page: 9, Score: 0.95}},
	}}
	service := newTestService(t, &stubStore{}, searcher)

	srv, err := api.NewServer(config.ServerConfig{Address: "127.0.0.1:0", RequestTimeout: 2 * time.Second}, service, nil)
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := carev1.NewCareEngineClient(conn)
	ranked, err := client.Rank(ctx, &carev1.RankRequest{Query: "q", Sources: []string{"a.pdf", "b.pdf"}})
	require.NoError(t, err)
	require.Len(t, ranked.Chunks, 2)
	assert.Equal(t, "beta", ranked.Chunks[0].Content)
	assert.Equal(t, 9, ranked.Chunks[0].Page)

	health, err := client.HealthCheck(ctx, &carev1.HealthRequest{})
	require.NoError(t, err)
	assert.Equal(t, "SERVING", health.Status)

	_, err = client.Analyze(ctx, &carev1.AnalyzeRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	probe, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: carev1.CareEngine_ServiceDesc.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, probe.Status)
}
