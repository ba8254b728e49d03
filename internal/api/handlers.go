package api

import (
	"fmt"
	"strings"

	carev1 "github.com/miradorstack/mirador-care/internal/grpc/carev1"
	"github.com/miradorstack/mirador-care/internal/models"
)

// FromWireAnalyzeRequest maps the gRPC request into a domain InteractionRequest.
func FromWireAnalyzeRequest(req *carev1.AnalyzeRequest) (models.InteractionRequest, error) {
	if req == nil {
		return models.InteractionRequest{}, fmt.Errorf("request is nil")
	}
	if strings.TrimSpace(req.Question) == "" {
		return models.InteractionRequest{}, fmt.Errorf("question is required")
	}
	if req.DataAnalysis && strings.TrimSpace(req.DeviceId) == "" {
		return models.InteractionRequest{}, fmt.Errorf("deviceId is required when dataAnalysis is set")
	}
	return models.InteractionRequest{
		DeviceID:     req.DeviceId,
		SessionID:    req.SessionId,
		Question:     req.Question,
		DataAnalysis: req.DataAnalysis,
		Sources:      compactStrings(req.Sources),
	}, nil
}

// ToWireAnalyzeResponse converts a domain result into the gRPC representation.
func ToWireAnalyzeResponse(res models.InteractionResult) *carev1.AnalyzeResponse {
	resp := &carev1.AnalyzeResponse{
		InteractionId:  res.InteractionID,
		Mode:           string(res.Mode),
		DeviceId:       res.DeviceID,
		SessionId:      res.SessionID,
		Question:       res.Question,
		RetrievalQuery: res.RetrievalQuery,
		Chunks:         ToWireChunks(res.Chunks),
		Context:        res.Context,
		VitalsSummary:  res.VitalsSummary,
		CreatedAt:      res.CreatedAt,
	}
	if res.Mode == models.ModeDataAnalysis {
		resp.Statistics = ToWireStatistics(res.Statistics)
		resp.Derived = ToWireDerived(res.Derived)
		resp.Diagnosis = codeStrings(res.Diagnosis)
		resp.Guidance = ToWireGuidance(res.Guidance)
	}
	return resp
}

// FromWireSeries maps raw samples keyed by channel name. Unknown channel
// names and two names for the same channel are rejected.
func FromWireSeries(series map[string][]carev1.Sample) (map[models.Channel][]models.VitalSample, error) {
	out := make(map[models.Channel][]models.VitalSample, len(series))
	seen := make(map[models.Channel]string, len(series))
	for name, samples := range series {
		channel, err := resolveChannel(name, seen)
		if err != nil {
			return nil, err
		}
		mapped := make([]models.VitalSample, 0, len(samples))
		for _, s := range samples {
			mapped = append(mapped, models.VitalSample{Channel: channel, Value: s.Value, Timestamp: s.Timestamp})
		}
		out[channel] = mapped
	}
	return out, nil
}

// FromWireStatistics maps per-channel summaries keyed by channel name, with
// the same name rules as FromWireSeries.
func FromWireStatistics(stats map[string]*carev1.Statistic) (models.Statistics, error) {
	if stats == nil {
		return nil, nil
	}
	out := make(models.Statistics, len(stats))
	seen := make(map[models.Channel]string, len(stats))
	for name, stat := range stats {
		channel, err := resolveChannel(name, seen)
		if err != nil {
			return nil, err
		}
		if stat == nil {
			out[channel] = nil
			continue
		}
		out[channel] = &models.VitalStatistic{
			Min:    stat.Min,
			Max:    stat.Max,
			Mean:   stat.Mean,
			Median: stat.Median,
			StdDev: stat.StdDev,
			Count:  stat.Count,
			Latest: stat.Latest,
		}
	}
	return out, nil
}

// resolveChannel parses name and records it in seen. A channel named twice,
// e.g. "hr" and "vitals_heart_rate", is an error.
func resolveChannel(name string, seen map[models.Channel]string) (models.Channel, error) {
	channel, ok := models.ParseChannel(name)
	if !ok {
		return "", fmt.Errorf("unknown channel %q", name)
	}
	if prev, dup := seen[channel]; dup {
		a, b := prev, name
		if b < a {
			a, b = b, a
		}
		return "", fmt.Errorf("channel %q given twice (%q and %q)", string(channel), a, b)
	}
	seen[channel] = name
	return channel, nil
}

// ToWireStatistics drops non-finite values, which JSON cannot carry.
func ToWireStatistics(stats models.Statistics) map[string]*carev1.Statistic {
	if stats == nil {
		return nil
	}
	out := make(map[string]*carev1.Statistic, len(stats))
	for channel, stat := range stats {
		if stat == nil {
			out[string(channel)] = nil
			continue
		}
		out[string(channel)] = &carev1.Statistic{
			Min:    finite(stat.Min),
			Max:    finite(stat.Max),
			Mean:   finite(stat.Mean),
			Median: finite(stat.Median),
			StdDev: finite(stat.StdDev),
			Count:  stat.Count,
			Latest: finite(stat.Latest),
		}
	}
	return out
}

// ToWireDerived returns nil when neither index is known.
func ToWireDerived(d models.DerivedIndices) *carev1.DerivedIndices {
	if !models.Finite(d.MeanArterialPressure) && !models.Finite(d.ShockIndex) {
		return nil
	}
	return &carev1.DerivedIndices{
		MeanArterialPressure: finite(d.MeanArterialPressure),
		ShockIndex:           finite(d.ShockIndex),
	}
}

// ToWireChunks keeps rank order and never returns nil.
func ToWireChunks(chunks []models.RetrievedChunk) []carev1.Chunk {
	out := make([]carev1.Chunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, carev1.Chunk{
			Content:    c.Content,
			SourceName: c.SourceName,
			Page:       c.Page,
			Score:      c.Score,
		})
	}
	return out
}

// ToWireGuidance copies guidance entries in code order.
func ToWireGuidance(items []models.Guidance) []carev1.Guidance {
	if len(items) == 0 {
		return nil
	}
	out := make([]carev1.Guidance, 0, len(items))
	for _, g := range items {
		out = append(out, carev1.Guidance{
			Code:     string(g.Code),
			Severity: string(g.Severity),
			Steps:    append([]string(nil), g.Steps...),
		})
	}
	return out
}

// FromWireRankRequest applies the caller's threshold or falls back to def.
func FromWireRankRequest(req *carev1.RankRequest, def float64) (models.RankRequest, error) {
	if req == nil {
		return models.RankRequest{}, fmt.Errorf("request is nil")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return models.RankRequest{}, fmt.Errorf("query is required")
	}
	threshold := def
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	return models.RankRequest{
		Query:     query,
		Sources:   compactStrings(req.Sources),
		Limit:     req.Limit,
		Threshold: threshold,
	}, nil
}

func codeStrings(codes []models.ConditionCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

// compactStrings trims and drops blanks while keeping order. Repeated values
// are kept: each source entry is searched once.
func compactStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func finite(p *float64) *float64 {
	if !models.Finite(p) {
		return nil
	}
	v := *p
	return &v
}
