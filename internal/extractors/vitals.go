package extractors

import (
	"math"
	"sort"

	"github.com/miradorstack/mirador-care/internal/models"
)

// VitalsAggregator summarises raw samples into per-channel statistics.
type VitalsAggregator struct{}

// NewVitalsAggregator creates a statistics aggregator.
func NewVitalsAggregator() *VitalsAggregator {
	return &VitalsAggregator{}
}

// ComputeStatistics returns a summary for every channel present in series.
// Channels without finite samples map to nil. Samples are expected in
// ascending time order; the last finite one becomes Latest.
func (a *VitalsAggregator) ComputeStatistics(series map[models.Channel][]models.VitalSample) models.Statistics {
	stats := make(models.Statistics, len(series))
	for channel, samples := range series {
		stats[channel] = a.Summarise(samples)
	}
	return stats
}

// Summarise computes a statistic for a single series. NaN and infinite values
// are ignored.
func (a *VitalsAggregator) Summarise(samples []models.VitalSample) *models.VitalStatistic {
	values := make([]float64, 0, len(samples))
	for _, sample := range samples {
		if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
			continue
		}
		values = append(values, sample.Value)
	}
	if len(values) == 0 {
		return nil
	}

	latest := values[len(values)-1]

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += math.Pow(v-mean, 2)
	}
	variance /= float64(len(values))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return &models.VitalStatistic{
		Min:    models.Float(sorted[0]),
		Max:    models.Float(sorted[len(sorted)-1]),
		Mean:   models.Float(mean),
		Median: models.Float(median(sorted)),
		StdDev: models.Float(math.Sqrt(variance)),
		Count:  len(values),
		Latest: models.Float(latest),
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
