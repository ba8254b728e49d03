package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful interactions.
	OutcomeSuccess = "success"
	// OutcomeError labels failed interactions (pipeline or dependency issues).
	OutcomeError = "error"
)

var (
	interactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_care",
			Name:      "interactions_total",
			Help:      "Total number of interactions handled, partitioned by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	interactionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mirador_care",
			Name:      "interaction_seconds",
			Help:      "Interaction latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"mode"},
	)

	retrievalFanout = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_care",
			Name:      "retrieval_fanout_width",
			Help:      "Number of concurrent similarity searches issued per ranking call.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		},
	)

	retrievalBranchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mirador_care",
			Name:      "retrieval_branch_failures_total",
			Help:      "Similarity searches that failed and aborted their ranking call.",
		},
	)

	conditionCodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_care",
			Name:      "condition_codes_total",
			Help:      "Condition codes emitted by the diagnosis engine.",
		},
		[]string{"code"},
	)
)

// Register attaches mirador-care collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		interactionsTotal,
		interactionDurationSeconds,
		retrievalFanout,
		retrievalBranchFailures,
		conditionCodesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInteraction records an interaction duration with its mode and outcome labels.
func ObserveInteraction(mode string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	if mode == "" {
		mode = "unknown"
	}
	interactionsTotal.WithLabelValues(mode, label).Inc()
	if duration < 0 {
		duration = 0
	}
	interactionDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveRetrievalFanout records how many searches a ranking call issued.
func ObserveRetrievalFanout(width int) {
	retrievalFanout.Observe(float64(width))
}

// ObserveRetrievalFailure counts a failed search branch.
func ObserveRetrievalFailure() {
	retrievalBranchFailures.Inc()
}

// ObserveConditionCodes counts every emitted condition code.
func ObserveConditionCodes(codes []string) {
	for _, code := range codes {
		conditionCodesTotal.WithLabelValues(code).Inc()
	}
}
