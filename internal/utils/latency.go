package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent durations in a fixed-size ring and
// answers percentile queries over them.
type LatencyTracker struct {
	mu    sync.Mutex
	ring  []time.Duration
	next  int
	full  bool
	total int64
}

// NewLatencyTracker creates a tracker retaining up to size samples.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 512
	}
	return &LatencyTracker{ring: make([]time.Duration, size)}
}

// Observe records d, overwriting the oldest sample once the ring is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring[l.next] = d
	l.next++
	if l.next == len(l.ring) {
		l.next = 0
		l.full = true
	}
	l.total++
}

// Percentile returns the nearest-rank percentile (0-100) of the retained
// samples, or zero when none were recorded.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	samples := l.snapshot()
	if len(samples) == 0 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	switch {
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[int((p/100.0)*float64(len(samples)-1))]
}

// Count returns the number of retained samples.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.ring)
	}
	return l.next
}

// Total returns how many samples were ever observed.
func (l *LatencyTracker) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *LatencyTracker) snapshot() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return append([]time.Duration(nil), l.ring...)
	}
	return append([]time.Duration(nil), l.ring[:l.next]...)
}
