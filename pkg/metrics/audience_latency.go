// Package metrics keeps in-process latency windows for segmentation operations.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Operation names recorded by the services.
const (
	OpSegmentApply          = "segment.apply"
	OpSegmentationRefresh   = "segmentation.refresh"
	OpEngagementRecalculate = "engagement.recalculate"
	OpSuggestionAnalyze     = "suggestion.analyze"
)

// Tracker keeps a sliding window of durations for one operation.
type Tracker struct {
	mu      sync.Mutex
	samples []time.Duration
	window  int
	errors  int64
	total   int64
}

func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = 500
	}
	return &Tracker{samples: make([]time.Duration, 0, window), window: window}
}

// Observe records one run of the operation.
func (t *Tracker) Observe(d time.Duration, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) == t.window {
		copy(t.samples, t.samples[1:])
		t.samples = t.samples[:t.window-1]
	}
	t.samples = append(t.samples, d)
	t.total++
	if failed {
		t.errors++
	}
}

// Stats returns a snapshot of the window.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	sorted := append([]time.Duration(nil), t.samples...)
	total, errs := t.total, t.errors
	t.mu.Unlock()

	if len(sorted) == 0 {
		return Stats{Total: total, Errors: errs}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Stats{
		Total:  total,
		Errors: errs,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Avg:    sum / time.Duration(len(sorted)),
		P50:    rank(sorted, 0.50),
		P95:    rank(sorted, 0.95),
		P99:    rank(sorted, 0.99),
	}
}

func rank(sorted []time.Duration, p float64) time.Duration {
	return sorted[int(float64(len(sorted)-1)*p)]
}

// Stats is a latency snapshot.
type Stats struct {
	Total  int64         `json:"total"`
	Errors int64         `json:"errors"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Avg    time.Duration `json:"avg"`
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
}

// ToMap renders durations in milliseconds.
func (s Stats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"total":  s.Total,
		"errors": s.Errors,
		"min_ms": ms(s.Min),
		"max_ms": ms(s.Max),
		"avg_ms": ms(s.Avg),
		"p50_ms": ms(s.P50),
		"p95_ms": ms(s.P95),
		"p99_ms": ms(s.P99),
	}
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds one tracker per operation name.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
	window   int
}

func NewRegistry(window int) *Registry {
	return &Registry{trackers: make(map[string]*Tracker), window: window}
}

func (r *Registry) tracker(op string) *Tracker {
	r.mu.RLock()
	t, ok := r.trackers[op]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.trackers[op]; !ok {
		t = NewTracker(r.window)
		r.trackers[op] = t
	}
	return t
}

func (r *Registry) Observe(op string, d time.Duration, failed bool) {
	r.tracker(op).Observe(d, failed)
}

func (r *Registry) All() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.trackers))
	for op, t := range r.trackers {
		out[op] = t.Stats()
	}
	return out
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() { global = NewRegistry(500) })
	return global
}

// Since records the time elapsed from start under op in the global registry.
// Call it deferred with a pointer to the operation's error.
func Since(op string, start time.Time, errp *error) {
	failed := errp != nil && *errp != nil
	Global().Observe(op, time.Since(start), failed)
}
