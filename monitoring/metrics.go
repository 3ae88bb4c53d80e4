package monitoring

import (
	"sync"
	"time"
)

// PredictionStats counts served predictions by mode, label and error kind.
type PredictionStats struct {
	mu sync.RWMutex

	total    int64
	byMode   map[string]int64
	byLabel  map[string]int64
	errors   map[string]int64
	latency  latencySummary
	started  time.Time
	lastSeen time.Time
}

type latencySummary struct {
	count int64
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

// StatsSnapshot is a point-in-time copy of PredictionStats.
type StatsSnapshot struct {
	Total        int64            `json:"total"`
	ByMode       map[string]int64 `json:"by_mode"`
	ByLabel      map[string]int64 `json:"by_label"`
	Errors       map[string]int64 `json:"errors"`
	AvgLatencyMs float64          `json:"avg_latency_ms"`
	MinLatencyMs float64          `json:"min_latency_ms"`
	MaxLatencyMs float64          `json:"max_latency_ms"`
	Uptime       string           `json:"uptime"`
	LastSeen     *time.Time       `json:"last_prediction,omitempty"`
}

func NewPredictionStats() *PredictionStats {
	return &PredictionStats{
		byMode:  make(map[string]int64),
		byLabel: make(map[string]int64),
		errors:  make(map[string]int64),
		started: time.Now(),
	}
}

func (s *PredictionStats) RecordPrediction(mode, label string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byMode[mode]++
	s.byLabel[label]++
	s.lastSeen = time.Now()

	l := &s.latency
	if l.count == 0 || latency < l.min {
		l.min = latency
	}
	if latency > l.max {
		l.max = latency
	}
	l.count++
	l.sum += latency
}

func (s *PredictionStats) RecordError(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[kind]++
}

func (s *PredictionStats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := StatsSnapshot{
		Total:   s.total,
		ByMode:  copyCounts(s.byMode),
		ByLabel: copyCounts(s.byLabel),
		Errors:  copyCounts(s.errors),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.latency.count > 0 {
		snapshot.AvgLatencyMs = milliseconds(s.latency.sum / time.Duration(s.latency.count))
		snapshot.MinLatencyMs = milliseconds(s.latency.min)
		snapshot.MaxLatencyMs = milliseconds(s.latency.max)
	}
	if !s.lastSeen.IsZero() {
		last := s.lastSeen
		snapshot.LastSeen = &last
	}
	return snapshot
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
