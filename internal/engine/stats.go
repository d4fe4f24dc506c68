package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirrors of the in-process counters. The counters themselves
// are authoritative for the stats accessor; these exist for scraping.
var (
	metricEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_evaluations_total",
		Help: "Total three-gate evaluations performed.",
	})
	metricGatePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_engine_gate_passes_total",
		Help: "Gate pass counts by gate number.",
	}, []string{"gate"})
	metricSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_signals_emitted_total",
		Help: "Signals emitted after passing all gates and the rate limit.",
	})
	metricEvalDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "signal_engine_evaluation_seconds",
		Help: "Wall time per three-gate evaluation.",
	})
)

// Stats holds in-memory engine counters. They reset at process start and
// are not a durability guarantee. The mutex exists because the ops API
// reads them from another goroutine.
type Stats struct {
	mu sync.Mutex

	startedAt        time.Time
	totalEvaluations int64
	gatePasses       [3]int64
	signalsEmitted   int64
	totalEvalTime    time.Duration
}

// StatsSnapshot is a point-in-time copy for reporting.
type StatsSnapshot struct {
	StartedAt        time.Time     `json:"started_at"`
	Uptime           time.Duration `json:"uptime"`
	TotalEvaluations int64         `json:"total_evaluations"`
	Gate1Passes      int64         `json:"gate1_passes"`
	Gate2Passes      int64         `json:"gate2_passes"`
	Gate3Passes      int64         `json:"gate3_passes"`
	SignalsEmitted   int64         `json:"signals_emitted"`
	TotalEvalTime    time.Duration `json:"total_evaluation_time"`
}

// NewStats creates counters anchored at the current time.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) recordEvaluation(d time.Duration) {
	s.mu.Lock()
	s.totalEvaluations++
	s.totalEvalTime += d
	s.mu.Unlock()

	metricEvaluations.Inc()
	metricEvalDuration.Observe(d.Seconds())
}

func (s *Stats) recordGatePass(gate int) {
	s.mu.Lock()
	s.gatePasses[gate-1]++
	s.mu.Unlock()

	metricGatePasses.WithLabelValues([]string{"1", "2", "3"}[gate-1]).Inc()
}

func (s *Stats) recordSignal() {
	s.mu.Lock()
	s.signalsEmitted++
	s.mu.Unlock()

	metricSignals.Inc()
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		StartedAt:        s.startedAt,
		Uptime:           time.Since(s.startedAt),
		TotalEvaluations: s.totalEvaluations,
		Gate1Passes:      s.gatePasses[0],
		Gate2Passes:      s.gatePasses[1],
		Gate3Passes:      s.gatePasses[2],
		SignalsEmitted:   s.signalsEmitted,
		TotalEvalTime:    s.totalEvalTime,
	}
}
