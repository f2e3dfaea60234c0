package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement agrupa os coletores de liquidação usados pelo service e pelo worker
type Settlement struct {
	BetsResolved *prometheus.CounterVec // kind, outcome
	Errors       *prometheus.CounterVec // kind
	PassDuration prometheus.Histogram
	PassSkipped  prometheus.Counter
}

func NewSettlement(reg prometheus.Registerer) *Settlement {
	m := &Settlement{
		BetsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_bets_resolved_total",
			Help: "apostas liquidadas por tipo e desfecho",
		}, []string{"kind", "outcome"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_errors_total",
			Help: "falhas ao liquidar por tipo",
		}, []string{"kind"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "settlement_pass_duration_seconds",
			Help:    "duração da passada completa",
			Buckets: prometheus.DefBuckets,
		}),
		PassSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_pass_skipped_total",
			Help: "passadas puladas porque outra réplica tinha o lock",
		}),
	}
	reg.MustRegister(m.BetsResolved, m.Errors, m.PassDuration, m.PassSkipped)
	return m
}

// ObserveResolved casa com resolver.Resolver.OnResolved
func (m *Settlement) ObserveResolved(kind string, won bool) {
	outcome := "lost"
	if won {
		outcome = "won"
	}
	m.BetsResolved.WithLabelValues(kind, outcome).Inc()
}

// ObserveError casa com resolver.Resolver.OnError
func (m *Settlement) ObserveError(kind string) {
	m.Errors.WithLabelValues(kind).Inc()
}

func (m *Settlement) ObservePass(took time.Duration) {
	m.PassDuration.Observe(took.Seconds())
}
