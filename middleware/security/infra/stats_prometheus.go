package infra

import (
	"context"

	"marketplace-gateway/middleware/security/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore expõe as decisões como contador.
// O path não vira label para não explodir a cardinalidade.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) (*PrometheusStatsStore, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "security_gateway",
		Name:      "decisions_total",
		Help:      "Security gateway decisions by outcome and method.",
	}, []string{"outcome", "method"})

	if err := reg.Register(decisions); err != nil {
		return nil, err
	}
	return &PrometheusStatsStore{decisions: decisions}, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.OutcomeEvent) error {
	s.decisions.WithLabelValues(string(ev.Outcome), ev.Method).Inc()
	return nil
}

// Collector permite ler o contador em testes.
func (s *PrometheusStatsStore) Collector() *prometheus.CounterVec { return s.decisions }
