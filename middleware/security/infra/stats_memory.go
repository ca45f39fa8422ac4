package infra

import (
	"context"
	"sync"

	"marketplace-gateway/middleware/security/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(o domain.Outcome) {
	if passed(o) {
		c.Allowed++
		return
	}
	c.Denied++
}

// StatsSnapshot é a leitura agregada servida em /stats.
type StatsSnapshot struct {
	Total     Counters                 `json:"total"`
	ByOutcome map[domain.Outcome]int64 `json:"byOutcome"`
	ByRoute   map[string]Counters      `json:"byRoute"`
	ByKey     map[string]Counters      `json:"byKey"`
}

func newStatsSnapshot() StatsSnapshot {
	return StatsSnapshot{
		ByOutcome: make(map[domain.Outcome]int64),
		ByRoute:   make(map[string]Counters),
		ByKey:     make(map[string]Counters),
	}
}

// passed diz se o desfecho deixa a requisição seguir (ou é preflight).
func passed(o domain.Outcome) bool {
	return o == domain.OutcomeContinue || o == domain.OutcomeCORS
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byOutcome map[domain.Outcome]int64
	byRoute   map[string]Counters
	byKey     map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byOutcome: make(map[domain.Outcome]int64),
		byRoute:   make(map[string]Counters),
		byKey:     make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.OutcomeEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)
	s.byOutcome[ev.Outcome]++

	c := s.byRoute[route]
	c.add(ev.Outcome)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[ev.Identifier]
		k.add(ev.Outcome)
		s.byKey[ev.Identifier] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByOutcome() map[domain.Outcome]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Outcome]int64, len(s.byOutcome))
	for k, v := range s.byOutcome {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) Snapshot(context.Context) (StatsSnapshot, error) {
	return StatsSnapshot{
		Total:     s.Total(),
		ByOutcome: s.ByOutcome(),
		ByRoute:   s.ByRoute(),
		ByKey:     s.ByKey(),
	}, nil
}
