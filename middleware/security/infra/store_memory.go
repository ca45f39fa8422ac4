package infra

import (
	"context"
	"sync"

	"marketplace-gateway/middleware/security/domain"
)

// MemoryRateLimitStore guarda os registros no processo.
// Útil para testes e para rodar uma instância só; não é compartilhado entre
// instâncias.
type MemoryRateLimitStore struct {
	mu   sync.Mutex
	recs map[string][]domain.RateLimitRecord
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{recs: make(map[string][]domain.RateLimitRecord)}
}

func (s *MemoryRateLimitStore) DeleteBefore(_ context.Context, cutoff int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, recs := range s.recs {
		kept := recs[:0]
		for _, r := range recs {
			if r.Timestamp >= cutoff {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(s.recs, id)
			continue
		}
		s.recs[id] = kept
	}
	return nil
}

func (s *MemoryRateLimitStore) Window(_ context.Context, identifier string, since int64) (domain.WindowStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st domain.WindowStats
	for _, r := range s.recs[identifier] {
		if r.Timestamp < since {
			continue
		}
		if st.Count == 0 || r.Timestamp < st.Oldest {
			st.Oldest = r.Timestamp
		}
		st.Count++
	}
	return st, nil
}

func (s *MemoryRateLimitStore) Insert(_ context.Context, rec domain.RateLimitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Identifier] = append(s.recs[rec.Identifier], rec)
	return nil
}

// Len devolve o total de registros de todos os identificadores.
func (s *MemoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, recs := range s.recs {
		n += len(recs)
	}
	return n
}

// MemoryAuditStore guarda eventos em memória (append-only).
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []domain.SecurityLogEvent
}

func NewMemoryAuditStore() *MemoryAuditStore { return &MemoryAuditStore{} }

func (s *MemoryAuditStore) Append(_ context.Context, ev domain.SecurityLogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryAuditStore) Events() []domain.SecurityLogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SecurityLogEvent, len(s.events))
	copy(out, s.events)
	return out
}
