package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BurstGuard é um token bucket por chave (x/time/rate) com cache e limpeza
// periódica. Fica na frente do limiter persistente para descartar rajadas
// sem tocar no store. Não é compartilhado entre instâncias.
type BurstGuard struct {
	mu           sync.Mutex
	entries      map[string]*guardEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type guardEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BurstGuardOption func(*BurstGuard)

func WithIdleTTL(d time.Duration) BurstGuardOption {
	return func(g *BurstGuard) { g.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BurstGuardOption {
	return func(g *BurstGuard) { g.cleanupEvery = d }
}

func NewBurstGuard(rps float64, burst int, opts ...BurstGuardOption) *BurstGuard {
	g := &BurstGuard{
		entries:      make(map[string]*guardEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *BurstGuard) RPS() float64 { return float64(g.rps) }
func (g *BurstGuard) Burst() int   { return g.burst }

// Allow consome um token da chave. Quando nega, devolve quanto esperar até
// o próximo token.
func (g *BurstGuard) Allow(key string) (bool, time.Duration) {
	lim := g.limiter(key)
	r := lim.Reserve()
	if !r.OK() {
		return false, time.Second
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}

func (g *BurstGuard) limiter(key string) *rate.Limiter {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if ent, ok := g.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(g.rps, g.burst)
	g.entries[key] = &guardEntry{lim: lim, lastSeen: now}
	return lim
}

func (g *BurstGuard) Cleanup() {
	cutoff := time.Now().Add(-g.idleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, ent := range g.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(g.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (g *BurstGuard) StartJanitor(ctx context.Context) {
	if g.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(g.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Cleanup()
			}
		}
	}()
}
