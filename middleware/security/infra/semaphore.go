package infra

import (
	"context"
	"sync"
	"sync/atomic"
)

// Semaphore é um domain.SlotPool baseado em channel. InUse e Cap existem
// para virar gauge em /metrics.
type Semaphore struct {
	slots  chan struct{}
	inUse  atomic.Int64
	waited atomic.Int64
}

func NewSemaphore(max int) *Semaphore {
	if max < 1 {
		max = 1
	}
	return &Semaphore{slots: make(chan struct{}, max)}
}

// Acquire bloqueia até ter vaga ou o ctx encerrar. O release pode ser
// chamado mais de uma vez; só a primeira devolve a vaga.
func (s *Semaphore) Acquire(ctx context.Context) (func(), bool) {
	select {
	case s.slots <- struct{}{}:
	default:
		s.waited.Add(1)
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, false
		}
	}

	s.inUse.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.inUse.Add(-1)
			<-s.slots
		})
	}, true
}

func (s *Semaphore) InUse() int { return int(s.inUse.Load()) }
func (s *Semaphore) Cap() int   { return cap(s.slots) }

// Waited conta quantas aquisições encontraram o pool cheio.
func (s *Semaphore) Waited() int64 { return s.waited.Load() }
