package application

import (
	"context"
	"fmt"
	"time"

	"marketplace-gateway/middleware/security/domain"
)

// ConcurrencyService aplica um SlotPool com prazo para conseguir a vaga.
// Serve tanto para o bulkhead do store quanto para o limite de requisições
// simultâneas do servidor.
type ConcurrencyService struct {
	Pool domain.SlotPool
	// AcquireTimeout <= 0 espera até o ctx encerrar.
	AcquireTimeout time.Duration
}

// Acquire devolve o release da vaga. Sem Pool sempre consegue. A falha
// embrulha domain.ErrNoSlot e o motivo do ctx (prazo ou cancelamento).
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if !ok {
		cause := acqCtx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNoSlot, cause)
	}
	return release, nil
}
