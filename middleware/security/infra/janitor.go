package infra

import (
	"context"
	"time"

	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/logging"
)

// Janitor apaga periodicamente os registros expirados do rate limit, fora do
// caminho da requisição. Usado quando o limiter roda com SkipCleanup.
type Janitor struct {
	Store  domain.RateLimitStore
	Window time.Duration
	Every  time.Duration
	Logger *logging.Logger
	Now    func() time.Time
}

func (j Janitor) Sweep(ctx context.Context) error {
	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}
	return j.Store.DeleteBefore(ctx, now.Add(-j.Window).UnixMilli())
}

// Start roda Sweep a cada Every até o ctx encerrar.
func (j Janitor) Start(ctx context.Context) {
	if j.Every <= 0 || j.Store == nil {
		return
	}

	t := time.NewTicker(j.Every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := j.Sweep(ctx); err != nil && j.Logger != nil {
					j.Logger.Warn("Rate limit sweep failed", map[string]any{"error": err.Error()})
				}
			}
		}
	}()
}
