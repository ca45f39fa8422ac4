package application

import (
	"context"
	"fmt"
	"time"

	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/logging"
)

const minRetryAfter = time.Second

// MaxIdentifierLength acompanha a coluna rate_limits.identifier. Identificadores
// maiores são cortados antes de consultar e de inserir, então a contagem
// continua coerente.
const MaxIdentifierLength = 255

// RateLimiter aplica "no máximo N requisições por identificador em uma janela
// deslizante W" sobre um store compartilhado.
//
// Contar e inserir não são atômicos: sob concorrência alta do mesmo
// identificador o limite pode ser ultrapassado levemente. É um limite suave,
// serve para mitigar abuso e não para cotas de cobrança.
//
// Falhas do store liberam a requisição (fail-open) e são logadas em error,
// exceto quando a política pede FailClosed.
type RateLimiter struct {
	Store  domain.RateLimitStore
	Logger *logging.Logger
	// SkipCleanup desliga a limpeza global a cada Check; use com o Janitor.
	SkipCleanup bool
	Bulkhead    ConcurrencyService
	Now         func() time.Time
}

func (l RateLimiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l RateLimiter) logger() *logging.Logger {
	if l.Logger == nil {
		return logging.Nop()
	}
	return l.Logger
}

func (l RateLimiter) Check(ctx context.Context, identifier string, p domain.RateLimitPolicy) (res domain.RateLimitResult) {
	identifier = clip(identifier, MaxIdentifierLength)
	nowMs := l.now().UnixMilli()
	windowMs := p.Window.Milliseconds()
	windowStart := nowMs - windowMs
	resetTime := windowStart + windowMs

	if l.Store == nil {
		return domain.RateLimitResult{Allowed: true, Remaining: max(p.MaxRequests-1, 0), ResetTime: resetTime}
	}

	defer func() {
		if r := recover(); r != nil {
			res = l.storeFailure(identifier, p, resetTime, fmt.Errorf("rate limit store panic: %v", r))
		}
	}()

	release, err := l.Bulkhead.Acquire(ctx)
	if err != nil {
		return l.storeFailure(identifier, p, resetTime, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
	}
	defer release()

	if !l.SkipCleanup {
		if err := l.Store.DeleteBefore(ctx, windowStart); err != nil {
			l.logger().Warn("Rate limit cleanup failed", map[string]any{"error": err.Error()})
		}
	}

	stats, err := l.Store.Window(ctx, identifier, windowStart)
	if err != nil {
		return l.storeFailure(identifier, p, resetTime, err)
	}

	if stats.Count >= p.MaxRequests {
		l.logger().Warn("Rate limit exceeded", map[string]any{
			"identifier":  identifier,
			"count":       stats.Count,
			"maxRequests": p.MaxRequests,
			"windowMs":    windowMs,
		})
		return domain.RateLimitResult{
			Allowed:    false,
			Remaining:  0,
			ResetTime:  resetTime,
			RetryAfter: retryAfter(stats, windowMs, nowMs),
		}
	}

	err = l.Store.Insert(ctx, domain.RateLimitRecord{
		Identifier: identifier,
		Timestamp:  nowMs,
		Endpoint:   endpointOrUnknown(p.Endpoint),
	})
	if err != nil {
		return l.storeFailure(identifier, p, resetTime, err)
	}

	return domain.RateLimitResult{
		Allowed:   true,
		Remaining: max(p.MaxRequests-stats.Count-1, 0),
		ResetTime: resetTime,
	}
}

func (l RateLimiter) storeFailure(identifier string, p domain.RateLimitPolicy, resetTime int64, err error) domain.RateLimitResult {
	l.logger().Error("Rate limit check failed", map[string]any{
		"error":      err.Error(),
		"identifier": identifier,
		"failClosed": p.FailClosed,
	})
	return domain.RateLimitResult{
		Allowed:   !p.FailClosed,
		Remaining: 0,
		ResetTime: resetTime,
		StoreErr:  err,
	}
}

// retryAfter estima quando o registro mais antigo da janela expira.
func retryAfter(stats domain.WindowStats, windowMs, nowMs int64) time.Duration {
	if stats.Count == 0 {
		return minRetryAfter
	}
	d := time.Duration(stats.Oldest+windowMs-nowMs) * time.Millisecond
	if d < minRetryAfter {
		return minRetryAfter
	}
	return d
}

func endpointOrUnknown(e string) string {
	if e == "" {
		return "unknown"
	}
	return e
}
