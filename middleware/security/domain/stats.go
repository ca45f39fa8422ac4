package domain

import (
	"context"
	"time"
)

// Outcome é o estado terminal (ou CONTINUE) de uma verificação do gateway.
type Outcome string

const (
	OutcomeCORS            Outcome = "cors_ok"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeBadRequest      Outcome = "bad_request"
	OutcomeValidation      Outcome = "validation_failed"
	OutcomeInternal        Outcome = "internal_error"
	OutcomeContinue        Outcome = "continue"
)

// OutcomeEvent representa uma decisão do gateway.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Identifier/Path sem
// controle pode explodir o número de séries/chaves no Redis/Prometheus).
type OutcomeEvent struct {
	Identifier string
	Outcome    Outcome

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do gateway.
// O gateway trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev OutcomeEvent) error
}
