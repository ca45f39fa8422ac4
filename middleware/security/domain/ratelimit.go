package domain

// Camada de domínio do rate limit por janela deslizante.

import (
	"context"
	"time"
)

// RateLimitRecord é uma requisição contabilizada para um identificador.
// Timestamp é em epoch milissegundos.
type RateLimitRecord struct {
	Identifier string
	Timestamp  int64
	Endpoint   string
}

// WindowStats é o resultado da contagem de uma janela para um identificador.
// Oldest só é válido quando Count > 0.
type WindowStats struct {
	Count  int
	Oldest int64
}

// RateLimitStore é o armazenamento compartilhado entre instâncias.
//
// O store é consultivo: contar e inserir não são atômicos entre si, e
// escritores concorrentes podem fazer o limite ser excedido levemente.
// Registros nunca são atualizados, apenas inseridos e apagados.
type RateLimitStore interface {
	// DeleteBefore apaga os registros de todos os identificadores com
	// timestamp < cutoff.
	DeleteBefore(ctx context.Context, cutoff int64) error
	// Window conta os registros do identificador com timestamp >= since.
	Window(ctx context.Context, identifier string, since int64) (WindowStats, error)
	Insert(ctx context.Context, rec RateLimitRecord) error
}

// RateLimitPolicy é a política configurada por endpoint.
type RateLimitPolicy struct {
	Window      time.Duration
	MaxRequests int
	// Identifier substitui a chave derivada do cliente (IP).
	Identifier string
	// Endpoint é gravado em cada RateLimitRecord.
	Endpoint string
	// FailClosed nega a requisição quando o store falha. O padrão é fail-open.
	FailClosed bool
}

// RateLimitResult é a decisão do limiter.
//
// ResetTime é sempre windowStart + window (em ms), permitida ou não.
// RetryAfter só é preenchido quando Allowed == false.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	ResetTime  int64
	RetryAfter time.Duration
	// StoreErr guarda a falha do store quando a decisão foi fail-open/fail-closed.
	StoreErr error
}
