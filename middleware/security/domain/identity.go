package domain

import (
	"context"
	"errors"
)

// ErrInvalidToken indica token inválido, expirado ou de usuário inexistente.
// Provedores devem embrulhar esse erro (fmt.Errorf("...: %w", ErrInvalidToken)).
var ErrInvalidToken = errors.New("invalid authentication token")

// Principal é o usuário autenticado. Claims é opaco para o gateway.
type Principal struct {
	ID     string
	Email  string
	Role   string
	Claims map[string]any
}

// IdentityProvider resolve um bearer token em um Principal.
type IdentityProvider interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}
