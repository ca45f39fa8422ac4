package domain

import (
	"context"
	"errors"
)

// ErrStoreUnavailable indica que não foi possível obter uma vaga para falar
// com o store dentro do tempo limite.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// ErrNoSlot indica que o SlotPool não liberou vaga a tempo.
var ErrNoSlot = errors.New("no slot available")

// SlotPool representa um recurso com capacidade finita (ex: chamadas
// simultâneas ao store).
//
// A semântica é: Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada ao terminar.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
