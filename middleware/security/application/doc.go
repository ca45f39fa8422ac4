// Package application contém os casos de uso do gateway de segurança:
// rate limit por janela deslizante, gravação de eventos de auditoria e o
// controle de vagas para chamadas ao store.
//
// Ele depende apenas de domain (e do logger) e não conhece net/http.
// Ex.: RateLimiter.Check(ctx, id, policy) retorna um RateLimitResult.
package application
