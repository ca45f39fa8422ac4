// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisRateLimitStore / GormRateLimitStore / MemoryRateLimitStore: registros do rate limit
//   - GormAuditStore / MemoryAuditStore: eventos de segurança (security_logs)
//   - JWTIdentityProvider: bearer token HS256 -> Principal
//   - BurstGuard: token bucket por chave usando golang.org/x/time/rate
//   - Semaphore: SlotPool por channel (bulkhead do store e limite de requisições em voo)
//   - Memory/Redis/Prometheus StatsStore: contadores de decisões do gateway
package infra
