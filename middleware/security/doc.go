// Package security fornece o gateway de segurança colocado na frente dos
// endpoints sensíveis.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (rate limit, auditoria) sem net/http
//   - infra: implementações concretas (Redis, GORM, JWT, x/time/rate, Prometheus)
//   - sanitize / logging: limpeza de payload e log estruturado
//   - security (este pacote): orquestração + tradução para status/headers
//
// Fluxo de cada verificação, sempre nesta ordem:
//
//  1. OPTIONS responde 200 vazio com os headers CORS
//  2. rate limit (se a política existir), chave = override ou IP do cliente
//  3. autenticação Bearer (se exigida)
//  4. parse + sanitização + validador do chamador (métodos com corpo)
//
// A primeira falha encerra com uma Response terminal; o sucesso devolve o
// usuário e os dados sanitizados para o handler seguir. Toda Response
// terminal leva os headers CORS.
package security
