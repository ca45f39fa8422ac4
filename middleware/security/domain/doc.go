// Package domain define contratos e tipos de domínio do gateway de segurança.
//
// Este pacote não depende de net/http nem de implementações concretas
// (Redis, GORM, JWT). A intenção é permitir testes de unidade puros e
// desacoplar as regras (rate limit, auditoria, autenticação) da infraestrutura.
package domain
