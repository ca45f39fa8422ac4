package domain

import (
	"context"
	"time"
)

type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityDebug, SeverityInfo, SeverityWarn, SeverityError:
		return true
	}
	return false
}

// SecurityLogEvent é um evento de auditoria. Append-only: o gateway nunca
// altera nem apaga eventos gravados.
type SecurityLogEvent struct {
	EventType string
	Severity  Severity
	Message   string
	// Metadata já serializado em JSON (limitado pelo sanitizer).
	Metadata  []byte
	UserID    string
	ClientIP  string
	UserAgent string
	CreatedAt time.Time
}

// AuditStore persiste eventos de segurança.
type AuditStore interface {
	Append(ctx context.Context, ev SecurityLogEvent) error
}
