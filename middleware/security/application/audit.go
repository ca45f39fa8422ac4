package application

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/logging"
	"marketplace-gateway/middleware/security/sanitize"
)

// MaxStackLength limita o campo "stack" dos metadados.
const MaxStackLength = 1000

// Limites dos campos de texto do security_logs, em caracteres. Acompanham o
// tamanho das colunas no Postgres.
const (
	MaxEventTypeLength = 64
	MaxMessageLength   = 1024
	MaxUserIDLength    = 64
	MaxClientIPLength  = 64
	MaxUserAgentLength = 255
)

// AuditEntry é o que o chamador informa; o AuditLogger completa o resto.
type AuditEntry struct {
	EventType string
	Severity  domain.Severity
	Message   string
	Metadata  map[string]any
	UserID    string
	ClientIP  string
	UserAgent string
}

// AuditLogger grava eventos de segurança no AuditStore e os espelha no log.
// Falha ao gravar nunca volta para o chamador.
type AuditLogger struct {
	Store  domain.AuditStore
	Logger *logging.Logger
	Now    func() time.Time
}

func (a AuditLogger) logger() *logging.Logger {
	if a.Logger == nil {
		return logging.Nop()
	}
	return a.Logger
}

func (a AuditLogger) Record(ctx context.Context, e AuditEntry) {
	sev := e.Severity
	if !sev.Valid() {
		sev = domain.SeverityInfo
	}
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	e.EventType = clip(e.EventType, MaxEventTypeLength)
	e.Message = clip(e.Message, MaxMessageLength)
	e.UserID = clip(e.UserID, MaxUserIDLength)
	e.ClientIP = clip(e.ClientIP, MaxClientIPLength)
	e.UserAgent = clip(e.UserAgent, MaxUserAgentLength)
	meta := boundMetadata(e.Metadata)

	logMeta := map[string]any{"eventType": e.EventType}
	if e.UserID != "" {
		logMeta["userId"] = e.UserID
	}
	if len(meta) > 2 {
		logMeta["metadata"] = json.RawMessage(meta)
	}
	a.logger().Log(severityLevel(sev), e.Message, logMeta)

	if a.Store == nil {
		return
	}
	err := a.Store.Append(ctx, domain.SecurityLogEvent{
		EventType: e.EventType,
		Severity:  sev,
		Message:   e.Message,
		Metadata:  meta,
		UserID:    e.UserID,
		ClientIP:  e.ClientIP,
		UserAgent: e.UserAgent,
		CreatedAt: now,
	})
	if err != nil {
		a.logger().Error("Failed to log security event", map[string]any{
			"error":     err.Error(),
			"eventType": e.EventType,
		})
	}
}

// FunctionError monta o evento "function_error" com a stack atual.
func FunctionError(message string, err error, userID string) AuditEntry {
	return AuditEntry{
		EventType: "function_error",
		Severity:  domain.SeverityError,
		Message:   message,
		Metadata: map[string]any{
			"error": err.Error(),
			"stack": string(debug.Stack()),
		},
		UserID: userID,
	}
}

// boundMetadata serializa os metadados passando pelo sanitizer. Qualquer
// falha vira "{}".
func boundMetadata(meta map[string]any) []byte {
	if len(meta) == 0 {
		return []byte("{}")
	}
	if s, ok := meta["stack"].(string); ok {
		capped := make(map[string]any, len(meta))
		for k, v := range meta {
			capped[k] = v
		}
		if r := []rune(s); len(r) > MaxStackLength {
			capped["stack"] = string(r[:MaxStackLength])
		}
		meta = capped
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return []byte("{}")
	}
	v, err := sanitize.Payload(raw)
	if err != nil {
		return []byte("{}")
	}
	out, err := v.MarshalJSON()
	if err != nil {
		return []byte("{}")
	}
	return out
}

// clip corta s em n runas.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func severityLevel(s domain.Severity) logging.Level {
	switch s {
	case domain.SeverityDebug:
		return logging.LevelDebug
	case domain.SeverityWarn:
		return logging.LevelWarn
	case domain.SeverityError:
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
