package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-gateway/middleware/security/domain"
	"marketplace-gateway/middleware/security/logging"
)

type recordingAudit struct {
	events []domain.SecurityLogEvent
	err    error
}

func (r *recordingAudit) Append(_ context.Context, ev domain.SecurityLogEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func TestAuditLogger_RecordPersistsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	store := &recordingAudit{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := AuditLogger{Store: store, Logger: logging.New(logging.LevelInfo, &buf), Now: func() time.Time { return at }}

	a.Record(context.Background(), AuditEntry{
		EventType: "project_created",
		Severity:  domain.SeverityInfo,
		Message:   "User created new project",
		Metadata:  map[string]any{"project_id": "p1", "<b>": "x"},
		UserID:    "u1",
	})

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Equal(t, "project_created", ev.EventType)
	assert.Equal(t, at, ev.CreatedAt)
	assert.Equal(t, "u1", ev.UserID)
	assert.JSONEq(t, `{"b":"x","project_id":"p1"}`, string(ev.Metadata))
	assert.Contains(t, buf.String(), "User created new project")
}

func TestAuditLogger_CapsStack(t *testing.T) {
	store := &recordingAudit{}
	a := AuditLogger{Store: store}

	a.Record(context.Background(), AuditEntry{
		EventType: "function_error",
		Severity:  domain.SeverityError,
		Metadata:  map[string]any{"stack": strings.Repeat("x", 5000)},
	})

	var meta map[string]string
	require.NoError(t, json.Unmarshal(store.events[0].Metadata, &meta))
	assert.Len(t, meta["stack"], MaxStackLength)
}

func TestAuditLogger_ClipsFieldsToColumnSizes(t *testing.T) {
	store := &recordingAudit{}
	a := AuditLogger{Store: store}

	a.Record(context.Background(), AuditEntry{
		EventType: strings.Repeat("e", 100),
		Message:   strings.Repeat("m", 5000),
		UserID:    strings.Repeat("u", 100),
		ClientIP:  strings.Repeat("9", 500),
		UserAgent: strings.Repeat("ü", 1000),
	})

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Equal(t, MaxEventTypeLength, utf8.RuneCountInString(ev.EventType))
	assert.Equal(t, MaxMessageLength, utf8.RuneCountInString(ev.Message))
	assert.Equal(t, MaxUserIDLength, utf8.RuneCountInString(ev.UserID))
	assert.Equal(t, MaxClientIPLength, utf8.RuneCountInString(ev.ClientIP))
	assert.Equal(t, MaxUserAgentLength, utf8.RuneCountInString(ev.UserAgent))
	assert.True(t, utf8.ValidString(ev.UserAgent))
}

func TestAuditLogger_StoreFailureIsLoggedOnly(t *testing.T) {
	var buf bytes.Buffer
	a := AuditLogger{Store: &recordingAudit{err: errors.New("db gone")}, Logger: logging.New(logging.LevelInfo, &buf)}

	assert.NotPanics(t, func() {
		a.Record(context.Background(), AuditEntry{EventType: "x", Message: "m"})
	})
	assert.Contains(t, buf.String(), "Failed to log security event")
	assert.Contains(t, buf.String(), "db gone")
}

func TestFunctionError_CarriesStack(t *testing.T) {
	e := FunctionError("Unexpected error", errors.New("boom"), "u1")
	assert.Equal(t, "function_error", e.EventType)
	assert.Equal(t, domain.SeverityError, e.Severity)
	assert.Equal(t, "boom", e.Metadata["error"])
	assert.NotEmpty(t, e.Metadata["stack"])
}
