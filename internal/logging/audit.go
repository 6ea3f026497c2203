package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Gate decisions
	AuditGateAllow AuditEventType = "gate_allow"
	AuditGateDeny  AuditEventType = "gate_deny"

	// Model calls
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	// Transform lifecycle
	AuditTransformAttempt  AuditEventType = "transform_attempt"
	AuditTransformComplete AuditEventType = "transform_complete"
	AuditTransformFallback AuditEventType = "transform_fallback"
)

// AuditEvent is one structured audit entry. It never carries user text.
type AuditEvent struct {
	EventType AuditEventType
	EventID   string
	SessionID string
	Action    string
	State     string
	Code      string
	Success   bool
	Duration  time.Duration
	Fields    map[string]interface{}
}

// Audit writes an event to the audit category.
func Audit(ev AuditEvent) {
	l := Get(CategoryAudit).Zap()
	fields := []zap.Field{
		zap.String("event", string(ev.EventType)),
		zap.Bool("success", ev.Success),
	}
	if ev.EventID != "" {
		fields = append(fields, zap.String("event_id", ev.EventID))
	}
	if ev.SessionID != "" {
		fields = append(fields, zap.String("session", ev.SessionID))
	}
	if ev.Action != "" {
		fields = append(fields, zap.String("action", ev.Action))
	}
	if ev.State != "" {
		fields = append(fields, zap.String("state", ev.State))
	}
	if ev.Code != "" {
		fields = append(fields, zap.String("code", ev.Code))
	}
	if ev.Duration > 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.Duration.Milliseconds()))
	}
	for k, v := range ev.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	l.Info("audit", fields...)
}
