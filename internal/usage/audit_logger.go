package usage

import (
	"time"

	"go.uber.org/zap"
)

// AuditLogger emits structured audit events for governance outcomes:
// rejected overrides, budget denials, and backend failures.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit logger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogger{logger: logger}
}

// AuditEvent records one governance outcome for a request.
type AuditEvent struct {
	RequestID      string
	UserID         string
	Model          string
	Action         string // "REQUEST_DENIED", "OVERRIDE_REJECTED", "BACKEND_FAILED"
	DecisionReason string // "BUDGET_EXCEEDED", "OVERRIDE_QUOTA_EXCEEDED", "BACKEND_ERROR"
	Timestamp      time.Time
}

// LogDenial logs a request denial.
func (a *AuditLogger) LogDenial(event AuditEvent) {
	event.Timestamp = time.Now().UTC()
	a.logger.Info("request denied",
		zap.String("request_id", event.RequestID),
		zap.String("user_id", event.UserID),
		zap.String("model", event.Model),
		zap.String("action", event.Action),
		zap.String("decision_reason", event.DecisionReason),
		zap.Time("timestamp", event.Timestamp),
	)
}

// LogDegradation logs a non-fatal governance downgrade, such as an override
// that exceeded its daily quota and fell back to the gate decision.
func (a *AuditLogger) LogDegradation(event AuditEvent) {
	event.Timestamp = time.Now().UTC()
	a.logger.Info("request degraded",
		zap.String("request_id", event.RequestID),
		zap.String("user_id", event.UserID),
		zap.String("action", event.Action),
		zap.String("decision_reason", event.DecisionReason),
		zap.Time("timestamp", event.Timestamp),
	)
}
