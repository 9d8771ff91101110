// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection
	// patterns in a search term or resolved parameter.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventDefinitionRejected is logged when a stored report fails validation.
	EventDefinitionRejected SecurityEventType = "definition_rejected"
	// EventReportExport is logged for every bulk export.
	EventReportExport SecurityEventType = "report_export"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID uuid.UUID         `json:"request_id,omitempty"`
	ReportID  string            `json:"report_id"`
	TenantID  string            `json:"tenant_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	ReportTitle string `json:"report_title"`
}

// ExportDetails describes a completed or interrupted export.
type ExportDetails struct {
	Format   string `json:"format"`
	Rows     int64  `json:"rows"`
	Filtered bool   `json:"filtered"`
	Aborted  bool   `json:"aborted,omitempty"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func newEvent(ctx context.Context, eventType SecurityEventType, reportID string, details any, severity string) SecurityEvent {
	info := GetRequestInfo(ctx)
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RequestID: info.ID,
		ReportID:  reportID,
		TenantID:  auth.GetTenantIDFromContext(ctx),
		UserID:    auth.GetUserIDFromContext(ctx),
		ClientIP:  info.ClientIP,
		Details:   details,
		Severity:  severity,
	}
}

func (e SecurityEvent) fields() []zap.Field {
	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(e)
	return []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("report_id", e.ReportID),
		zap.String("tenant_id", e.TenantID),
		zap.String("user_id", e.UserID),
		zap.String("client_ip", e.ClientIP),
		zap.String("severity", e.Severity),
	}
}

// LogInjectionAttempt records a detected SQL injection pattern with full context.
// This is logged at ERROR level with "critical" severity for immediate alerting.
// The request still runs: every value reaches the database as a bind parameter.
//
// Example usage:
//
//	auditor.LogInjectionAttempt(ctx, "monthly-sales",
//	    audit.SQLInjectionDetails{
//	        ParamName:   "search",
//	        ParamValue:  "'; DROP TABLE users--",
//	        Fingerprint: "s&1c",
//	        ReportTitle: "Monthly sales",
//	    },
//	)
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, reportID string, details SQLInjectionDetails) {
	event := newEvent(ctx, EventSQLInjectionAttempt, reportID, details, "critical")
	a.logger.Error("SQL injection attempt detected",
		append(event.fields(),
			zap.String("param_name", details.ParamName),
			zap.String("fingerprint", details.Fingerprint))...)
}

// LogDefinitionRejected records a stored report that failed validation.
// Logged at WARN: the definition is broken, nothing was executed.
func (a *SecurityAuditor) LogDefinitionRejected(ctx context.Context, reportID string, reason string) {
	event := newEvent(ctx, EventDefinitionRejected, reportID, map[string]string{"error": reason}, "warning")
	a.logger.Warn("Report definition rejected",
		append(event.fields(), zap.String("error", reason))...)
}

// LogExport records a bulk export for the audit trail.
func (a *SecurityAuditor) LogExport(ctx context.Context, reportID string, details ExportDetails) {
	event := newEvent(ctx, EventReportExport, reportID, details, "info")
	a.logger.Info("Report exported",
		append(event.fields(),
			zap.String("format", details.Format),
			zap.Int64("rows", details.Rows),
			zap.Bool("aborted", details.Aborted))...)
}
