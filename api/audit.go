package api

import (
	"log/slog"
	"net/http"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess           AuditEvent = "login_success"
	AuditLoginFailure           AuditEvent = "login_failure"
	AuditRateLimited            AuditEvent = "rate_limited"
	AuditTokenRejected          AuditEvent = "token_rejected"
	AuditFingerprintMismatch    AuditEvent = "fingerprint_mismatch"
	AuditTokenRefreshed         AuditEvent = "token_refreshed"
	AuditRefreshReplay          AuditEvent = "refresh_replay"
	AuditLogout                 AuditEvent = "logout"
	AuditSessionRevoked         AuditEvent = "session_revoked"
	AuditPasswordResetRequested AuditEvent = "password_reset_requested"
	AuditPasswordResetCompleted AuditEvent = "password_reset_completed"
)

// auditLogger wraps slog.Logger for structured security audit logging.
// Internal audit entries may distinguish failure causes that the HTTP
// responses deliberately collapse into one.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logEvent is a convenience for events tied to a user or session ID.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, subjectID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("subject_id", subjectID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a denied or rejected request with its internal reason.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
