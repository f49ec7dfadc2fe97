package linkauth

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/MrEthical07/linkauth/internal/audit"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one account-security record handed to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers events on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink writes events as structured log records.
type SlogSink = audit.SlogSink

// NewChannelSink returns a sink whose Events channel holds up to buffer events.
func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink writing to logger.
func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }

const (
	auditEventRegister           = "register"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLogin2FARequired   = "login_2fa_required"
	auditEventOAuthLogin         = "oauth_login"
	auditEventPasswordChanged    = "password_changed"
	auditEvent2FASetup           = "2fa_setup"
	auditEvent2FAEnabled         = "2fa_enabled"
	auditEvent2FADisabled        = "2fa_disabled"
	auditEventSessionRevoked     = "session_revoked"
	auditEventSessionsRevokedAll = "sessions_revoked_bulk"
	auditEventLogout             = "logout"
	auditEventAccountDeleted     = "account_deleted"
)

// AuditErrorCode is the stable error label recorded on failed events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrProviderMismatch   AuditErrorCode = "provider_mismatch"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

type auditRecord struct {
	eventType string
	success   bool
	userID    int64
	email     string
	sessionID int64
	err       error
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	info := RequestInfoFromContext(ctx)
	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      rec.eventType,
		UserID:    rec.userID,
		Email:     rec.email,
		SessionID: rec.sessionID,
		IP:        info.IPAddress,
		Device:    info.DeviceInfo,
		Success:   rec.success,
		Metadata:  rec.metadata,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		event.TraceID = sc.TraceID().String()
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidOneTimeCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrProviderMismatch):
		return auditErrProviderMismatch
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	}

	switch KindOf(err) {
	case KindConflict:
		return auditErrDuplicate
	case KindNotFound:
		return auditErrNotFound
	case KindValidation:
		return auditErrValidation
	case KindUnavailable:
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}
