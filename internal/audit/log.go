package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
	"github.com/Badshah-h/v0-production-grade-review/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// Security-relevant events.
const (
	EventRegister       = "auth.register"
	EventLogin          = "auth.login"
	EventLogout         = "auth.logout"
	EventRoleChange     = "user.role_change"
	EventUserDeactivate = "user.deactivate"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
// Field values must never carry tokens or password material.
func LogEvent(ctx context.Context, event string, fields logrus.Fields) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := logrus.Fields{
		"type":  "audit",
		"event": event,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if user, ok := auth.UserFromContext(ctx); ok {
		entry["user_id"] = user.ID
		entry["organization_id"] = user.OrganizationID
	}
	for k, v := range fields {
		if _, reserved := entry[k]; reserved {
			continue
		}
		entry[k] = v
	}
	obs.Logger().WithFields(entry).Info("audit")
	return nil
}
