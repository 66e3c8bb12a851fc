package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
	"github.com/Badshah-h/v0-production-grade-review/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Out
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithUser(ctx, auth.User{ID: "user-42", OrganizationID: "org-7"})

	require.NoError(t, LogEvent(ctx, EventRoleChange, logrus.Fields{
		"target_user_id": "user-9",
		"event":          "ignored",
	}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "audit", entry["type"])
	assert.Equal(t, EventRoleChange, entry["event"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "user-42", entry["user_id"])
	assert.Equal(t, "org-7", entry["organization_id"])
	assert.Equal(t, "user-9", entry["target_user_id"])
	assert.Contains(t, entry, "ts")
}

func TestLogEventRequiresName(t *testing.T) {
	assert.Error(t, LogEvent(context.Background(), "  ", nil))
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Equal(t, "abc", RequestIDFromContext(WithRequestID(context.Background(), " abc ")))
	assert.Empty(t, RequestIDFromContext(WithRequestID(context.Background(), " ")))
}
