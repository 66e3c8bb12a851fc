package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
)

func setup(t *testing.T, now func() time.Time) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), Config{URL: "redis://" + mr.Addr()}, WithClock(now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "::not a url"})
	assert.Error(t, err)
}

func TestUpsertAndFind(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mr := setup(t, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, auth.Session{
		UserID: "u1", TokenHash: "h1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	assert.True(t, mr.Exists("session:h1"))
	assert.Equal(t, time.Hour, mr.TTL("session:h1"))

	sess, err := s.FindSession(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "h1", sess.TokenHash)
	assert.Equal(t, now.Add(time.Hour), sess.ExpiresAt)

	// Refreshing keeps the original creation time.
	require.NoError(t, s.UpsertSession(ctx, auth.Session{
		UserID: "u1", TokenHash: "h1", CreatedAt: now.Add(time.Minute), ExpiresAt: now.Add(2 * time.Hour),
	}))
	sess, err = s.FindSession(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, now, sess.CreatedAt)
	assert.Equal(t, now.Add(2*time.Hour), sess.ExpiresAt)
	assert.Equal(t, 2*time.Hour, mr.TTL("session:h1"))
}

func TestExpiredSessionsDisappear(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mr := setup(t, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, auth.Session{UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)
	_, err := s.FindSession(ctx, "h1")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, s.UpsertSession(ctx, auth.Session{UserID: "u1", TokenHash: "h2", ExpiresAt: now.Add(-time.Second)}))
	assert.False(t, mr.Exists("session:h2"))

	n, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFindRechecksExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	s, _ := setup(t, func() time.Time { return clock })
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, auth.Session{UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}))
	clock = now.Add(time.Hour)
	_, err := s.FindSession(ctx, "h1")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestDeleteAndCorruptEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mr := setup(t, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.UpsertSession(ctx, auth.Session{UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.DeleteSession(ctx, "h1"))
	require.NoError(t, s.DeleteSession(ctx, "h1"))
	_, err := s.FindSession(ctx, "h1")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, mr.Set("session:bad", "{not json"))
	_, err = s.FindSession(ctx, "bad")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.False(t, mr.Exists("session:bad"))
}

func TestUnavailableRedisIsAnError(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mr := setup(t, func() time.Time { return now })
	mr.Close()

	_, err := s.FindSession(context.Background(), "h1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
	assert.Error(t, s.Ping(context.Background()))
}
