// Package redisstore keeps sessions in Redis and lets key expiry do the
// sweeping.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
)

const keyPrefix = "session:"

// Config holds connection settings.
type Config struct {
	URL        string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
}

type record struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore implements auth.SessionStore on Redis.
type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ auth.SessionStore = (*SessionStore)(nil)

// Option configures SessionStore.
type Option func(*SessionStore)

// WithClock overrides the time source used to compute key TTLs.
func WithClock(fn func() time.Time) Option {
	return func(s *SessionStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Open parses cfg.URL, connects and pings.
func Open(ctx context.Context, cfg Config, opts ...Option) (*SessionStore, error) {
	ropts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		ropts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		ropts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		ropts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries > 0 {
		ropts.MaxRetries = cfg.MaxRetries
	}
	ropts.DialTimeout = 5 * time.Second
	ropts.ReadTimeout = 3 * time.Second
	ropts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(ropts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return New(client, opts...), nil
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *SessionStore {
	s := &SessionStore{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) Close() error { return s.client.Close() }

// Ping checks connectivity for the readiness probe.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func key(tokenHash string) string { return keyPrefix + tokenHash }

// UpsertSession stores the session with a TTL matching its expiry. An existing
// entry keeps its creation time.
func (s *SessionStore) UpsertSession(ctx context.Context, sess auth.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, key(sess.TokenHash)).Err()
	}
	rec := record{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt.UTC(), CreatedAt: sess.CreatedAt.UTC()}
	if existing, err := s.load(ctx, sess.TokenHash); err == nil {
		rec.UserID = existing.UserID
		rec.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, auth.ErrNotFound) {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, key(sess.TokenHash), data, ttl).Err()
}

func (s *SessionStore) load(ctx context.Context, tokenHash string) (record, error) {
	data, err := s.client.Get(ctx, key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return record{}, auth.ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("redis get failed: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.client.Del(ctx, key(tokenHash))
		return record{}, auth.ErrNotFound
	}
	return rec, nil
}

// FindSession returns auth.ErrNotFound for missing, corrupt or expired entries.
func (s *SessionStore) FindSession(ctx context.Context, tokenHash string) (auth.Session, error) {
	rec, err := s.load(ctx, tokenHash)
	if err != nil {
		return auth.Session{}, err
	}
	if !s.now().Before(rec.ExpiresAt) {
		return auth.Session{}, auth.ErrNotFound
	}
	return auth.Session{
		UserID:    rec.UserID,
		TokenHash: tokenHash,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, key(tokenHash)).Err()
}

// DeleteExpiredSessions is a no-op: Redis evicts keys when their TTL lapses.
func (s *SessionStore) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}
