package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
)

func (s *Store) UpsertSession(ctx context.Context, sess auth.Session) error {
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.q.ExecContext(ctx, `
		insert into sessions (token_hash, user_id, expires_at, created_at)
		values ($1, $2, $3, $4)
		on conflict (token_hash) do update
		set expires_at = excluded.expires_at
	`, sess.TokenHash, sess.UserID, sess.ExpiresAt.UTC(), created.UTC())
	return err
}

func (s *Store) FindSession(ctx context.Context, tokenHash string) (auth.Session, error) {
	var sess auth.Session
	err := s.q.QueryRowContext(ctx, `
		select token_hash, user_id, expires_at, created_at
		from sessions
		where token_hash = $1
	`, tokenHash).Scan(&sess.TokenHash, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Session{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Session{}, err
	}
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	sess.CreatedAt = sess.CreatedAt.UTC()
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.q.ExecContext(ctx, `delete from sessions where token_hash = $1`, tokenHash)
	return err
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `delete from sessions where expires_at < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
