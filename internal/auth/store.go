package auth

import (
	"context"
	"time"
)

// CredentialStore persists users, their password hashes and organizations.
// Organization-scoped operations take the organization id explicitly; there
// is no unscoped user listing.
type CredentialStore interface {
	// FindUserByEmail returns the active user with this email (case-insensitive) or ErrNotFound.
	FindUserByEmail(ctx context.Context, email string) (User, error)
	// FindUserByID returns the user regardless of its active flag, or ErrNotFound.
	FindUserByID(ctx context.Context, id string) (User, error)
	// CreateUser returns ErrDuplicateEmail when an active user already holds the email.
	CreateUser(ctx context.Context, u NewUser) (User, error)
	// UpdateUserRole returns ErrNotFound unless an active user with id exists in organizationID.
	UpdateUserRole(ctx context.Context, organizationID, id string, role Role) (User, error)
	// DeactivateUser returns ErrNotFound unless an active user with id exists in organizationID.
	DeactivateUser(ctx context.Context, organizationID, id string) error
	// ListUsersByOrganization returns up to limit active users of the organization,
	// newest first, skipping offset, together with the total active count.
	ListUsersByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]User, int, error)
	// PasswordHash returns the stored hash of the active user with this email, or ErrNotFound.
	PasswordHash(ctx context.Context, email string) (string, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// CreateOrganization returns ErrSlugTaken when the slug is already used.
	CreateOrganization(ctx context.Context, o NewOrganization) (Organization, error)
	FindOrganizationByID(ctx context.Context, id string) (Organization, error)
}

// SessionStore persists token hashes with their expiry.
type SessionStore interface {
	// UpsertSession inserts the session or refreshes the expiry of an existing token hash.
	UpsertSession(ctx context.Context, s Session) error
	// FindSession returns the session for tokenHash or ErrNotFound.
	FindSession(ctx context.Context, tokenHash string) (Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	// DeleteExpiredSessions removes sessions with expires_at < now and reports how many.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full persistence handle used by the Service.
type Store interface {
	CredentialStore
	SessionStore
	// WithinTx runs fn against a store whose writes commit together, or not at all
	// when fn returns an error.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// splitStore lets credentials and sessions live in different backends, e.g.
// PostgreSQL users with Redis sessions.
type splitStore struct {
	Store
	sessions SessionStore
}

// WithSessionStore returns a Store that delegates session operations to sessions
// and everything else to base.
func WithSessionStore(base Store, sessions SessionStore) Store {
	if sessions == nil {
		return base
	}
	return &splitStore{Store: base, sessions: sessions}
}

func (s *splitStore) UpsertSession(ctx context.Context, sess Session) error {
	return s.sessions.UpsertSession(ctx, sess)
}

func (s *splitStore) FindSession(ctx context.Context, tokenHash string) (Session, error) {
	return s.sessions.FindSession(ctx, tokenHash)
}

func (s *splitStore) DeleteSession(ctx context.Context, tokenHash string) error {
	return s.sessions.DeleteSession(ctx, tokenHash)
}

func (s *splitStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, now)
}

func (s *splitStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return s.Store.WithinTx(ctx, func(tx Store) error {
		return fn(&splitStore{Store: tx, sessions: s.sessions})
	})
}
