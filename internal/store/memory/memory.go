// Package memory keeps users, organizations and sessions in process memory.
// It backs STORE_DRIVER=memory and the service and HTTP tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
	"github.com/Badshah-h/v0-production-grade-review/internal/ids"
)

type userRecord struct {
	user auth.User
	hash string
}

type state struct {
	orgs     map[string]auth.Organization
	users    map[string]userRecord
	sessions map[string]auth.Session
}

func newState() *state {
	return &state{
		orgs:     make(map[string]auth.Organization),
		users:    make(map[string]userRecord),
		sessions: make(map[string]auth.Session),
	}
}

func (s *state) clone() *state {
	return &state{
		orgs:     maps.Clone(s.orgs),
		users:    maps.Clone(s.users),
		sessions: maps.Clone(s.sessions),
	}
}

// Store is a thread-safe auth.Store. Transactions are serialized with every
// other call.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// Option configures Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at columns.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ auth.Store = (*Store)(nil)

func (s *Store) view() *view { return &view{st: s.st, now: s.now} }

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindUserByEmail(ctx, email)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindUserByID(ctx, id)
}

func (s *Store) CreateUser(ctx context.Context, u auth.NewUser) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateUser(ctx, u)
}

func (s *Store) UpdateUserRole(ctx context.Context, organizationID, id string, role auth.Role) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateUserRole(ctx, organizationID, id, role)
}

func (s *Store) DeactivateUser(ctx context.Context, organizationID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeactivateUser(ctx, organizationID, id)
}

func (s *Store) ListUsersByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]auth.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListUsersByOrganization(ctx, organizationID, limit, offset)
}

func (s *Store) PasswordHash(ctx context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().PasswordHash(ctx, email)
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().TouchLastLogin(ctx, id, at)
}

func (s *Store) CreateOrganization(ctx context.Context, o auth.NewOrganization) (auth.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateOrganization(ctx, o)
}

func (s *Store) FindOrganizationByID(ctx context.Context, id string) (auth.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindOrganizationByID(ctx, id)
}

func (s *Store) UpsertSession(ctx context.Context, sess auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpsertSession(ctx, sess)
}

func (s *Store) FindSession(ctx context.Context, tokenHash string) (auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindSession(ctx, tokenHash)
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeleteSession(ctx, tokenHash)
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeleteExpiredSessions(ctx, now)
}

// WithinTx runs fn against a snapshot and publishes it only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(auth.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &view{st: s.st.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// Sessions reports the number of stored sessions.
func (s *Store) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.sessions)
}

// Ping always succeeds; it satisfies the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// view operates on state without locking. The caller holds Store.mu.
type view struct {
	st  *state
	now func() time.Time
}

func (v *view) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}
	rec, ok := v.activeByEmail(email)
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return rec.user, nil
}

func (v *view) activeByEmail(email string) (userRecord, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, rec := range v.st.users {
		if rec.user.Active && strings.EqualFold(rec.user.Email, email) {
			return rec, true
		}
	}
	return userRecord{}, false
}

func (v *view) FindUserByID(ctx context.Context, id string) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}
	rec, ok := v.st.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return rec.user, nil
}

func (v *view) CreateUser(ctx context.Context, u auth.NewUser) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}
	if _, taken := v.activeByEmail(u.Email); taken {
		return auth.User{}, auth.ErrDuplicateEmail
	}
	if _, ok := v.st.orgs[u.OrganizationID]; !ok {
		return auth.User{}, auth.ErrOrganizationNotFound
	}
	user := auth.User{
		ID:             ids.New(),
		Email:          strings.ToLower(strings.TrimSpace(u.Email)),
		DisplayName:    u.DisplayName,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
		Active:         true,
		CreatedAt:      v.now().UTC(),
	}
	v.st.users[user.ID] = userRecord{user: user, hash: u.PasswordHash}
	return user, nil
}

func (v *view) scopedActive(organizationID, id string) (userRecord, bool) {
	rec, ok := v.st.users[id]
	if !ok || !rec.user.Active || rec.user.OrganizationID != organizationID {
		return userRecord{}, false
	}
	return rec, true
}

func (v *view) UpdateUserRole(ctx context.Context, organizationID, id string, role auth.Role) (auth.User, error) {
	if err := ctx.Err(); err != nil {
		return auth.User{}, err
	}
	rec, ok := v.scopedActive(organizationID, id)
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	rec.user.Role = role
	v.st.users[id] = rec
	return rec.user, nil
}

func (v *view) DeactivateUser(ctx context.Context, organizationID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := v.scopedActive(organizationID, id)
	if !ok {
		return auth.ErrNotFound
	}
	rec.user.Active = false
	v.st.users[id] = rec
	return nil
}

func (v *view) ListUsersByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]auth.User, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	var out []auth.User
	for _, rec := range v.st.users {
		if rec.user.Active && rec.user.OrganizationID == organizationID {
			out = append(out, rec.user)
		}
	}
	slices.SortFunc(out, func(a, b auth.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return out[offset:end], total, nil
}

func (v *view) PasswordHash(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, ok := v.activeByEmail(email)
	if !ok {
		return "", auth.ErrNotFound
	}
	return rec.hash, nil
}

func (v *view) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := v.st.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	at = at.UTC()
	rec.user.LastLoginAt = &at
	v.st.users[id] = rec
	return nil
}

func (v *view) CreateOrganization(ctx context.Context, o auth.NewOrganization) (auth.Organization, error) {
	if err := ctx.Err(); err != nil {
		return auth.Organization{}, err
	}
	for _, existing := range v.st.orgs {
		if existing.Slug == o.Slug {
			return auth.Organization{}, auth.ErrSlugTaken
		}
	}
	org := auth.Organization{
		ID:        ids.New(),
		Name:      o.Name,
		Slug:      o.Slug,
		Plan:      o.Plan,
		Settings:  o.Settings,
		Active:    true,
		CreatedAt: v.now().UTC(),
	}
	v.st.orgs[org.ID] = org
	return org, nil
}

func (v *view) FindOrganizationByID(ctx context.Context, id string) (auth.Organization, error) {
	if err := ctx.Err(); err != nil {
		return auth.Organization{}, err
	}
	org, ok := v.st.orgs[id]
	if !ok {
		return auth.Organization{}, auth.ErrNotFound
	}
	return org, nil
}

func (v *view) UpsertSession(ctx context.Context, sess auth.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if existing, ok := v.st.sessions[sess.TokenHash]; ok {
		existing.ExpiresAt = sess.ExpiresAt
		v.st.sessions[sess.TokenHash] = existing
		return nil
	}
	v.st.sessions[sess.TokenHash] = sess
	return nil
}

func (v *view) FindSession(ctx context.Context, tokenHash string) (auth.Session, error) {
	if err := ctx.Err(); err != nil {
		return auth.Session{}, err
	}
	sess, ok := v.st.sessions[tokenHash]
	if !ok {
		return auth.Session{}, auth.ErrNotFound
	}
	return sess, nil
}

func (v *view) DeleteSession(ctx context.Context, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(v.st.sessions, tokenHash)
	return nil
}

func (v *view) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for hash, sess := range v.st.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(v.st.sessions, hash)
			n++
		}
	}
	return n, nil
}

// WithinTx on a view joins the enclosing transaction.
func (v *view) WithinTx(_ context.Context, fn func(auth.Store) error) error {
	return fn(v)
}
