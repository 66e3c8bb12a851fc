package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Badshah-h/v0-production-grade-review/internal/obs"
)

const defaultStoreTimeout = 5 * time.Second

// Service orchestrates registration, login, session validation and
// organization-scoped user management.
type Service struct {
	store        Store
	codec        *TokenCodec
	hasher       PasswordHasher
	now          func() time.Time
	storeTimeout time.Duration
	log          logrus.FieldLogger

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithHasher overrides the password hasher.
func WithHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) error {
		if h == nil {
			return errors.New("auth: hasher is nil")
		}
		s.hasher = h
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithStoreTimeout bounds every persistence call.
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.storeTimeout = d
		}
		return nil
	}
}

// WithLogger overrides the logger.
func WithLogger(l logrus.FieldLogger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// NewService constructs Service. It fails when the permission table does not
// cover every role.
func NewService(store Store, codec *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	if err := ValidatePermissionTable(); err != nil {
		return nil, err
	}
	svc := &Service{
		store:        store,
		codec:        codec,
		hasher:       NewBcryptHasher(DefaultBcryptCost),
		now:          time.Now,
		storeTimeout: defaultStoreTimeout,
		log:          obs.Logger().WithField("component", "auth"),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Register creates an organization together with its first user, who is
// always an admin, and opens a session for that user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (res AuthResult, err error) {
	defer func() { s.record("register", err) }()

	if err := req.Validate(); err != nil {
		return AuthResult{}, err
	}
	err = s.call(ctx, func(ctx context.Context) error {
		_, err := s.store.FindUserByEmail(ctx, req.Email)
		return err
	})
	switch {
	case err == nil:
		return AuthResult{}, ErrDuplicateEmail
	case !errors.Is(err, ErrNotFound):
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx Store) error {
			org, err := s.createOrganization(ctx, tx, req.OrganizationName)
			if err != nil {
				return err
			}
			user, err := tx.CreateUser(ctx, NewUser{
				Email:          req.Email,
				DisplayName:    req.DisplayName,
				PasswordHash:   hash,
				OrganizationID: org.ID,
				Role:           RoleAdmin,
			})
			if err != nil {
				return err
			}
			res = AuthResult{User: withPermissions(user), Organization: org}
			return nil
		})
	})
	if err != nil {
		return AuthResult{}, err
	}
	// Sessions may live outside the credential database, so the session is
	// only written once the organization and user are committed.
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		res.Token, res.ExpiresAt, err = s.openSession(ctx, s.store, res.User)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", res.User.ID).Warn("registered but session not opened")
		return AuthResult{}, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id":         res.User.ID,
		"organization_id": res.Organization.ID,
	}).Info("organization registered")
	return res, nil
}

func (s *Service) createOrganization(ctx context.Context, tx Store, name string) (Organization, error) {
	for _, slug := range slugCandidates(name) {
		org, err := tx.CreateOrganization(ctx, NewOrganization{
			Name:     name,
			Slug:     slug,
			Plan:     PlanFree,
			Settings: DefaultOrganizationSettings(),
		})
		if errors.Is(err, ErrSlugTaken) {
			continue
		}
		return org, err
	}
	return Organization{}, fmt.Errorf("%w: no free slug for organization", ErrSlugTaken)
}

// Login verifies credentials and opens a new session. Unknown emails and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (res AuthResult, err error) {
	defer func() { s.record("login", err) }()

	if err := req.Validate(); err != nil {
		return AuthResult{}, err
	}

	var (
		user User
		hash string
	)
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.FindUserByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		hash, err = s.store.PasswordHash(ctx, req.Email)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		s.compareDummy(req.Password)
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.hasher.Compare(hash, req.Password); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	var org Organization
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		org, err = s.store.FindOrganizationByID(ctx, user.OrganizationID)
		return err
	})
	if errors.Is(err, ErrNotFound) || (err == nil && !org.Active) {
		return AuthResult{}, ErrOrganizationNotFound
	}
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	if err := s.call(ctx, func(ctx context.Context) error {
		return s.store.TouchLastLogin(ctx, user.ID, now)
	}); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("record last login failed")
	} else {
		user.LastLoginAt = &now
	}

	var (
		token     string
		expiresAt time.Time
	)
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		token, expiresAt, err = s.openSession(ctx, s.store, user)
		return err
	})
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: withPermissions(user), Organization: org, Token: token, ExpiresAt: expiresAt}, nil
}

// compareDummy spends the same hashing work on unknown emails as on known
// ones so response time does not reveal which emails are registered.
func (s *Service) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("not-a-real-password")
		if err != nil {
			s.log.WithError(err).Warn("dummy password hash failed")
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_ = s.hasher.Compare(s.dummyHash, password)
	}
}

func (s *Service) openSession(ctx context.Context, store SessionStore, user User) (string, time.Time, error) {
	token, claims, err := s.codec.Issue(user.ID, user.OrganizationID, user.Role)
	if err != nil {
		return "", time.Time{}, err
	}
	err = store.UpsertSession(ctx, Session{
		UserID:    user.ID,
		TokenHash: HashToken(token),
		ExpiresAt: claims.ExpiresAtTime(),
		CreatedAt: claims.IssuedAtTime(),
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAtTime(), nil
}

// Authenticate resolves a token to its active user with permissions derived
// from the user's current role. It fails with ErrInvalidToken,
// ErrSessionRevoked, ErrUserNotFound or ErrPersistence.
func (s *Service) Authenticate(ctx context.Context, token string) (User, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return User{}, ErrInvalidToken
	}

	var sess Session
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.store.FindSession(ctx, HashToken(token))
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrSessionRevoked
	}
	if err != nil {
		return User{}, err
	}
	if !s.now().Before(sess.ExpiresAt) || sess.UserID != claims.UserID {
		return User{}, ErrSessionRevoked
	}

	var user User
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.store.FindUserByID(ctx, claims.UserID)
		return err
	})
	if errors.Is(err, ErrNotFound) || (err == nil && !user.Active) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	if user.OrganizationID != claims.OrganizationID {
		return User{}, ErrSessionRevoked
	}
	// The role comes from the fresh row, never from the token.
	return withPermissions(user), nil
}

// GetCurrentUser is the authentication gate: any failure yields nil.
func (s *Service) GetCurrentUser(ctx context.Context, token string) *User {
	user, err := s.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			s.log.WithError(err).Warn("session lookup failed")
		}
		return nil
	}
	return &user
}

// Logout deletes the session of token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	defer func() { s.record("logout", err) }()

	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	return s.call(ctx, func(ctx context.Context) error {
		return s.store.DeleteSession(ctx, HashToken(token))
	})
}

// HasPermission reports whether user holds perm.
func (s *Service) HasPermission(user *User, perm Permission) bool {
	return HasPermission(user, perm)
}

// GetOrganizationUsers returns one page of active users of organizationID,
// newest first.
func (s *Service) GetOrganizationUsers(ctx context.Context, organizationID string, page PageRequest) (UserPage, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return UserPage{}, fmt.Errorf("%w: organization id is required", ErrValidation)
	}
	if err := page.Validate(); err != nil {
		return UserPage{}, err
	}
	var (
		users []User
		total int
	)
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		users, total, err = s.store.ListUsersByOrganization(ctx, organizationID, page.Limit, page.Offset())
		return err
	})
	if err != nil {
		return UserPage{}, err
	}
	out := make([]User, 0, len(users))
	for _, u := range users {
		if u.OrganizationID != organizationID {
			s.log.WithFields(logrus.Fields{
				"organization_id": organizationID,
				"user_id":         u.ID,
			}).Error("store returned a user from another organization")
			continue
		}
		out = append(out, withPermissions(u))
	}
	return UserPage{Users: out, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

// CurrentOrganization loads the organization of an authenticated user.
func (s *Service) CurrentOrganization(ctx context.Context, user User) (Organization, error) {
	var org Organization
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		org, err = s.store.FindOrganizationByID(ctx, user.OrganizationID)
		return err
	})
	if errors.Is(err, ErrNotFound) || (err == nil && !org.Active) {
		return Organization{}, ErrOrganizationNotFound
	}
	return org, err
}

// UpdateUserRole changes the role of targetID on behalf of actingID. Both must
// be active members of the same organization and the acting user must hold
// manage_users.
func (s *Service) UpdateUserRole(ctx context.Context, targetID string, role Role, actingID string) (u User, err error) {
	defer func() { s.record("update_role", err) }()

	role, err = ParseRole(string(role))
	if err != nil {
		return User{}, err
	}
	_, target, err := s.authorizeUserManagement(ctx, targetID, actingID)
	if err != nil {
		return User{}, err
	}

	var updated User
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateUserRole(ctx, target.OrganizationID, target.ID, role)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{
		"organization_id": target.OrganizationID,
		"user_id":         target.ID,
		"acting_user_id":  actingID,
		"role":            role,
	}).Info("user role updated")
	return withPermissions(updated), nil
}

// DeactivateUser soft-deletes targetID on behalf of actingID with the same
// checks as UpdateUserRole. Users cannot deactivate themselves.
func (s *Service) DeactivateUser(ctx context.Context, targetID, actingID string) (err error) {
	defer func() { s.record("deactivate", err) }()

	if strings.TrimSpace(targetID) == strings.TrimSpace(actingID) {
		return fmt.Errorf("%w: users cannot deactivate themselves", ErrValidation)
	}
	_, target, err := s.authorizeUserManagement(ctx, targetID, actingID)
	if err != nil {
		return err
	}
	err = s.call(ctx, func(ctx context.Context) error {
		return s.store.DeactivateUser(ctx, target.OrganizationID, target.ID)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// authorizeUserManagement loads both users and enforces tenant isolation
// before the permission check.
func (s *Service) authorizeUserManagement(ctx context.Context, targetID, actingID string) (acting, target User, err error) {
	targetID = strings.TrimSpace(targetID)
	actingID = strings.TrimSpace(actingID)
	if targetID == "" || actingID == "" {
		return User{}, User{}, fmt.Errorf("%w: target and acting user ids are required", ErrValidation)
	}
	err = s.call(ctx, func(ctx context.Context) error {
		var err error
		if acting, err = s.store.FindUserByID(ctx, actingID); err != nil {
			return err
		}
		target, err = s.store.FindUserByID(ctx, targetID)
		return err
	})
	if errors.Is(err, ErrNotFound) || (err == nil && (!acting.Active || !target.Active)) {
		return User{}, User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, User{}, err
	}
	if target.OrganizationID != acting.OrganizationID {
		return User{}, User{}, ErrCrossTenant
	}
	acting = withPermissions(acting)
	if !HasPermission(&acting, PermManageUsers) {
		return User{}, User{}, ErrInsufficientPermission
	}
	return acting, target, nil
}

// CleanupExpiredSessions deletes sessions whose expiry is in the past.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	var n int64
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.store.DeleteExpiredSessions(ctx, s.now().UTC())
		return err
	})
	if err != nil {
		return 0, err
	}
	obs.RecordSweep(n)
	return n, nil
}

// HashToken returns the hex sha256 digest under which sessions are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// call bounds fn with the store timeout and maps unexpected store failures
// onto ErrPersistence.
func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return persistenceError(fn(ctx))
}

var passthroughErrors = []error{
	ErrNotFound,
	ErrSlugTaken,
	ErrDuplicateEmail,
	ErrValidation,
	ErrPersistence,
}

func persistenceError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range passthroughErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (s *Service) record(operation string, err error) {
	obs.RecordAuth(operation, Outcome(err))
}

// Outcome maps an error onto a short label for metrics and audit records.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrOrganizationNotFound):
		return "organization_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrCrossTenant):
		return "cross_tenant"
	case errors.Is(err, ErrInsufficientPermission):
		return "insufficient_permission"
	case errors.Is(err, ErrSessionRevoked), errors.Is(err, ErrInvalidToken):
		return "unauthenticated"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}
