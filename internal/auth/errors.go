package auth

import "errors"

// Caller-facing failures. Route handlers map these onto transport responses.
var (
	ErrValidation             = errors.New("auth: validation failed")
	ErrDuplicateEmail         = errors.New("auth: email already registered")
	ErrInvalidCredentials     = errors.New("auth: invalid email or password")
	ErrOrganizationNotFound   = errors.New("auth: organization not found")
	ErrUserNotFound           = errors.New("auth: user not found")
	ErrCrossTenant            = errors.New("auth: cannot modify users from a different organization")
	ErrInsufficientPermission = errors.New("auth: insufficient permission")
	ErrSessionRevoked         = errors.New("auth: session expired or revoked")
	ErrPersistence            = errors.New("auth: persistence unavailable")
)

// Store-level sentinels returned by CredentialStore and SessionStore
// implementations.
var (
	ErrNotFound  = errors.New("auth: not found")
	ErrSlugTaken = errors.New("auth: organization slug taken")
)

// ErrInvalidToken indicates the token failed signature, structure or expiry checks.
var ErrInvalidToken = errors.New("auth: invalid token")
