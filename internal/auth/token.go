package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTTL is the fixed lifetime of issued tokens and their sessions.
	TokenTTL = 7 * 24 * time.Hour

	defaultIssuer   = "agentdeck"
	minSecretLength = 32
)

// Claims is the signed assertion carried by a token.
type Claims struct {
	UserID         string `json:"uid"`
	OrganizationID string `json:"org"`
	Role           Role   `json:"role"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the iat claim, or the zero time when absent.
func (c Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns the exp claim, or the zero time when absent.
func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenCodec signs and verifies HS256 tokens with a process-wide secret.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithCodecIssuer overrides the iss claim.
func WithCodecIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithCodecClock overrides the time source.
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewTokenCodec validates the secret and returns a codec.
func NewTokenCodec(secret string, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: token secret must be at least %d bytes", minSecretLength)
	}
	c := &TokenCodec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for the given identity. The expiry is exactly TokenTTL
// after the issued-at instant, both truncated to whole seconds.
func (c *TokenCodec) Issue(userID, organizationID string, role Role) (string, Claims, error) {
	userID = strings.TrimSpace(userID)
	organizationID = strings.TrimSpace(organizationID)
	if userID == "" || organizationID == "" {
		return "", Claims{}, errors.New("auth: user and organization are required to issue a token")
	}
	now := c.now().UTC().Truncate(time.Second)
	claims := Claims{
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, structure and expiry. Every failure is reported as
// ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if err := c.validateClaims(claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (c *TokenCodec) validateClaims(claims Claims) error {
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.OrganizationID) == "" {
		return errors.New("identity claims missing")
	}
	if _, err := ParseRole(string(claims.Role)); err != nil {
		return err
	}
	if claims.IssuedAt == nil {
		return errors.New("issued-at missing")
	}
	// jwt treats exp == now as valid; sessions end at their expiry instant.
	if !c.now().Before(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	return nil
}
