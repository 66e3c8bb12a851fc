package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of roles a user can hold inside an organization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ParseRole normalizes s and rejects anything outside the role enum.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// Plan is the billing tier of an organization.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// OrganizationSettings holds per-tenant quotas.
type OrganizationSettings struct {
	MaxAgents        int `json:"maxAgents"`
	MaxTools         int `json:"maxTools"`
	APICallsPerMonth int `json:"apiCallsPerMonth"`
}

// DefaultOrganizationSettings are the quotas of a newly registered free organization.
func DefaultOrganizationSettings() OrganizationSettings {
	return OrganizationSettings{MaxAgents: 5, MaxTools: 3, APICallsPerMonth: 1000}
}

// Organization is the tenant boundary.
type Organization struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Slug      string               `json:"slug"`
	Plan      Plan                 `json:"plan"`
	Settings  OrganizationSettings `json:"settings"`
	Active    bool                 `json:"active"`
	CreatedAt time.Time            `json:"created_at"`
}

// User is an identity bound to exactly one organization. The password hash is
// deliberately not part of it.
type User struct {
	ID             string       `json:"id"`
	Email          string       `json:"email"`
	DisplayName    string       `json:"display_name"`
	OrganizationID string       `json:"organization_id"`
	Role           Role         `json:"role"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"created_at"`
	LastLoginAt    *time.Time   `json:"last_login_at,omitempty"`
	Permissions    []Permission `json:"permissions"`
}

// NewUser carries the fields needed to insert a user row.
type NewUser struct {
	Email          string
	DisplayName    string
	PasswordHash   string
	OrganizationID string
	Role           Role
}

// NewOrganization carries the fields needed to insert an organization row.
type NewOrganization struct {
	Name     string
	Slug     string
	Plan     Plan
	Settings OrganizationSettings
}

// Session ties the hash of an issued token to a user and an expiry.
type Session struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User         User         `json:"user"`
	Organization Organization `json:"organization"`
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Page size bounds for organization user listings.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects one page of a listing. Zero fields take defaults.
type PageRequest struct {
	Page  int `json:"page" validate:"min=1"`
	Limit int `json:"limit" validate:"min=1,max=100"`
}

// Validate fills defaults and checks bounds.
func (p *PageRequest) Validate() error {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	return validateStruct(p)
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// UserPage is one page of an organization's active users.
type UserPage struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// RegisterRequest is the validated input of Register.
type RegisterRequest struct {
	Email            string `json:"email" validate:"required,email,max=254"`
	Password         string `json:"password" validate:"required,min=8,maxbytes=72"`
	DisplayName      string `json:"name" validate:"max=255"`
	OrganizationName string `json:"organization_name" validate:"required,max=255"`
}

// Validate normalizes the request in place and checks it.
func (r *RegisterRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.OrganizationName = strings.TrimSpace(r.OrganizationName)
	return validateStruct(r)
}

// LoginRequest is the validated input of Login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// Validate normalizes the request in place and checks it.
func (r *LoginRequest) Validate() error {
	r.Email = normalizeEmail(r.Email)
	return validateStruct(r)
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
