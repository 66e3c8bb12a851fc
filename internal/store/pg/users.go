package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
	"github.com/Badshah-h/v0-production-grade-review/internal/ids"
)

const userColumns = `id, email, display_name, organization_id, role, active, created_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u         auth.User
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.OrganizationID, &role, &u.Active, &u.CreatedAt, &lastLogin); err != nil {
		return auth.User{}, err
	}
	u.Role = auth.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLoginAt = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where lower(email) = lower($1) and active
	`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) FindUserByID(ctx context.Context, id string) (auth.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, nu auth.NewUser) (auth.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		insert into users (id, email, display_name, password_hash, organization_id, role)
		values ($1, lower($2), $3, $4, $5, $6)
		returning `+userColumns,
		ids.New(), strings.TrimSpace(nu.Email), nu.DisplayName, nu.PasswordHash, nu.OrganizationID, string(nu.Role)))
	switch {
	case isUniqueViolation(err):
		return auth.User{}, auth.ErrDuplicateEmail
	case isForeignKeyViolation(err):
		return auth.User{}, auth.ErrOrganizationNotFound
	}
	return u, err
}

func (s *Store) UpdateUserRole(ctx context.Context, organizationID, id string, role auth.Role) (auth.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		update users
		set role = $3, updated_at = now()
		where organization_id = $1 and id = $2 and active
		returning `+userColumns,
		organizationID, id, string(role)))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) DeactivateUser(ctx context.Context, organizationID, id string) error {
	res, err := s.q.ExecContext(ctx, `
		update users
		set active = false, updated_at = now()
		where organization_id = $1 and id = $2 and active
	`, organizationID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsersByOrganization(ctx context.Context, organizationID string, limit, offset int) ([]auth.User, int, error) {
	var total int
	err := s.q.QueryRowContext(ctx, `
		select count(*)
		from users
		where organization_id = $1 and active
	`, organizationID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	if offset >= total {
		return nil, total, nil
	}

	rows, err := s.q.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where organization_id = $1 and active
		order by created_at desc, id desc
		limit $2 offset $3
	`, organizationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *Store) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := s.q.QueryRowContext(ctx, `
		select password_hash
		from users
		where lower(email) = lower($1) and active
	`, strings.TrimSpace(email)).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	return hash, err
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `update users set last_login_at = $2 where id = $1`, id, at.UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
