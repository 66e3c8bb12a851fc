package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Badshah-h/v0-production-grade-review/internal/auth"
	"github.com/Badshah-h/v0-production-grade-review/internal/ids"
)

const organizationColumns = `id, name, slug, plan, settings, active, created_at`

func scanOrganization(row rowScanner) (auth.Organization, error) {
	var (
		org      auth.Organization
		plan     string
		settings []byte
	)
	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &plan, &settings, &org.Active, &org.CreatedAt); err != nil {
		return auth.Organization{}, err
	}
	org.Plan = auth.Plan(plan)
	org.CreatedAt = org.CreatedAt.UTC()
	org.Settings = auth.DefaultOrganizationSettings()
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &org.Settings); err != nil {
			return auth.Organization{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	return org, nil
}

// CreateOrganization inserts the organization unless its slug is taken. The
// conflict is absorbed by the statement so an enclosing transaction stays usable
// for the next slug candidate.
func (s *Store) CreateOrganization(ctx context.Context, o auth.NewOrganization) (auth.Organization, error) {
	settings, err := json.Marshal(o.Settings)
	if err != nil {
		return auth.Organization{}, fmt.Errorf("marshal settings: %w", err)
	}
	plan := o.Plan
	if plan == "" {
		plan = auth.PlanFree
	}
	org, err := scanOrganization(s.q.QueryRowContext(ctx, `
		insert into organizations (id, name, slug, plan, settings)
		values ($1, $2, $3, $4, $5)
		on conflict (slug) do nothing
		returning `+organizationColumns,
		ids.New(), o.Name, o.Slug, string(plan), settings))
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return auth.Organization{}, auth.ErrSlugTaken
	}
	return org, err
}

func (s *Store) FindOrganizationByID(ctx context.Context, id string) (auth.Organization, error) {
	org, err := scanOrganization(s.q.QueryRowContext(ctx, `
		select `+organizationColumns+`
		from organizations
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Organization{}, auth.ErrNotFound
	}
	return org, err
}
