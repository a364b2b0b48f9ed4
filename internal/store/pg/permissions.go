package pg

import (
	"context"
	"database/sql"

	"kanisa.org/internal/authz"
	"kanisa.org/internal/ids"
)

// EnsurePermissions inserts seeded catalogue entries that do not exist yet.
// The catalogue is immutable in normal operation, so conflicts are skipped
// rather than updated.
func (s *Store) EnsurePermissions(ctx context.Context, perms []authz.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx, `
			insert into permissions (id, name, http_method, path_pattern, description, cross_tenant)
			values ($1, $2, $3, $4, $5, $6)
			on conflict (path_pattern, http_method) do nothing
		`, p.ID, p.Name, p.Method, p.PathPattern, nullIfEmpty(p.Description), p.CrossTenant)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]authz.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, http_method, path_pattern, description, cross_tenant, created_at
		from permissions
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []authz.Permission
	for rows.Next() {
		var (
			p    authz.Permission
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Method, &p.PathPattern, &desc, &p.CrossTenant, &p.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
