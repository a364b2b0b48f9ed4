package pg

import (
	"context"
	"database/sql"
	"errors"

	"kanisa.org/internal/authz"
	"kanisa.org/internal/ids"
)

func (s *Store) CreateRole(ctx context.Context, role authz.Role) (authz.Role, error) {
	if role.ID == "" {
		role.ID = ids.New()
	}
	var (
		out  authz.Role
		desc sql.NullString
		org  sql.NullString
		dept sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description, organization_id, department_id)
		values ($1, $2, $3, $4, $5)
		returning id, name, description, organization_id, department_id, created_at
	`, role.ID, role.Name, nullIfEmpty(role.Description), nullFromPtr(role.OrganizationID), nullFromPtr(role.DepartmentID))
	if err := row.Scan(&out.ID, &out.Name, &desc, &org, &dept, &out.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return authz.Role{}, authz.ErrConflict
			case pgErrForeignKeyViolation:
				return authz.Role{}, authz.ErrNotFound
			}
		}
		return authz.Role{}, err
	}
	if desc.Valid {
		out.Description = desc.String
	}
	out.OrganizationID = ptrFromNull(org)
	out.DepartmentID = ptrFromNull(dept)
	return out, nil
}

func (s *Store) GetRole(ctx context.Context, roleID string) (authz.Role, error) {
	var (
		role authz.Role
		desc sql.NullString
		org  sql.NullString
		dept sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, organization_id, department_id, created_at
		from roles
		where id = $1
	`, roleID).Scan(&role.ID, &role.Name, &desc, &org, &dept, &role.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Role{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.Role{}, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	role.OrganizationID = ptrFromNull(org)
	role.DepartmentID = ptrFromNull(dept)
	return role, nil
}

// ListRoles returns the tenant's private roles together with system-wide
// roles, which are visible to every tenant. A nil organizationID lists only
// the system-wide ones.
func (s *Store) ListRoles(ctx context.Context, organizationID *string) ([]authz.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, organization_id, department_id, created_at
		from roles
		where organization_id is null or organization_id = $1
		order by name
	`, nullFromPtr(organizationID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []authz.Role
	for rows.Next() {
		var (
			role authz.Role
			desc sql.NullString
			org  sql.NullString
			dept sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &desc, &org, &dept, &role.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			role.Description = desc.String
		}
		role.OrganizationID = ptrFromNull(org)
		role.DepartmentID = ptrFromNull(dept)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GrantPermission binds a permission to a role; granting twice is a no-op.
func (s *Store) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	res, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id)
		values ($1, $2)
		on conflict do nothing
	`, roleID, permissionID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return authz.ErrNotFound
		}
		return err
	}
	_, err = res.RowsAffected()
	return err
}

// RevokePermission removes a binding; revoking an absent binding is a no-op.
func (s *Store) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from role_permissions
		where role_id = $1 and permission_id = $2
	`, roleID, permissionID)
	return err
}

// RolePermissions computes the effective permission set through the join.
// It is intentionally never cached.
func (s *Store) RolePermissions(ctx context.Context, roleID string) ([]authz.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.http_method, p.path_pattern, p.description, p.cross_tenant, p.created_at
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name
	`, roleID)
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
