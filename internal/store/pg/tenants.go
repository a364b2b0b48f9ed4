package pg

import (
	"context"
	"database/sql"
	"errors"

	"kanisa.org/internal/authz"
	"kanisa.org/internal/ids"
)

func (s *Store) CreateHeadquarters(ctx context.Context, hq authz.Headquarters) (authz.Headquarters, error) {
	if hq.ID == "" {
		hq.ID = ids.New()
	}
	var (
		out  authz.Headquarters
		code sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into headquarters (id, name, code, account_id, password_hash, region, country, status)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id, name, code, account_id, region, country, status, created_at
	`, hq.ID, hq.Name, nullFromPtr(hq.Code), hq.AccountID, hq.PasswordHash,
		nullIfEmpty(hq.Region), nullIfEmpty(hq.Country), hq.Status)
	var region, country sql.NullString
	if err := row.Scan(&out.ID, &out.Name, &code, &out.AccountID, &region, &country, &out.Status, &out.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return authz.Headquarters{}, authz.ErrConflict
		}
		return authz.Headquarters{}, err
	}
	out.Code = ptrFromNull(code)
	out.Region = region.String
	out.Country = country.String
	return out, nil
}

func (s *Store) GetHeadquarters(ctx context.Context, id string) (authz.Headquarters, error) {
	var (
		hq              authz.Headquarters
		code            sql.NullString
		region, country sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, code, account_id, password_hash, region, country, status, created_at
		from headquarters
		where id = $1
	`, id).Scan(&hq.ID, &hq.Name, &code, &hq.AccountID, &hq.PasswordHash, &region, &country, &hq.Status, &hq.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Headquarters{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.Headquarters{}, err
	}
	hq.Code = ptrFromNull(code)
	hq.Region = region.String
	hq.Country = country.String
	return hq, nil
}

func (s *Store) CreateOrganization(ctx context.Context, org authz.Organization) (authz.Organization, error) {
	if org.ID == "" {
		org.ID = ids.New()
	}
	var (
		out     authz.Organization
		orgType sql.NullString
		hqID    sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, denomination, address, region, district, status, account_id, password_hash, org_type_id, headquarters_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning id, name, denomination, address, region, district, status, account_id, org_type_id, headquarters_id, created_at, updated_at
	`, org.ID, org.Name, nullIfEmpty(org.Denomination), nullIfEmpty(org.Address),
		nullIfEmpty(org.Region), nullIfEmpty(org.District), org.Status, org.AccountID,
		org.PasswordHash, nullFromPtr(org.OrgTypeID), nullFromPtr(org.HeadquartersID))
	var denom, addr, region, district sql.NullString
	if err := row.Scan(&out.ID, &out.Name, &denom, &addr, &region, &district, &out.Status,
		&out.AccountID, &orgType, &hqID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return authz.Organization{}, authz.ErrConflict
			case pgErrForeignKeyViolation:
				return authz.Organization{}, authz.ErrNotFound
			}
		}
		return authz.Organization{}, err
	}
	out.Denomination = denom.String
	out.Address = addr.String
	out.Region = region.String
	out.District = district.String
	out.OrgTypeID = ptrFromNull(orgType)
	out.HeadquartersID = ptrFromNull(hqID)
	return out, nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (authz.Organization, error) {
	var (
		org                         authz.Organization
		denom, addr, region, dist   sql.NullString
		orgType, hqID               sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, denomination, address, region, district, status, account_id, org_type_id, headquarters_id, created_at, updated_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.Name, &denom, &addr, &region, &dist, &org.Status,
		&org.AccountID, &orgType, &hqID, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.Organization{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.Organization{}, err
	}
	org.Denomination = denom.String
	org.Address = addr.String
	org.Region = region.String
	org.District = dist.String
	org.OrgTypeID = ptrFromNull(orgType)
	org.HeadquartersID = ptrFromNull(hqID)
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context, headquartersID *string) ([]authz.Organization, error) {
	query := `
		select id, name, denomination, address, region, district, status, account_id, org_type_id, headquarters_id, created_at, updated_at
		from organizations
		order by name`
	args := []any{}
	if headquartersID != nil {
		query = `
		select id, name, denomination, address, region, district, status, account_id, org_type_id, headquarters_id, created_at, updated_at
		from organizations
		where headquarters_id = $1
		order by name`
		args = append(args, *headquartersID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []authz.Organization
	for rows.Next() {
		var (
			org                       authz.Organization
			denom, addr, region, dist sql.NullString
			orgType, hqID             sql.NullString
		)
		if err := rows.Scan(&org.ID, &org.Name, &denom, &addr, &region, &dist, &org.Status,
			&org.AccountID, &orgType, &hqID, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		org.Denomination = denom.String
		org.Address = addr.String
		org.Region = region.String
		org.District = dist.String
		org.OrgTypeID = ptrFromNull(orgType)
		org.HeadquartersID = ptrFromNull(hqID)
		result = append(result, org)
	}
	return result, rows.Err()
}

// DeleteOrganization removes the tenant root. Departments, users,
// tenant-scoped roles and every business record cascade at the schema level.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from organizations where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return authz.ErrNotFound
	}
	return nil
}

func (s *Store) CreateDepartment(ctx context.Context, dept authz.Department) (authz.Department, error) {
	if dept.ID == "" {
		dept.ID = ids.New()
	}
	var out authz.Department
	row := s.db.QueryRowContext(ctx, `
		insert into departments (id, organization_id, name)
		values ($1, $2, $3)
		returning id, organization_id, name, created_at
	`, dept.ID, dept.OrganizationID, dept.Name)
	if err := row.Scan(&out.ID, &out.OrganizationID, &out.Name, &out.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return authz.Department{}, authz.ErrConflict
			case pgErrForeignKeyViolation:
				return authz.Department{}, authz.ErrNotFound
			}
		}
		return authz.Department{}, err
	}
	return out, nil
}
