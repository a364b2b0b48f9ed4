package pg

import (
	"context"
	"database/sql"
	"errors"

	"kanisa.org/internal/authz"
	"kanisa.org/internal/ids"
)

const userColumns = `id, organization_id, headquarters_id, role_id, email, password_hash, status, photo_url, created_at, updated_at`

// CreateUser persists a user. Status is passed through verbatim: the schema
// has no default, so a missing status fails at the database rather than
// silently creating an active account.
func (s *Store) CreateUser(ctx context.Context, user authz.User) (authz.User, error) {
	if user.ID == "" {
		user.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, organization_id, headquarters_id, role_id, email, password_hash, status, photo_url)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning `+userColumns+`
	`, user.ID, nullFromPtr(user.OrganizationID), nullFromPtr(user.HeadquartersID),
		nullFromPtr(user.RoleID), user.Email, user.PasswordHash, user.Status, nullIfEmpty(user.PhotoURL))
	out, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return authz.User{}, authz.ErrConflict
			case pgErrForeignKeyViolation:
				return authz.User{}, authz.ErrNotFound
			}
		}
		return authz.User{}, err
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (authz.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.User{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.User{}, err
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (authz.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1
	`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.User{}, authz.ErrNotFound
	}
	if err != nil {
		return authz.User{}, err
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (authz.User, error) {
	var (
		user             authz.User
		org, hq, role    sql.NullString
		photo            sql.NullString
	)
	if err := row.Scan(&user.ID, &org, &hq, &role, &user.Email, &user.PasswordHash,
		&user.Status, &photo, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return authz.User{}, err
	}
	user.OrganizationID = ptrFromNull(org)
	user.HeadquartersID = ptrFromNull(hq)
	user.RoleID = ptrFromNull(role)
	user.PhotoURL = photo.String
	return user, nil
}
