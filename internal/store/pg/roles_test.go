package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"kanisa.org/internal/authz"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestCreateRoleUniqueViolationMapsToConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into roles").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	org := "org-1"
	_, err := store.CreateRole(context.Background(), authz.Role{Name: "Treasurer", OrganizationID: &org})
	if !errors.Is(err, authz.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateRoleReturnsStoredRow(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "organization_id", "department_id", "created_at"}).
		AddRow("role-1", "Treasurer", nil, "org-1", nil, created)
	mock.ExpectQuery("insert into roles").
		WillReturnRows(rows)

	org := "org-1"
	role, err := store.CreateRole(context.Background(), authz.Role{Name: "Treasurer", OrganizationID: &org})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if role.ID != "role-1" || role.OrganizationID == nil || *role.OrganizationID != "org-1" {
		t.Fatalf("unexpected role: %+v", role)
	}
	if role.DepartmentID != nil {
		t.Fatalf("department should be nil: %+v", role)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetRoleNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, name, description, organization_id, department_id, created_at").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "organization_id", "department_id", "created_at"}))

	_, err := store.GetRole(context.Background(), "missing")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGrantPermissionForeignKeyMapsToNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into role_permissions").
		WithArgs("role-1", "perm-x").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := store.GrantPermission(context.Background(), "role-1", "perm-x")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGrantPermissionIdempotent(t *testing.T) {
	store, mock := newMockStore(t)

	// The second insert hits the conflict clause and affects zero rows.
	mock.ExpectExec("insert into role_permissions").
		WithArgs("role-1", "perm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into role_permissions").
		WithArgs("role-1", "perm-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	for i := 0; i < 2; i++ {
		if err := store.GrantPermission(context.Background(), "role-1", "perm-1"); err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRevokePermissionAbsentBindingIsNoOp(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from role_permissions").
		WithArgs("role-1", "perm-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RevokePermission(context.Background(), "role-1", "perm-1"); err != nil {
		t.Fatalf("revoke absent binding: %v", err)
	}
}

func TestRolePermissionsJoin(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "name", "http_method", "path_pattern", "description", "cross_tenant", "created_at"}).
		AddRow("p1", "member.list", "GET", "/v1/members", "List members", false, created).
		AddRow("p2", "audit.export", "GET", "/v1/audit", nil, true, created)
	mock.ExpectQuery("select p.id, p.name, p.http_method, p.path_pattern").
		WithArgs("role-1").
		WillReturnRows(rows)

	perms, err := store.RolePermissions(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("role permissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("want 2 permissions, got %d", len(perms))
	}
	if !perms[1].CrossTenant {
		t.Fatalf("cross_tenant flag lost: %+v", perms[1])
	}
}
