package authz

import "context"

// RoleStore persists roles and their permission bindings.
type RoleStore interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	ListRoles(ctx context.Context, organizationID *string) ([]Role, error)
	GrantPermission(ctx context.Context, roleID, permissionID string) error
	RevokePermission(ctx context.Context, roleID, permissionID string) error
	RolePermissions(ctx context.Context, roleID string) ([]Permission, error)
}

// PermissionStore persists the seeded permission catalogue.
type PermissionStore interface {
	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// TenantStore persists the ownership hierarchy.
type TenantStore interface {
	CreateHeadquarters(ctx context.Context, hq Headquarters) (Headquarters, error)
	GetHeadquarters(ctx context.Context, id string) (Headquarters, error)
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context, headquartersID *string) ([]Organization, error)
	DeleteOrganization(ctx context.Context, id string) error
	CreateDepartment(ctx context.Context, dept Department) (Department, error)
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}
