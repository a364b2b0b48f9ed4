package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RoleService validates role and binding mutations before they reach the
// store. Effective permissions are always computed through the join, never
// cached, so a revoke is visible to the next authorization check.
type RoleService struct {
	store RoleStore
}

// NewRoleService constructs a RoleService.
func NewRoleService(store RoleStore) (*RoleService, error) {
	if store == nil {
		return nil, errors.New("role store is required")
	}
	return &RoleService{store: store}, nil
}

// CreateRole creates a role scoped to an organization, or a system-wide role
// when organizationID is nil. Uniqueness is (name, organization scope): the
// same name may exist once per organization and once globally.
func (s *RoleService) CreateRole(ctx context.Context, name string, organizationID, departmentID *string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if organizationID != nil {
		trimmed := strings.TrimSpace(*organizationID)
		if trimmed == "" {
			organizationID = nil
		} else {
			organizationID = &trimmed
		}
	}
	if departmentID != nil {
		trimmed := strings.TrimSpace(*departmentID)
		if trimmed == "" {
			departmentID = nil
		} else {
			departmentID = &trimmed
		}
	}
	if departmentID != nil && organizationID == nil {
		return Role{}, fmt.Errorf("%w: department-scoped roles require an organization", ErrInvalidInput)
	}
	role, err := s.store.CreateRole(ctx, Role{
		Name:           name,
		OrganizationID: organizationID,
		DepartmentID:   departmentID,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Role{}, fmt.Errorf("%w: %q already exists in this scope", ErrNameConflict, name)
		}
		return Role{}, err
	}
	return role, nil
}

// Grant binds a permission to a role. Granting twice is a no-op.
func (s *RoleService) Grant(ctx context.Context, roleID, permissionID string) error {
	roleID, permissionID, err := bindingArgs(roleID, permissionID)
	if err != nil {
		return err
	}
	return s.store.GrantPermission(ctx, roleID, permissionID)
}

// Revoke removes a binding. Revoking an absent binding is a no-op.
func (s *RoleService) Revoke(ctx context.Context, roleID, permissionID string) error {
	roleID, permissionID, err := bindingArgs(roleID, permissionID)
	if err != nil {
		return err
	}
	return s.store.RevokePermission(ctx, roleID, permissionID)
}

// GetRole fetches a role by id.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, roleID)
}

// ReplacePermissions makes the role's bindings exactly the given set. Grants
// and revokes are computed as a diff, so replaying the same set is a no-op.
func (s *RoleService) ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	current, err := s.store.RolePermissions(ctx, roleID)
	if err != nil {
		return err
	}
	desired := make(map[string]bool, len(permissionIDs))
	for _, id := range permissionIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("%w: empty permission_id", ErrInvalidInput)
		}
		desired[id] = true
	}
	for _, perm := range current {
		if !desired[perm.ID] {
			if err := s.store.RevokePermission(ctx, roleID, perm.ID); err != nil {
				return err
			}
		}
		delete(desired, perm.ID)
	}
	for id := range desired {
		if err := s.store.GrantPermission(ctx, roleID, id); err != nil {
			return err
		}
	}
	return nil
}

// EffectivePermissions returns the permission set reachable from the role
// through direct bindings. There is no inheritance between roles.
func (s *RoleService) EffectivePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.RolePermissions(ctx, roleID)
}

func bindingArgs(roleID, permissionID string) (string, string, error) {
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return "", "", fmt.Errorf("%w: role_id and permission_id are required", ErrInvalidInput)
	}
	return roleID, permissionID, nil
}
