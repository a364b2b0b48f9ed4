package authz

import (
	"context"
	"errors"
	"testing"
)

type fakeRoleStore struct {
	roles    map[string]Role
	bindings map[string]map[string]bool
	catalog  map[string]Permission
	grants   []string
	revokes  []string
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{
		roles:    make(map[string]Role),
		bindings: make(map[string]map[string]bool),
		catalog:  make(map[string]Permission),
	}
}

func (s *fakeRoleStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	for _, existing := range s.roles {
		if existing.Name != role.Name {
			continue
		}
		sameScope := (existing.OrganizationID == nil && role.OrganizationID == nil) ||
			(existing.OrganizationID != nil && role.OrganizationID != nil && *existing.OrganizationID == *role.OrganizationID)
		if sameScope {
			return Role{}, ErrConflict
		}
	}
	role.ID = "role-" + role.Name
	if role.OrganizationID != nil {
		role.ID += "-" + *role.OrganizationID
	}
	s.roles[role.ID] = role
	return role, nil
}

func (s *fakeRoleStore) GetRole(ctx context.Context, roleID string) (Role, error) {
	role, ok := s.roles[roleID]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (s *fakeRoleStore) ListRoles(ctx context.Context, organizationID *string) ([]Role, error) {
	var out []Role
	for _, role := range s.roles {
		out = append(out, role)
	}
	return out, nil
}

func (s *fakeRoleStore) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	if s.bindings[roleID] == nil {
		s.bindings[roleID] = make(map[string]bool)
	}
	s.bindings[roleID][permissionID] = true
	s.grants = append(s.grants, permissionID)
	return nil
}

func (s *fakeRoleStore) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	delete(s.bindings[roleID], permissionID)
	s.revokes = append(s.revokes, permissionID)
	return nil
}

func (s *fakeRoleStore) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	var out []Permission
	for id := range s.bindings[roleID] {
		if perm, ok := s.catalog[id]; ok {
			out = append(out, perm)
		} else {
			out = append(out, Permission{ID: id})
		}
	}
	return out, nil
}

func TestCreateRoleScopedUniqueness(t *testing.T) {
	store := newFakeRoleStore()
	svc, err := NewRoleService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	orgA, orgB := "org-a", "org-b"

	if _, err := svc.CreateRole(ctx, "Treasurer", &orgA, nil); err != nil {
		t.Fatalf("create in org-a: %v", err)
	}
	// Same name in a different organization is a different role.
	if _, err := svc.CreateRole(ctx, "Treasurer", &orgB, nil); err != nil {
		t.Fatalf("create in org-b: %v", err)
	}
	// And once globally.
	if _, err := svc.CreateRole(ctx, "Treasurer", nil, nil); err != nil {
		t.Fatalf("create global: %v", err)
	}

	_, err = svc.CreateRole(ctx, "Treasurer", &orgA, nil)
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("duplicate in same org: want ErrNameConflict, got %v", err)
	}
	_, err = svc.CreateRole(ctx, "Treasurer", nil, nil)
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("duplicate global: want ErrNameConflict, got %v", err)
	}
}

func TestCreateRoleValidation(t *testing.T) {
	svc, _ := NewRoleService(newFakeRoleStore())
	ctx := context.Background()

	if _, err := svc.CreateRole(ctx, "   ", nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank name: want ErrInvalidInput, got %v", err)
	}
	dept := "dept-1"
	if _, err := svc.CreateRole(ctx, "Usher", nil, &dept); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("department without organization: want ErrInvalidInput, got %v", err)
	}
	// An empty-string scope collapses to a global role.
	empty := "  "
	role, err := svc.CreateRole(ctx, "Usher", &empty, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.OrganizationID != nil {
		t.Fatalf("empty scope should become global, got %v", *role.OrganizationID)
	}
}

func TestReplacePermissionsDiff(t *testing.T) {
	store := newFakeRoleStore()
	svc, _ := NewRoleService(store)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "Clerk", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Grant(ctx, role.ID, "p1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := svc.Grant(ctx, role.ID, "p2"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	store.grants = nil
	store.revokes = nil
	if err := svc.ReplacePermissions(ctx, role.ID, []string{"p2", "p3"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(store.revokes) != 1 || store.revokes[0] != "p1" {
		t.Fatalf("want only p1 revoked, got %v", store.revokes)
	}
	if len(store.grants) != 1 || store.grants[0] != "p3" {
		t.Fatalf("want only p3 granted, got %v", store.grants)
	}

	// Replaying the same set is a no-op.
	store.grants = nil
	store.revokes = nil
	if err := svc.ReplacePermissions(ctx, role.ID, []string{"p2", "p3"}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(store.grants) != 0 || len(store.revokes) != 0 {
		t.Fatalf("replay should change nothing: grants=%v revokes=%v", store.grants, store.revokes)
	}
}

func TestEffectivePermissionsRequiresRole(t *testing.T) {
	svc, _ := NewRoleService(newFakeRoleStore())
	if _, err := svc.EffectivePermissions(context.Background(), " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}
