package authz

import (
	"context"
	"net/http"

	"kanisa.org/internal/obs"
)

// DecisionRecorder receives gate denials destined for the audit trail.
// Allowed requests are not reported here: a successful mutation is recorded
// once, by the handler that performed it, as an entity entry.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, actor Actor, decision Decision, method, path string)
}

// Gate authorizes requests against the permission catalogue and the actor's
// role bindings. Tenant scoping is applied on top of permission grants and
// cannot be bypassed by holding the permission alone.
type Gate struct {
	registry *Registry
	roles    RoleStore
	recorder DecisionRecorder
}

// NewGate constructs a Gate. The recorder may be nil in tests.
func NewGate(registry *Registry, roles RoleStore, recorder DecisionRecorder) *Gate {
	return &Gate{registry: registry, roles: roles, recorder: recorder}
}

// Authorize decides whether actor may perform (method, path) against target.
// The actor's organization scope comes from the validated token, never from
// the request. A non-nil error means the decision could not be made and the
// request must not proceed.
func (g *Gate) Authorize(ctx context.Context, actor Actor, method, path string, target *Target) (Decision, error) {
	if actor.RoleID == "" {
		return g.deny(ctx, actor, DenyNoRole, nil, method, path), nil
	}

	perm, ok := g.registry.Match(method, path)
	if !ok {
		// Unknown routes fail closed.
		return g.deny(ctx, actor, DenyUnknownRoute, nil, method, path), nil
	}

	granted, err := g.roles.RolePermissions(ctx, actor.RoleID)
	if err != nil {
		return Decision{}, err
	}
	if !containsPermission(granted, perm.ID) {
		return g.deny(ctx, actor, DenyNotGranted, &perm, method, path), nil
	}

	if target != nil && target.OrganizationID != "" && target.OrganizationID != actor.OrganizationID {
		// Cross-tenant access is reserved for HQ-scoped actors performing
		// read-oriented or explicitly cross-tenant operations.
		if !actor.HQScoped() || !(perm.CrossTenant || !isMutating(method)) {
			return g.deny(ctx, actor, DenyCrossTenant, &perm, method, path), nil
		}
	}

	obs.ObserveDecision("allow", "")
	return Decision{Allowed: true, Permission: &perm}, nil
}

func (g *Gate) deny(ctx context.Context, actor Actor, reason DenyReason, perm *Permission, method, path string) Decision {
	decision := Decision{Allowed: false, Reason: reason, Permission: perm}
	obs.ObserveDecision("deny", string(reason))
	if g.recorder != nil {
		g.recorder.RecordDecision(ctx, actor, decision, method, path)
	}
	return decision
}

func containsPermission(perms []Permission, id string) bool {
	for _, p := range perms {
		if p.ID == id {
			return true
		}
	}
	return false
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
