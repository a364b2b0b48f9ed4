package guard

import (
	"context"
	"sync"
)

// Decision is the route guard's render-or-redirect verdict.
type Decision int

const (
	// DecisionSuspend: capability set still loading; show an indicator,
	// never the protected content.
	DecisionSuspend Decision = iota
	// DecisionRender: the actor holds the required permission.
	DecisionRender
	// DecisionRedirect: navigate to the resolution's Redirect route.
	DecisionRedirect
)

// Resolution pairs a decision with its redirect target when applicable.
type Resolution struct {
	Decision Decision
	Redirect string
}

// CapabilityFetcher retrieves the actor's permission names from the server.
type CapabilityFetcher func(ctx context.Context) ([]string, error)

// RouteGuard consumes the gate's decisions through a capability set fetched
// once per session and cached for the session's lifetime.
type RouteGuard struct {
	session *Session
	fetch   CapabilityFetcher

	mu     sync.Mutex
	caps   map[string]struct{}
	loaded bool
}

// NewRouteGuard constructs a guard bound to an authenticated session.
func NewRouteGuard(sess *Session, fetch CapabilityFetcher) *RouteGuard {
	return &RouteGuard{session: sess, fetch: fetch}
}

// Load fetches the capability set. Subsequent calls are no-ops for the
// session's lifetime, so navigation does not pay a round trip per route.
func (g *RouteGuard) Load(ctx context.Context) error {
	g.mu.Lock()
	if g.loaded {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	caps, err := g.fetch(ctx)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	g.mu.Lock()
	if !g.loaded {
		g.caps = set
		g.loaded = true
	}
	g.mu.Unlock()
	return nil
}

// CanAccess reports whether the cached capability set contains the
// permission. It is false while the set is still loading.
func (g *RouteGuard) CanAccess(permissionName string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loaded {
		return false
	}
	_, ok := g.caps[permissionName]
	return ok
}

// Resolve decides what the view layer should do for a protected route. A
// dead session always redirects to the application root; an unloaded
// capability set suspends rather than rendering protected content early.
func (g *RouteGuard) Resolve(requiredPermission, fallback string) Resolution {
	if g.session != nil && !g.session.Active() {
		return Resolution{Decision: DecisionRedirect, Redirect: "/"}
	}
	g.mu.Lock()
	loaded := g.loaded
	g.mu.Unlock()
	if !loaded {
		return Resolution{Decision: DecisionSuspend}
	}
	if g.CanAccess(requiredPermission) {
		return Resolution{Decision: DecisionRender}
	}
	return Resolution{Decision: DecisionRedirect, Redirect: fallback}
}
