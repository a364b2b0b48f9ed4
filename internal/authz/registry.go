package authz

import (
	"fmt"
	"strings"
	"sync"

	"kanisa.org/internal/ids"
)

// Registry matches incoming (method, path) tuples against the seeded
// permission catalogue. Path patterns use exact segment comparison; a segment
// written ":name" matches any single non-empty segment. Two patterns that
// could claim the same path without a literal-count tiebreak are a
// configuration error and are rejected at registration time, never resolved
// at runtime.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]int // method + "\x00" + pattern -> index
	patterns []compiledPattern
}

type compiledPattern struct {
	perm     Permission
	segments []string
	literals int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exact: make(map[string]int),
	}
}

// Register adds one permission to the catalogue. It fails with
// ErrDuplicateRoute when the (pattern, method) pair already exists, or when
// the new pattern overlaps an existing one with the same number of literal
// segments, since no tiebreak could pick a winner for a path both match.
func (r *Registry) Register(p Permission) (Permission, error) {
	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		return Permission{}, fmt.Errorf("%w: http method is required", ErrInvalidInput)
	}
	pattern := normalizePath(p.PathPattern)
	if pattern == "" {
		return Permission{}, fmt.Errorf("%w: path pattern is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Name) == "" {
		return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	p.Method = method
	p.PathPattern = pattern
	if p.ID == "" {
		p.ID = ids.New()
	}

	segments := splitSegments(pattern)
	literals := 0
	for _, seg := range segments {
		if !isParam(seg) {
			literals++
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := method + "\x00" + pattern
	if _, ok := r.exact[key]; ok {
		return Permission{}, fmt.Errorf("%w: %s %s", ErrDuplicateRoute, method, pattern)
	}
	for _, cand := range r.patterns {
		if cand.perm.Method != method || len(cand.segments) != len(segments) {
			continue
		}
		if cand.literals == literals && patternsOverlap(cand.segments, segments) {
			return Permission{}, fmt.Errorf("%w: %s %s overlaps %s", ErrDuplicateRoute, method, pattern, cand.perm.PathPattern)
		}
	}

	r.exact[key] = len(r.patterns)
	r.patterns = append(r.patterns, compiledPattern{perm: p, segments: segments, literals: literals})
	return p, nil
}

// Load registers a batch of seeded permissions, stopping on the first error.
func (r *Registry) Load(perms []Permission) error {
	for _, p := range perms {
		if _, err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Match resolves the permission protecting (method, path). Unknown routes
// return ok=false; the gate treats that as a closed failure. When several
// patterns match, the one with the most literal segments wins.
func (r *Registry) Match(method, path string) (Permission, bool) {
	method = strings.ToUpper(strings.TrimSpace(method))
	path = normalizePath(path)
	if method == "" || path == "" {
		return Permission{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if idx, ok := r.exact[method+"\x00"+path]; ok {
		return r.patterns[idx].perm, true
	}

	segments := splitSegments(path)
	best := -1
	for i, cand := range r.patterns {
		if cand.perm.Method != method || len(cand.segments) != len(segments) {
			continue
		}
		if !segmentsMatch(cand.segments, segments) {
			continue
		}
		if best == -1 || cand.literals > r.patterns[best].literals {
			best = i
		}
	}
	if best == -1 {
		return Permission{}, false
	}
	return r.patterns[best].perm, true
}

// Permissions returns the catalogue in registration order.
func (r *Registry) Permissions() []Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Permission, 0, len(r.patterns))
	for _, cand := range r.patterns {
		out = append(out, cand.perm)
	}
	return out
}

func segmentsMatch(pattern, path []string) bool {
	for i, seg := range pattern {
		if isParam(seg) {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func splitSegments(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, ":")
}

// patternsOverlap reports whether some concrete path matches both patterns.
// That is the case unless a position holds two differing literals.
func patternsOverlap(a, b []string) bool {
	for i := range a {
		if isParam(a[i]) || isParam(b[i]) {
			continue
		}
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
