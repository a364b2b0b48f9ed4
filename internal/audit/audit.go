package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kanisa.org/internal/authz"
	"kanisa.org/internal/obs"
)

// ErrWriteFailed is returned in strict mode when an entry cannot be persisted.
var ErrWriteFailed = errors.New("audit: write failed")

// Action classifies an audit event. LOGIN and EXPORT cover non-CRUD
// security-relevant events; DENY records gate refusals.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionLogin  Action = "LOGIN"
	ActionLogout Action = "LOGOUT"
	ActionExport Action = "EXPORT"
	ActionDeny   Action = "DENY"
)

// Entry is one immutable audit record. Old/New values are opaque serialized
// maps; the module name is the only typing hint, keeping the recorder
// decoupled from business schemas.
type Entry struct {
	ID             string         `json:"audit_id"`
	UserID         *string        `json:"user_id,omitempty"`
	OrganizationID *string        `json:"organization_id,omitempty"`
	Action         Action         `json:"action"`
	Module         string         `json:"module"`
	RecordID       *string        `json:"record_id,omitempty"`
	OldValues      map[string]any `json:"old_values,omitempty"`
	NewValues      map[string]any `json:"new_values,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store appends immutable entries. There is deliberately no update or delete.
type Store interface {
	AppendAudit(ctx context.Context, entry Entry) error
}

// Filter narrows audit queries.
type Filter struct {
	OrganizationID *string
	Module         string
	Action         Action
	Since          time.Time
	Until          time.Time
	Limit          int
}

// QueryStore reads the trail back out for operators.
type QueryStore interface {
	QueryAudit(ctx context.Context, filter Filter) ([]Entry, error)
}

// Recorder persists audit entries. By default a failed write is logged and
// counted but never fails the caller's business operation; strict mode
// reverses that trade-off.
type Recorder struct {
	store  Store
	strict bool
	now    func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithStrict makes audit failures block the primary operation.
func WithStrict(strict bool) RecorderOption {
	return func(r *Recorder) { r.strict = strict }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder.
func NewRecorder(store Store, opts ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record persists one entry, enriching it with request metadata from context.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.Action == "" || strings.TrimSpace(entry.Module) == "" {
		return fmt.Errorf("%w: action and module are required", authz.ErrInvalidInput)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if meta, ok := MetaFromContext(ctx); ok {
		if entry.IPAddress == "" {
			entry.IPAddress = meta.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = meta.UserAgent
		}
	}
	if err := r.store.AppendAudit(ctx, entry); err != nil {
		obs.ObserveAuditFailure()
		obs.LogEntry(map[string]any{
			"ts":     r.now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit_write_failed",
			"action": string(entry.Action),
			"module": entry.Module,
			"error":  err.Error(),
		})
		if r.strict {
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		return nil
	}
	return nil
}

var _ authz.DecisionRecorder = (*Recorder)(nil)

// RecordDecision translates a gate denial into an audit entry carrying the
// internal reason. Allowed mutations are booked by their handlers as entity
// entries, so the trail holds exactly one record per successful change.
func (r *Recorder) RecordDecision(ctx context.Context, actor authz.Actor, decision authz.Decision, method, path string) {
	if decision.Allowed {
		return
	}
	entry := Entry{
		Action: ActionDeny,
		Module: "authz",
		NewValues: map[string]any{
			"method": method,
			"path":   path,
		},
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if actor.OrganizationID != "" {
		orgID := actor.OrganizationID
		entry.OrganizationID = &orgID
	}
	if decision.Permission != nil {
		entry.Module = moduleOf(decision.Permission.Name)
		entry.NewValues["permission"] = decision.Permission.Name
	}
	entry.NewValues["reason"] = string(decision.Reason)
	// Gate side effects are always lenient; a failed write never blocks the
	// decision itself.
	_ = r.Record(ctx, entry)
}

func moduleOf(permissionName string) string {
	if i := strings.IndexByte(permissionName, '.'); i > 0 {
		return permissionName[:i]
	}
	return permissionName
}
