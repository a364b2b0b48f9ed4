package authz

import "time"

// Permission is a protectable operation identified by an HTTP method and a
// path pattern. The catalogue is seeded at startup and immutable afterwards.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Method      string    `json:"http_method"`
	PathPattern string    `json:"path_pattern"`
	Description string    `json:"description,omitempty"`
	CrossTenant bool      `json:"cross_tenant,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Role groups permissions. A nil OrganizationID marks a system-wide role
// visible to every tenant; a non-nil one scopes the role to that tenant.
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	DepartmentID   *string   `json:"department_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Headquarters is the top of the ownership hierarchy and owns organizations.
type Headquarters struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         *string   `json:"code,omitempty"`
	AccountID    string    `json:"account_id"`
	PasswordHash string    `json:"-"`
	Region       string    `json:"region,omitempty"`
	Country      string    `json:"country,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Organization is the unit of data isolation. Every business record carries
// its id; deleting an organization cascades to all owned records.
type Organization struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Denomination   string    `json:"denomination,omitempty"`
	Address        string    `json:"address,omitempty"`
	Region         string    `json:"region,omitempty"`
	District       string    `json:"district,omitempty"`
	Status         string    `json:"status"`
	AccountID      string    `json:"account_id"`
	PasswordHash   string    `json:"-"`
	OrgTypeID      *string   `json:"org_type_id,omitempty"`
	HeadquartersID *string   `json:"headquarters_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Department subdivides an organization.
type Department struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// User authenticates against exactly one tenant context. Status has no
// default value: it must be set explicitly at creation.
type User struct {
	ID             string    `json:"id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	HeadquartersID *string   `json:"headquarters_id,omitempty"`
	RoleID         *string   `json:"role_id,omitempty"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Status         string    `json:"status"`
	PhotoURL       string    `json:"photo_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Actor is the authenticated subject as derived from a validated token.
// Nothing in it may originate from request bodies or query parameters.
type Actor struct {
	UserID         string
	RoleID         string
	OrganizationID string
	HeadquartersID string
}

// HQScoped reports whether the actor operates at headquarters level rather
// than inside a single organization.
func (a Actor) HQScoped() bool {
	return a.HeadquartersID != "" && a.OrganizationID == ""
}

// Target identifies the tenant that owns the record a request addresses.
type Target struct {
	OrganizationID string
}

// DenyReason classifies why the gate refused a request. Reasons are recorded
// in the audit trail but never echoed to the client.
type DenyReason string

const (
	DenyNoRole       DenyReason = "NoRole"
	DenyUnknownRoute DenyReason = "UnknownRoute"
	DenyNotGranted   DenyReason = "NotGranted"
	DenyCrossTenant  DenyReason = "CrossTenant"
)

// Decision is the gate's verdict for a single request.
type Decision struct {
	Allowed    bool
	Reason     DenyReason
	Permission *Permission
}
