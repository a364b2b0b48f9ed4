package authz

// Permission names used by the core API surface.
const (
	PermOrganizationCreate = "organization.create"
	PermOrganizationList   = "organization.list"
	PermOrganizationDelete = "organization.delete"
	PermUserCreate         = "user.create"
	PermRoleCreate         = "role.create"
	PermRoleBindingsUpdate = "role.permissions.update"
	PermAuditExport        = "audit.export"
)

// BuiltinPermissions is the seeded catalogue for the administration suite.
// Business modules (finance, hr, assets, congregation, programs) consume the
// gate through these entries; their handlers live outside this core.
var BuiltinPermissions = []Permission{
	// Core administration.
	{Name: PermOrganizationCreate, Method: "POST", PathPattern: "/v1/organizations", Description: "Register an organization"},
	{Name: PermOrganizationList, Method: "GET", PathPattern: "/v1/organizations", Description: "List organizations", CrossTenant: true},
	{Name: PermOrganizationDelete, Method: "DELETE", PathPattern: "/v1/organizations/:id", Description: "Delete an organization and all owned records"},
	{Name: PermUserCreate, Method: "POST", PathPattern: "/v1/organizations/:id/users", Description: "Create a user inside an organization"},
	{Name: PermRoleCreate, Method: "POST", PathPattern: "/v1/organizations/:id/roles", Description: "Create a tenant-scoped role"},
	{Name: PermRoleBindingsUpdate, Method: "PUT", PathPattern: "/v1/roles/:id/permissions", Description: "Replace a role's permission bindings"},
	{Name: PermAuditExport, Method: "GET", PathPattern: "/v1/audit", Description: "Query the audit trail", CrossTenant: true},

	// Congregation.
	{Name: "member.create", Method: "POST", PathPattern: "/v1/members", Description: "Register a congregation member"},
	{Name: "member.list", Method: "GET", PathPattern: "/v1/members", Description: "List congregation members"},
	{Name: "member.update", Method: "PUT", PathPattern: "/v1/members/:id", Description: "Update a congregation member"},
	{Name: "member.delete", Method: "DELETE", PathPattern: "/v1/members/:id", Description: "Remove a congregation member"},

	// Finance.
	{Name: "finance.contribution.create", Method: "POST", PathPattern: "/v1/finance/contributions", Description: "Record a contribution"},
	{Name: "finance.contribution.list", Method: "GET", PathPattern: "/v1/finance/contributions", Description: "List contributions"},
	{Name: "finance.expense.create", Method: "POST", PathPattern: "/v1/finance/expenses", Description: "Record an expense"},
	{Name: "finance.report.export", Method: "GET", PathPattern: "/v1/finance/reports", Description: "Export financial reports", CrossTenant: true},

	// HR.
	{Name: "hr.staff.create", Method: "POST", PathPattern: "/v1/hr/staff", Description: "Register a staff member"},
	{Name: "hr.staff.update", Method: "PUT", PathPattern: "/v1/hr/staff/:id", Description: "Update a staff record"},
	{Name: "hr.payroll.run", Method: "POST", PathPattern: "/v1/hr/payroll", Description: "Run payroll"},

	// Assets.
	{Name: "asset.create", Method: "POST", PathPattern: "/v1/assets", Description: "Register an asset"},
	{Name: "asset.update", Method: "PUT", PathPattern: "/v1/assets/:id", Description: "Update an asset"},
	{Name: "asset.delete", Method: "DELETE", PathPattern: "/v1/assets/:id", Description: "Retire an asset"},

	// Programs.
	{Name: "program.event.create", Method: "POST", PathPattern: "/v1/programs/events", Description: "Schedule a program event"},
	{Name: "program.event.list", Method: "GET", PathPattern: "/v1/programs/events", Description: "List program events"},
	{Name: "program.attendance.record", Method: "POST", PathPattern: "/v1/programs/events/:id/attendance", Description: "Record attendance"},
}
