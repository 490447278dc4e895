package auth

// Role is a user's role within a tenant.
type Role string

const (
	RoleClinician   Role = "clinician"
	RoleScheduler   Role = "scheduler"
	RoleAgencyAdmin Role = "agency_admin"
	RoleSuperAdmin  Role = "super_admin"
)

var validRoles = map[Role]bool{
	RoleClinician:   true,
	RoleScheduler:   true,
	RoleAgencyAdmin: true,
	RoleSuperAdmin:  true,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return validRoles[r]
}
