package domain

// Principal is the authenticated identity derived from a request credential.
type Principal struct {
	UserID      string
	TenantID    string
	Role        Role
	Permissions PermissionSet
}

// Effective returns the permission set the principal actually holds:
// every module for full-access roles, the stored set otherwise.
func (p Principal) Effective() PermissionSet {
	if p.Role.HasFullAccess() {
		return NewPermissionSet(AllModules...)
	}
	if p.Permissions == nil {
		return PermissionSet{}
	}
	return p.Permissions
}

// Scope is the tenant a request operates against.
// AllTenants is only ever set for superadmin principals without a selector.
type Scope struct {
	TenantID   string
	AllTenants bool
}

// TenantFilter returns the tenant id to filter reads by; empty means every tenant.
func (s Scope) TenantFilter() string {
	if s.AllTenants {
		return ""
	}
	return s.TenantID
}
