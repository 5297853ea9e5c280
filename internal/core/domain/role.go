package domain

import (
	"fmt"
	"sort"
	"strings"
)

type Role string

const (
	RoleUser         Role = "user"
	RoleNurse        Role = "nurse"
	RoleNursingTech  Role = "nursing_tech"
	RoleNutritionist Role = "nutritionist"
	RoleSocialWorker Role = "social_worker"
	RoleAdminClerk   Role = "admin_clerk"
	RolePhysician    Role = "physician"
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "superadmin"
)

var knownRoles = map[Role]struct{}{
	RoleUser:         {},
	RoleNurse:        {},
	RoleNursingTech:  {},
	RoleNutritionist: {},
	RoleSocialWorker: {},
	RoleAdminClerk:   {},
	RolePhysician:    {},
	RoleAdmin:        {},
	RoleSuperAdmin:   {},
}

// ParseRole maps a stored role string onto the closed role set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// HasFullAccess reports whether the role implicitly holds every module permission.
func (r Role) HasFullAccess() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

func (r Role) String() string {
	return string(r)
}

// Module identifies a permission-gated area of the product.
type Module string

const (
	ModuleDashboard     Module = "dashboard"
	ModuleSchedule      Module = "schedule"
	ModulePrescriptions Module = "prescriptions"
	ModulePatients      Module = "patients"
	ModuleInventory     Module = "inventory"
	ModuleEvolution     Module = "evolution"
	ModuleBilling       Module = "billing"
	ModuleUsers         Module = "users"
	ModuleCompanies     Module = "companies"
	ModuleSettings      Module = "settings"
	ModuleReports       Module = "reports"
)

var AllModules = []Module{
	ModuleDashboard,
	ModuleSchedule,
	ModulePrescriptions,
	ModulePatients,
	ModuleInventory,
	ModuleEvolution,
	ModuleBilling,
	ModuleUsers,
	ModuleCompanies,
	ModuleSettings,
	ModuleReports,
}

func ParseModule(s string) (Module, bool) {
	m := Module(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllModules {
		if known == m {
			return m, true
		}
	}
	return "", false
}

// PermissionSet is the set of modules a user was granted explicitly.
type PermissionSet map[Module]struct{}

func NewPermissionSet(modules ...Module) PermissionSet {
	set := make(PermissionSet, len(modules))
	for _, m := range modules {
		set[m] = struct{}{}
	}
	return set
}

// ParsePermissionSet builds a set from stored strings. Unknown identifiers are dropped.
func ParsePermissionSet(values []string) PermissionSet {
	set := make(PermissionSet, len(values))
	for _, v := range values {
		if m, ok := ParseModule(v); ok {
			set[m] = struct{}{}
		}
	}
	return set
}

func (s PermissionSet) Has(m Module) bool {
	_, ok := s[m]
	return ok
}

// Strings returns the sorted module identifiers.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, string(m))
	}
	sort.Strings(out)
	return out
}
