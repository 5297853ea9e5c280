package services_test

import (
	"errors"
	"testing"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/services"
)

func TestPermissionEvaluator_Allow(t *testing.T) {
	eval := services.NewPermissionEvaluator()

	tests := []struct {
		name    string
		p       domain.Principal
		module  domain.Module
		allowed bool
	}{
		{"admin_without_stored_permissions", domain.Principal{Role: domain.RoleAdmin}, domain.ModuleBilling, true},
		{"superadmin_without_stored_permissions", domain.Principal{Role: domain.RoleSuperAdmin}, domain.ModuleCompanies, true},
		{"nurse_with_module", domain.Principal{Role: domain.RoleNurse, Permissions: domain.NewPermissionSet(domain.ModuleEvolution)}, domain.ModuleEvolution, true},
		{"nurse_without_module", domain.Principal{Role: domain.RoleNurse, Permissions: domain.NewPermissionSet(domain.ModuleEvolution)}, domain.ModuleBilling, false},
		{"user_with_nil_set", domain.Principal{Role: domain.RoleUser}, domain.ModuleDashboard, false},
		{"unknown_module", domain.Principal{Role: domain.RoleNurse, Permissions: domain.NewPermissionSet(domain.ModuleEvolution)}, domain.Module("secret"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.Allow(tt.p, tt.module)
			if tt.allowed && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tt.allowed {
				if !errors.Is(err, domain.ErrAccessDenied) {
					t.Fatalf("expected ErrAccessDenied, got %v", err)
				}
				if err.Error() != domain.ErrAccessDenied.Error() {
					t.Errorf("denial should not mention the module, got %q", err.Error())
				}
			}
		})
	}
}

func TestPermissionEvaluator_RequireRole(t *testing.T) {
	eval := services.NewPermissionEvaluator()

	if err := eval.RequireRole(domain.Principal{Role: domain.RoleSuperAdmin}, domain.RoleSuperAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Full access is not role equality.
	if err := eval.RequireRole(domain.Principal{Role: domain.RoleAdmin}, domain.RoleSuperAdmin); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}
