package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/services"
	"github.com/prescrimed/tenant-access-service/internal/observability/metrics"
)

// TenantSelectorHeader lets a superadmin pick the tenant a request operates on.
// It is ignored for every other role.
const TenantSelectorHeader = "X-Empresa-Id"

type contextKey string

const (
	principalKey contextKey = "principal"
	scopeKey     contextKey = "scope"
	tenantKey    contextKey = "tenant"
)

// AuthMiddleware runs the request pipeline: credential, principal, tenant, gate.
type AuthMiddleware struct {
	principals *services.PrincipalResolver
	tenants    *services.TenantResolver
}

func NewAuthMiddleware(principals *services.PrincipalResolver, tenants *services.TenantResolver) *AuthMiddleware {
	return &AuthMiddleware{principals: principals, tenants: tenants}
}

// Authenticate resolves the principal and its tenant scope and applies the
// access gate before any handler runs.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := m.resolvePrincipal(w, r)
		if !ok {
			return
		}

		scope, tenant, err := m.tenants.ResolveAndGate(r.Context(), p, r.Header.Get(TenantSelectorHeader))
		if err != nil {
			_, code, _ := response.Classify(err)
			metrics.ObserveAuthDecision("tenant", code)
			log.Printf("auth: tenant rejected for user %s: %v", p.UserID, err)
			response.Error(w, err)
			return
		}
		metrics.ObserveAuthDecision("tenant", "allowed")

		ctx := context.WithValue(r.Context(), principalKey, p)
		ctx = context.WithValue(ctx, scopeKey, scope)
		if tenant != nil {
			ctx = context.WithValue(ctx, tenantKey, tenant)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthenticateOnly resolves the principal without touching tenant context. It
// serves logout and the tenant administration routes, which must stay
// reachable for blocked tenants.
func (m *AuthMiddleware) AuthenticateOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := m.resolvePrincipal(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

func (m *AuthMiddleware) resolvePrincipal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, err := m.principals.Resolve(r.Context(), BearerToken(r))
	if err != nil {
		_, code, _ := response.Classify(err)
		metrics.ObserveAuthDecision("principal", code)
		response.Error(w, err)
		return domain.Principal{}, false
	}
	metrics.ObserveAuthDecision("principal", "allowed")
	return p, true
}

// BearerToken extracts the credential from the Authorization header, or "".
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireModule rejects principals lacking the module permission.
func RequireModule(evaluator *services.PermissionEvaluator, module domain.Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				response.Error(w, domain.ErrUnauthenticated)
				return
			}
			if err := evaluator.Allow(p, module); err != nil {
				metrics.ObserveAuthDecision("permission", response.CodeAccessDenied)
				response.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects principals whose role is not exactly role.
func RequireRole(evaluator *services.PermissionEvaluator, role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				response.Error(w, domain.ErrUnauthenticated)
				return
			}
			if err := evaluator.RequireRole(p, role); err != nil {
				log.Printf("auth: role %s required, user %s has %s", role, p.UserID, p.Role)
				metrics.ObserveAuthDecision("role", response.CodeAccessDenied)
				response.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

func ScopeFrom(ctx context.Context) (domain.Scope, bool) {
	s, ok := ctx.Value(scopeKey).(domain.Scope)
	return s, ok
}

// TenantFrom returns the gated tenant row; absent in all-tenants mode.
func TenantFrom(ctx context.Context) (*domain.Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(*domain.Tenant)
	return t, ok
}
