package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prescrimed/tenant-access-service/internal/adapters/middleware"
	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/services"
	"github.com/prescrimed/tenant-access-service/test/mocks"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type pipeline struct {
	auth   *middleware.AuthMiddleware
	issuer *services.TokenIssuer
	users  *mocks.MockUserRepository
	clock  *mocks.MutableClock
}

func newPipeline(t *testing.T) pipeline {
	t.Helper()
	clock := mocks.NewMutableClock(testNow)
	key := mocks.TestKey()
	issuer := services.NewTokenIssuer(key, &key.PublicKey,
		services.WithClock(clock.Now),
		services.WithSessionTTL(15*time.Minute),
	)

	tenants := mocks.NewMockTenantRepository()
	tenants.SeedTenant(mocks.ActiveTenant(mocks.TenantAID, "Alpha", "ALPHA"))
	tenants.SeedTenant(mocks.TrialTenant(mocks.TenantBID, "Beta", "BETA", testNow.Add(-20*24*time.Hour), testNow.Add(-time.Hour)))
	tenants.SeedTenant(mocks.ActiveTenant(mocks.TenantCID, "Gamma", "GAMMA"))

	users := mocks.NewMockUserRepository()
	users.SeedUser(mocks.NewUser("nurse-a", mocks.TenantAID, domain.RoleNurse, domain.ModulePatients))
	users.SeedUser(mocks.NewUser("admin-a", mocks.TenantAID, domain.RoleAdmin))
	users.SeedUser(mocks.NewUser("admin-b", mocks.TenantBID, domain.RoleAdmin))
	users.SeedUser(mocks.NewUser("root", mocks.TenantCID, domain.RoleSuperAdmin))

	auth := middleware.NewAuthMiddleware(
		services.NewPrincipalResolver(issuer, users),
		services.NewTenantResolver(tenants, clock.Now),
	)
	return pipeline{auth: auth, issuer: issuer, users: users, clock: clock}
}

func (p pipeline) token(t *testing.T, userID string) string {
	t.Helper()
	u, err := p.users.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("unknown user %s", userID)
	}
	tok, _, err := p.issuer.Issue(u, services.TokenTypeSession)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

// captureScope records what the pipeline placed in the request context.
type captureScope struct {
	called    bool
	principal domain.Principal
	scope     domain.Scope
	tenant    *domain.Tenant
}

func (c *captureScope) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.called = true
	c.principal, _ = middleware.PrincipalFrom(r.Context())
	c.scope, _ = middleware.ScopeFrom(r.Context())
	c.tenant, _ = middleware.TenantFrom(r.Context())
	w.WriteHeader(http.StatusOK)
}

func request(token, selector string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if selector != "" {
		req.Header.Set(middleware.TenantSelectorHeader, selector)
	}
	return req
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func TestAuthenticate_Rejections(t *testing.T) {
	p := newPipeline(t)
	nurseToken := p.token(t, "nurse-a")
	blockedToken := p.token(t, "admin-b")

	tests := []struct {
		name       string
		req        *http.Request
		advance    time.Duration
		wantStatus int
		wantCode   string
	}{
		{"no credential", request("", ""), 0, http.StatusUnauthorized, response.CodeUnauthenticated},
		{"garbage credential", request("not-a-jwt", ""), 0, http.StatusUnauthorized, response.CodeUnauthenticated},
		{"expired session", request(nurseToken, ""), 16 * time.Minute, http.StatusUnauthorized, response.CodeTokenExpired},
		{"tenant trial expired", request(blockedToken, ""), 0, http.StatusForbidden, response.CodeTenantBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.clock.Set(testNow.Add(tt.advance))
			next := &captureScope{}
			rec := httptest.NewRecorder()
			p.auth.Authenticate(next).ServeHTTP(rec, tt.req)

			if next.called {
				t.Fatal("handler must not run")
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if code := decodeCode(t, rec); code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestAuthenticate_RevokedUser(t *testing.T) {
	p := newPipeline(t)
	tok := p.token(t, "nurse-a")
	p.users.SetActive("nurse-a", false)

	rec := httptest.NewRecorder()
	p.auth.Authenticate(&captureScope{}).ServeHTTP(rec, request(tok, ""))

	if rec.Code != http.StatusUnauthorized || decodeCode(t, rec) != response.CodePrincipalRevoked {
		t.Fatalf("expected 401 principal_revoked, got %d", rec.Code)
	}
}

func TestAuthenticate_SelectorHeaderIgnoredForNonSuperadmin(t *testing.T) {
	p := newPipeline(t)

	for _, user := range []string{"nurse-a", "admin-a"} {
		for _, selector := range []string{mocks.TenantBID, mocks.TenantCID, "garbage"} {
			t.Run(user+"/"+selector, func(t *testing.T) {
				next := &captureScope{}
				rec := httptest.NewRecorder()
				p.auth.Authenticate(next).ServeHTTP(rec, request(p.token(t, user), selector))

				if rec.Code != http.StatusOK {
					t.Fatalf("expected 200, got %d", rec.Code)
				}
				if next.scope.TenantID != mocks.TenantAID || next.scope.AllTenants {
					t.Errorf("expected own tenant scope, got %+v", next.scope)
				}
			})
		}
	}
}

func TestAuthenticate_SuperadminSelection(t *testing.T) {
	p := newPipeline(t)
	tok := p.token(t, "root")

	next := &captureScope{}
	rec := httptest.NewRecorder()
	p.auth.Authenticate(next).ServeHTTP(rec, request(tok, ""))
	if rec.Code != http.StatusOK || !next.scope.AllTenants || next.tenant != nil {
		t.Fatalf("expected all-tenants scope, got %d %+v", rec.Code, next.scope)
	}

	next = &captureScope{}
	rec = httptest.NewRecorder()
	p.auth.Authenticate(next).ServeHTTP(rec, request(tok, mocks.TenantAID))
	if rec.Code != http.StatusOK || next.scope.TenantID != mocks.TenantAID {
		t.Fatalf("expected tenant A scope, got %d %+v", rec.Code, next.scope)
	}
	if next.tenant == nil || next.tenant.ID != mocks.TenantAID {
		t.Error("expected gated tenant row in context")
	}

	rec = httptest.NewRecorder()
	p.auth.Authenticate(&captureScope{}).ServeHTTP(rec, request(tok, mocks.TenantBID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("superadmin selecting a blocked tenant should get 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	p.auth.Authenticate(&captureScope{}).ServeHTTP(rec, request(tok, "99999999-9999-4999-8999-999999999999"))
	if rec.Code != http.StatusNotFound || decodeCode(t, rec) != response.CodeTenantNotFound {
		t.Errorf("unknown tenant should be 404 tenant_not_found, got %d", rec.Code)
	}
}

func TestAuthenticateOnly_SkipsTenantGate(t *testing.T) {
	p := newPipeline(t)
	next := &captureScope{}
	rec := httptest.NewRecorder()
	p.auth.AuthenticateOnly(next).ServeHTTP(rec, request(p.token(t, "admin-b"), ""))

	if rec.Code != http.StatusOK || !next.called {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	if _, ok := middleware.ScopeFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()); ok {
		t.Error("empty context should carry no scope")
	}
}

func TestRequireModuleAndRole(t *testing.T) {
	p := newPipeline(t)
	evaluator := services.NewPermissionEvaluator()

	patients := p.auth.Authenticate(middleware.RequireModule(evaluator, domain.ModulePatients)(&captureScope{}))
	evolution := p.auth.Authenticate(middleware.RequireModule(evaluator, domain.ModuleEvolution)(&captureScope{}))
	superOnly := p.auth.Authenticate(middleware.RequireRole(evaluator, domain.RoleSuperAdmin)(&captureScope{}))

	tests := []struct {
		name    string
		handler http.Handler
		user    string
		want    int
	}{
		{"nurse with patients", patients, "nurse-a", http.StatusOK},
		{"nurse without evolution", evolution, "nurse-a", http.StatusForbidden},
		{"admin implicit evolution", evolution, "admin-a", http.StatusOK},
		{"admin is not superadmin", superOnly, "admin-a", http.StatusForbidden},
		{"superadmin", superOnly, "root", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, request(p.token(t, tt.user), ""))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer abc":   "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
		"Bearer  abc ": "abc",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := middleware.BearerToken(req); got != want {
			t.Errorf("%q: expected %q, got %q", header, want, got)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := middleware.NewRateLimiter(2)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 200,200,429 got %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other clients should not share a bucket, got %d", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := middleware.CORSMiddleware([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/patients", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), middleware.TenantSelectorHeader) {
		t.Error("preflight must allow the tenant selector header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin must not be echoed")
	}
}
