package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/prescrimed/tenant-access-service/internal/adapters/handler"
	"github.com/prescrimed/tenant-access-service/internal/adapters/middleware"
	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/services"
	"github.com/prescrimed/tenant-access-service/test/mocks"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const (
	patientA1   = "aaaaaaaa-0000-4000-8000-000000000001"
	patientB1   = "bbbbbbbb-0000-4000-8000-000000000001"
	evolutionA1 = "aaaaaaaa-1111-4000-8000-000000000001"
	unknownID   = "99999999-9999-4999-8999-999999999999"
	password    = "correct horse"
)

type apiFixture struct {
	server     *httptest.Server
	issuer     *services.TokenIssuer
	users      *mocks.MockUserRepository
	tenants    *mocks.MockTenantRepository
	evolutions *mocks.MockEvolutionRepository
	clock      *mocks.MutableClock
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	clock := mocks.NewMutableClock(testNow)
	key := mocks.TestKey()
	issuer := services.NewTokenIssuer(key, &key.PublicKey,
		services.WithClock(clock.Now),
		services.WithSessionTTL(15*time.Minute),
		services.WithRefreshTTL(24*time.Hour),
	)

	tenants := mocks.NewMockTenantRepository()
	tenants.SeedTenant(mocks.ActiveTenant(mocks.TenantAID, "Alpha", "ALPHA"))
	tenants.SeedTenant(mocks.TrialTenant(mocks.TenantBID, "Beta", "BETA", testNow.Add(-20*24*time.Hour), testNow.Add(-time.Hour)))
	tenants.SeedTenant(mocks.ActiveTenant(mocks.TenantCID, "Gamma", "GAMMA"))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	users := mocks.NewMockUserRepository()
	for _, u := range []*domain.User{
		mocks.NewUser("nurse-a", mocks.TenantAID, domain.RoleNurse, domain.ModulePatients, domain.ModuleEvolution),
		mocks.NewUser("admin-a", mocks.TenantAID, domain.RoleAdmin),
		mocks.NewUser("admin-b", mocks.TenantBID, domain.RoleAdmin),
		mocks.NewUser("root", mocks.TenantCID, domain.RoleSuperAdmin),
	} {
		u.PasswordHash = string(hash)
		users.SeedUser(u)
	}

	patients := mocks.NewMockPatientRepository()
	patients.SeedPatient(&domain.Patient{ID: patientA1, TenantID: mocks.TenantAID, Name: "Ana"})
	patients.SeedPatient(&domain.Patient{ID: patientB1, TenantID: mocks.TenantBID, Name: "Bruno"})

	evolutions := mocks.NewMockEvolutionRepository()
	evolutions.SeedRecord(&domain.EvolutionRecord{
		ID:        evolutionA1,
		TenantID:  mocks.TenantAID,
		PatientID: patientA1,
		AuthorID:  "nurse-a",
		CreatedAt: testNow.Add(-time.Hour),
		Body:      domain.EvolutionBody{Type: domain.EvolutionNote, Description: "stable"},
	})

	tenants.Users = users
	tenants.Patients = patients
	tenants.Evolutions = evolutions

	evaluator := services.NewPermissionEvaluator()
	auth := middleware.NewAuthMiddleware(
		services.NewPrincipalResolver(issuer, users),
		services.NewTenantResolver(tenants, clock.Now),
	)

	router := handler.NewRouter(handler.Routes{
		Auth:        auth,
		Evaluator:   evaluator,
		RateLimiter: middleware.NewRateLimiter(1000),
		CORSOrigins: []string{"http://localhost:5173"},
		Sessions:    handler.NewAuthHandler(services.NewSessionService(users, mocks.NewMockRefreshTokenStore(), issuer)),
		Patients:    handler.NewPatientHandler(services.NewPatientService(patients, evaluator)),
		Evolutions:  handler.NewEvolutionHandler(services.NewEvolutionService(evolutions, patients, evaluator, clock.Now)),
		Tenants:     handler.NewTenantHandler(services.NewLifecycleService(tenants, evaluator, clock.Now), clock.Now),
		Health:      handler.NewHealthHandler(),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{
		server:     server,
		issuer:     issuer,
		users:      users,
		tenants:    tenants,
		evolutions: evolutions,
		clock:      clock,
	}
}

func (f *apiFixture) token(t *testing.T, userID string) string {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("unknown user %s", userID)
	}
	tok, _, err := f.issuer.Issue(u, services.TokenTypeSession)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type call struct {
	method   string
	path     string
	user     string
	selector string
	body     any
}

func (f *apiFixture) do(t *testing.T, c call) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&body).Encode(c.body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(c.method, f.server.URL+c.path, &body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, c.user))
	}
	if c.selector != "" {
		req.Header.Set(middleware.TenantSelectorHeader, c.selector)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, out.Bytes()
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body response.ErrorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("not an error body: %s", raw)
	}
	return body.Code
}

func TestRouter_StatusMapping(t *testing.T) {
	f := newAPI(t)
	superSelectA := func(c call) call { c.user = "root"; c.selector = mocks.TenantAID; return c }

	tests := []struct {
		name     string
		call     call
		wantCode int
		wantErr  string
	}{
		{"no credential", call{method: http.MethodGet, path: "/api/patients"}, http.StatusUnauthorized, response.CodeUnauthenticated},
		{"blocked tenant", call{method: http.MethodGet, path: "/api/patients", user: "admin-b"}, http.StatusForbidden, response.CodeTenantBlocked},
		{"admin holds every module", call{method: http.MethodGet, path: "/api/patients", user: "admin-a"}, http.StatusOK, ""},
		{"put evolution", call{method: http.MethodPut, path: "/api/evolutions/" + evolutionA1, user: "nurse-a", body: map[string]string{"description": "x"}}, http.StatusMethodNotAllowed, response.CodeHistoryImmutable},
		{"patch evolution as superadmin", superSelectA(call{method: http.MethodPatch, path: "/api/evolutions/" + evolutionA1}), http.StatusMethodNotAllowed, response.CodeHistoryImmutable},
		{"delete evolution as admin", call{method: http.MethodDelete, path: "/api/evolutions/" + evolutionA1, user: "admin-a"}, http.StatusForbidden, response.CodeAccessDenied},
		{"delete evolution without selection", call{method: http.MethodDelete, path: "/api/evolutions/" + evolutionA1, user: "root"}, http.StatusBadRequest, response.CodeTenantContextRequired},
		{"unknown evolution", call{method: http.MethodGet, path: "/api/evolutions/" + unknownID, user: "nurse-a"}, http.StatusNotFound, response.CodeNotFound},
		{"empresas as admin", call{method: http.MethodGet, path: "/api/empresas", user: "admin-a"}, http.StatusForbidden, response.CodeAccessDenied},
		{"empresa malformed id", call{method: http.MethodGet, path: "/api/empresas/not-a-uuid", user: "root"}, http.StatusNotFound, response.CodeTenantNotFound},
		{"empresa unknown", call{method: http.MethodGet, path: "/api/empresas/" + unknownID, user: "root"}, http.StatusNotFound, response.CodeTenantNotFound},
		{"start trial while trial runs", call{method: http.MethodPost, path: "/api/empresas/" + mocks.TenantBID + "/trial/start", user: "root", body: map[string]int{"days": 7}}, http.StatusConflict, response.CodeInvalidTransition},
		{"start trial zero days", call{method: http.MethodPost, path: "/api/empresas/" + mocks.TenantAID + "/trial/start", user: "root", body: map[string]int{"days": 0}}, http.StatusConflict, response.CodeInvalidTransition},
		{"start trial without days", call{method: http.MethodPost, path: "/api/empresas/" + mocks.TenantAID + "/trial/start", user: "root", body: map[string]string{}}, http.StatusConflict, response.CodeInvalidTransition},
		{"extend trial zero days", call{method: http.MethodPost, path: "/api/empresas/" + mocks.TenantBID + "/trial/extend", user: "root", body: map[string]int{"days": 0}}, http.StatusConflict, response.CodeInvalidTransition},
		{"extend trial negative days", call{method: http.MethodPost, path: "/api/empresas/" + mocks.TenantBID + "/trial/extend", user: "root", body: map[string]int{"days": -3}}, http.StatusConflict, response.CodeInvalidTransition},
		{"delete active empresa", call{method: http.MethodDelete, path: "/api/empresas/" + mocks.TenantAID, user: "root", body: map[string]string{"confirm": "ALPHA"}}, http.StatusConflict, response.CodeInvalidTransition},
		{"unknown route", call{method: http.MethodGet, path: "/api/nothing", user: "root"}, http.StatusNotFound, response.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := f.do(t, tt.call)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, resp.StatusCode, raw)
			}
			if tt.wantErr != "" {
				if code := errorCode(t, raw); code != tt.wantErr {
					t.Errorf("expected code %q, got %q", tt.wantErr, code)
				}
			}
		})
	}

	if !f.evolutions.Has(evolutionA1) {
		t.Error("no rejected request may remove the evolution")
	}
}

func TestRouter_PatientsScopedDespiteHeader(t *testing.T) {
	f := newAPI(t)

	resp, raw := f.do(t, call{method: http.MethodGet, path: "/api/patients", user: "nurse-a", selector: mocks.TenantBID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var list handler.PatientListResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Patients) != 1 || list.Patients[0].TenantID != mocks.TenantAID {
		t.Fatalf("expected only tenant A patients, got %+v", list.Patients)
	}
}

func TestRouter_ConvertUnblocksTenant(t *testing.T) {
	f := newAPI(t)

	resp, _ := f.do(t, call{method: http.MethodGet, path: "/api/auth/me", user: "admin-b"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected blocked tenant, got %d", resp.StatusCode)
	}

	resp, raw := f.do(t, call{
		method: http.MethodPost,
		path:   "/api/empresas/" + mocks.TenantBID + "/trial/convert",
		user:   "root",
		body:   map[string]string{"plan": "pro"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("convert failed: %d %s", resp.StatusCode, raw)
	}
	var view handler.TenantView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatal(err)
	}
	if view.State != domain.StateConverted || view.Blocked || view.Plan != domain.PlanPro {
		t.Errorf("unexpected tenant after convert: %+v", view)
	}

	resp, raw = f.do(t, call{method: http.MethodGet, path: "/api/patients", user: "admin-b"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected tenant B to be unblocked, got %d %s", resp.StatusCode, raw)
	}
}

func TestRouter_ExtendAndHardDelete(t *testing.T) {
	f := newAPI(t)
	base := "/api/empresas/" + mocks.TenantBID

	resp, raw := f.do(t, call{method: http.MethodPost, path: base + "/trial/extend", user: "root", body: map[string]int{"days": 7}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("extend failed: %d %s", resp.StatusCode, raw)
	}
	var view handler.TenantView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatal(err)
	}
	wantEnd := testNow.Add(-time.Hour).AddDate(0, 0, 7)
	if view.Trial.EndsAt == nil || !view.Trial.EndsAt.Equal(wantEnd) {
		t.Errorf("expected trial to end %v, got %v", wantEnd, view.Trial.EndsAt)
	}

	if resp, _ := f.do(t, call{method: http.MethodPost, path: base + "/deactivate", user: "root"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate failed: %d", resp.StatusCode)
	}

	resp, raw = f.do(t, call{method: http.MethodDelete, path: base, user: "root", body: map[string]string{"confirm": "WRONG"}})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("wrong confirmation should be refused, got %d %s", resp.StatusCode, raw)
	}

	resp, raw = f.do(t, call{method: http.MethodDelete, path: base, user: "root", body: map[string]string{"confirm": "BETA"}})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete failed: %d %s", resp.StatusCode, raw)
	}
	if _, ok := f.tenants.Get(mocks.TenantBID); ok {
		t.Error("tenant should be gone")
	}
	if f.users.Count(mocks.TenantBID) != 0 {
		t.Error("tenant users should be removed with it")
	}
}

func TestRouter_EvolutionCreateAndOverrideDelete(t *testing.T) {
	f := newAPI(t)

	resp, raw := f.do(t, call{
		method: http.MethodPost,
		path:   "/api/evolutions",
		user:   "nurse-a",
		body:   map[string]any{"patient_id": patientA1, "type": "vital_signs", "description": "BP stable"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}
	var rec domain.EvolutionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.TenantID != mocks.TenantAID || rec.AuthorID != "nurse-a" {
		t.Errorf("unexpected record: %+v", rec)
	}

	resp, raw = f.do(t, call{
		method: http.MethodPost,
		path:   "/api/evolutions",
		user:   "nurse-a",
		body:   map[string]any{"patient_id": patientB1, "description": "cross-tenant"},
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("patient of another tenant should look missing, got %d %s", resp.StatusCode, raw)
	}

	resp, raw = f.do(t, call{method: http.MethodDelete, path: "/api/evolutions/" + evolutionA1, user: "root", selector: mocks.TenantAID})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("override delete failed: %d %s", resp.StatusCode, raw)
	}
	if f.evolutions.Has(evolutionA1) {
		t.Error("record should be removed")
	}
}

func TestRouter_LoginAndMe(t *testing.T) {
	f := newAPI(t)

	resp, raw := f.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "NURSE-A@example.test", "password": password}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d %s", resp.StatusCode, raw)
	}
	var session handler.SessionResponse
	if err := json.Unmarshal(raw, &session); err != nil {
		t.Fatal(err)
	}
	if session.SessionToken == "" || session.RefreshToken == "" || session.User.TenantID != mocks.TenantAID {
		t.Fatalf("unexpected session: %+v", session)
	}

	resp, raw = f.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "nurse-a@example.test", "password": "wrong"}})
	if resp.StatusCode != http.StatusUnauthorized || errorCode(t, raw) != response.CodeUnauthenticated {
		t.Fatalf("bad password should be 401, got %d %s", resp.StatusCode, raw)
	}

	resp, raw = f.do(t, call{method: http.MethodGet, path: "/api/auth/me", user: "root"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me failed: %d %s", resp.StatusCode, raw)
	}
	var me handler.MeResponse
	if err := json.Unmarshal(raw, &me); err != nil {
		t.Fatal(err)
	}
	if !me.AllTenants || me.User.Role != string(domain.RoleSuperAdmin) {
		t.Errorf("unexpected me: %+v", me)
	}
}

func TestRouter_LogoutForBlockedTenant(t *testing.T) {
	f := newAPI(t)

	resp, raw := f.do(t, call{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "admin-b@example.test", "password": password}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d %s", resp.StatusCode, raw)
	}
	var session handler.SessionResponse
	if err := json.Unmarshal(raw, &session); err != nil {
		t.Fatal(err)
	}
	body := map[string]string{"refresh_token": session.RefreshToken}

	resp, raw = f.do(t, call{method: http.MethodPost, path: "/api/auth/logout", user: "nurse-a", body: body})
	if resp.StatusCode != http.StatusForbidden || errorCode(t, raw) != response.CodeAccessDenied {
		t.Fatalf("revoking another user's credential should be 403, got %d %s", resp.StatusCode, raw)
	}

	resp, raw = f.do(t, call{method: http.MethodPost, path: "/api/auth/logout", user: "admin-b", body: body})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("blocked tenant user should still log out, got %d %s", resp.StatusCode, raw)
	}

	resp, raw = f.do(t, call{method: http.MethodPost, path: "/api/auth/refresh", body: body})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked credential should not refresh, got %d %s", resp.StatusCode, raw)
	}
}

func TestRouter_ExtendTrialHasNoUpperBound(t *testing.T) {
	f := newAPI(t)

	resp, raw := f.do(t, call{method: http.MethodPost, path: "/api/empresas/" + mocks.TenantBID + "/trial/extend", user: "root", body: map[string]int{"days": 400}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.StatusCode, raw)
	}
	tenant, err := f.tenants.FindByID(context.Background(), mocks.TenantBID)
	if err != nil {
		t.Fatal(err)
	}
	want := testNow.Add(-time.Hour).AddDate(0, 0, 400)
	if tenant.Trial.EndsAt == nil || !tenant.Trial.EndsAt.Equal(want) {
		t.Errorf("expected ends_at %v, got %v", want, tenant.Trial.EndsAt)
	}
}
