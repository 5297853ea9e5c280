package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prescrimed/tenant-access-service/internal/adapters/middleware"
	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

// TenantHandler serves the superadmin company administration routes.
type TenantHandler struct {
	lifecycle ports.LifecycleService
	now       func() time.Time
}

func NewTenantHandler(lifecycle ports.LifecycleService, now func() time.Time) *TenantHandler {
	if now == nil {
		now = time.Now
	}
	return &TenantHandler{lifecycle: lifecycle, now: now}
}

type TrialDaysRequest struct {
	Days int `json:"days"`
}

type ConvertRequest struct {
	Plan string `json:"plan" validate:"required,oneof=basic pro enterprise"`
}

type DeleteTenantRequest struct {
	Confirm string `json:"confirm" validate:"required"`
}

// TenantView is a tenant plus its state derived at response time.
type TenantView struct {
	domain.Tenant
	State       domain.LifecycleState `json:"state"`
	TrialStatus domain.TrialStatus    `json:"trial_status"`
	Blocked     bool                  `json:"blocked"`
}

type TenantListResponse struct {
	Empresas []TenantView `json:"empresas"`
}

func (h *TenantHandler) view(t *domain.Tenant) TenantView {
	now := h.now()
	return TenantView{
		Tenant:      *t,
		State:       t.State(now),
		TrialStatus: domain.DeriveTrialState(t.Trial, now),
		Blocked:     t.CheckAccess(now) != nil,
	}
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.lifecycle.List(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	views := make([]TenantView, 0, len(tenants))
	for i := range tenants {
		views = append(views, h.view(&tenants[i]))
	}
	response.JSON(w, http.StatusOK, TenantListResponse{Empresas: views})
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}
	t, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.view(t))
}

func (h *TenantHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	h.withDays(w, r, h.lifecycle.StartTrial)
}

func (h *TenantHandler) ExtendTrial(w http.ResponseWriter, r *http.Request) {
	h.withDays(w, r, h.lifecycle.ExtendTrial)
}

func (h *TenantHandler) EndTrial(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.lifecycle.EndTrial)
}

func (h *TenantHandler) ConvertTrial(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req ConvertRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	plan, err := domain.ParsePlan(req.Plan)
	if err != nil {
		response.Error(w, err)
		return
	}
	t, err := h.lifecycle.ConvertTrial(r.Context(), actor, id, plan)
	h.respond(w, t, err)
}

func (h *TenantHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.lifecycle.Deactivate)
}

func (h *TenantHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.lifecycle.Reactivate)
}

// Delete permanently removes an inactive tenant. The body must repeat the
// tenant's display code.
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req DeleteTenantRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.lifecycle.HardDelete(r.Context(), actor, id, req.Confirm); err != nil {
		response.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type daysAction func(ctx context.Context, actor domain.Principal, tenantID string, days int) (*domain.Tenant, error)

func (h *TenantHandler) withDays(w http.ResponseWriter, r *http.Request, action daysAction) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req TrialDaysRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	t, err := action(r.Context(), actor, id, req.Days)
	h.respond(w, t, err)
}

type simpleAction func(ctx context.Context, actor domain.Principal, tenantID string) (*domain.Tenant, error)

func (h *TenantHandler) simple(w http.ResponseWriter, r *http.Request, action simpleAction) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	t, err := action(r.Context(), actor, id)
	h.respond(w, t, err)
}

func (h *TenantHandler) target(w http.ResponseWriter, r *http.Request) (domain.Principal, string, bool) {
	actor, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, domain.ErrUnauthenticated)
		return domain.Principal{}, "", false
	}
	id, ok := tenantID(w, r)
	return actor, id, ok
}

func (h *TenantHandler) respond(w http.ResponseWriter, t *domain.Tenant, err error) {
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.view(t))
}

func tenantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		response.Error(w, domain.ErrTenantNotFound)
		return "", false
	}
	return id, true
}
