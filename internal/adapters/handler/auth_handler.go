package handler

import (
	"net/http"
	"time"

	"github.com/prescrimed/tenant-access-service/internal/adapters/middleware"
	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(auth ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: auth}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserView struct {
	ID          string   `json:"id"`
	TenantID    string   `json:"empresa_id"`
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type SessionResponse struct {
	SessionToken     string    `json:"session_token"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	User             UserView  `json:"user"`
}

type MeResponse struct {
	User       UserView `json:"user"`
	EmpresaID  string   `json:"empresa_id,omitempty"`
	AllTenants bool     `json:"all_empresas"`
}

func userView(u *domain.User) UserView {
	p := u.Principal()
	return UserView{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		Permissions: p.Effective().Strings(),
	}
}

func sessionResponse(pair domain.TokenPair, u *domain.User) SessionResponse {
	return SessionResponse{
		SessionToken:     pair.SessionToken,
		SessionExpiresAt: pair.SessionExpiresAt,
		RefreshToken:     pair.RefreshToken,
		User:             userView(u),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	pair, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sessionResponse(pair, user))
}

// Refresh exchanges a refresh credential for a new pair. It needs no session
// credential, so it keeps working after the session has expired.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	pair, user, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sessionResponse(pair, user))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		response.Error(w, domain.ErrUnauthenticated)
		return
	}
	var req RefreshRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := h.authService.Logout(r.Context(), p.UserID, req.RefreshToken); err != nil {
		response.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, scope, err := requestContext(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	me := MeResponse{
		User: UserView{
			ID:          p.UserID,
			TenantID:    p.TenantID,
			Role:        string(p.Role),
			Permissions: p.Effective().Strings(),
		},
		EmpresaID:  scope.TenantID,
		AllTenants: scope.AllTenants,
	}
	if t, ok := middleware.TenantFrom(r.Context()); ok {
		me.EmpresaID = t.ID
	}
	response.JSON(w, http.StatusOK, me)
}
