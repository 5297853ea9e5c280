package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

// Tenant mirrors the administration view returned by /api/empresas.
type Tenant struct {
	domain.Tenant
	State       domain.LifecycleState `json:"state"`
	TrialStatus domain.TrialStatus    `json:"trial_status"`
	Blocked     bool                  `json:"blocked"`
}

func tenantPath(id string, suffix string) string {
	return "/api/empresas/" + url.PathEscape(id) + suffix
}

func (c *Client) ListTenants(ctx context.Context) ([]Tenant, error) {
	var out struct {
		Empresas []Tenant `json:"empresas"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/empresas", nil, &out); err != nil {
		return nil, err
	}
	return out.Empresas, nil
}

func (c *Client) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return c.tenantAction(ctx, http.MethodGet, tenantPath(id, ""), nil)
}

func (c *Client) StartTrial(ctx context.Context, id string, days int) (*Tenant, error) {
	return c.tenantAction(ctx, http.MethodPost, tenantPath(id, "/trial/start"), map[string]int{"days": days})
}

func (c *Client) ExtendTrial(ctx context.Context, id string, days int) (*Tenant, error) {
	return c.tenantAction(ctx, http.MethodPost, tenantPath(id, "/trial/extend"), map[string]int{"days": days})
}

func (c *Client) EndTrial(ctx context.Context, id string) (*Tenant, error) {
	return c.tenantAction(ctx, http.MethodPost, tenantPath(id, "/trial/end"), nil)
}

func (c *Client) ConvertTrial(ctx context.Context, id, plan string) (*Tenant, error) {
	return c.tenantAction(ctx, http.MethodPost, tenantPath(id, "/trial/convert"), map[string]string{"plan": plan})
}

func (c *Client) Deactivate(ctx context.Context, id string) (*Tenant, error) {
	return c.tenantAction(ctx, http.MethodPost, tenantPath(id, "/deactivate"), nil)
}

func (c *Client) Reactivate(ctx context.Context, id string) (*Tenant, error) {
	return c.tenantAction(ctx, http.MethodPost, tenantPath(id, "/reactivate"), nil)
}

// DeleteTenant hard-deletes an inactive tenant; confirm must equal its display code.
func (c *Client) DeleteTenant(ctx context.Context, id, confirm string) error {
	return c.Do(ctx, http.MethodDelete, tenantPath(id, ""), map[string]string{"confirm": confirm}, nil)
}

func (c *Client) tenantAction(ctx context.Context, method, path string, in any) (*Tenant, error) {
	var t Tenant
	if err := c.Do(ctx, method, path, in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
