package domain

import "time"

type User struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenant_id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Role         Role          `json:"role"`
	Permissions  PermissionSet `json:"-"`
	Active       bool          `json:"active"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Principal projects the user onto the per-request identity.
func (u *User) Principal() Principal {
	return Principal{
		UserID:      u.ID,
		TenantID:    u.TenantID,
		Role:        u.Role,
		Permissions: u.Permissions,
	}
}

type Patient struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}
