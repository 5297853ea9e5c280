package domain

import "time"

const (
	AuditTenantLifecycle         = "tenant.lifecycle"
	AuditTenantDeleted           = "tenant.deleted"
	AuditEvolutionDeleteOverride = "evolution.deleted_override"
)

// AuditEvent is appended to the outbox in the same transaction as the change it records.
type AuditEvent struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	TenantID     string            `json:"tenant_id"`
	ActorID      string            `json:"actor_id"`
	ActorRole    Role              `json:"actor_role"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Details      map[string]string `json:"details,omitempty"`
}

// TokenPair is what a successful login or refresh exchange returns.
type TokenPair struct {
	SessionToken     string    `json:"session_token"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
}
