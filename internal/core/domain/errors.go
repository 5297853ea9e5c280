package domain

import "errors"

// Error kinds surfaced by the authorization and lifecycle core.
// Callers classify with errors.Is; messages are wrapped with context via fmt.Errorf("%w: ...").
var (
	ErrUnauthenticated            = errors.New("unauthenticated")
	ErrExpired                    = errors.New("credential expired")
	ErrPrincipalRevoked           = errors.New("principal revoked")
	ErrTenantNotFound             = errors.New("tenant not found")
	ErrTenantMismatch             = errors.New("tenant mismatch")
	ErrTenantBlocked              = errors.New("tenant blocked")
	ErrTenantContextRequired      = errors.New("tenant context required")
	ErrAccessDenied               = errors.New("access denied")
	ErrHistoryImmutable           = errors.New("history is immutable")
	ErrInvalidLifecycleTransition = errors.New("invalid lifecycle transition")
	ErrNotFound                   = errors.New("not found")
	ErrInvalidInput               = errors.New("invalid input")
)
