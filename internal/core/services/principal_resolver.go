package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

// PrincipalResolver turns a bearer credential into a Principal.
// Beyond the signature check it reloads the user so deactivation takes effect immediately.
type PrincipalResolver struct {
	tokens *TokenIssuer
	users  ports.UserRepository
}

func NewPrincipalResolver(tokens *TokenIssuer, users ports.UserRepository) *PrincipalResolver {
	return &PrincipalResolver{tokens: tokens, users: users}
}

func (r *PrincipalResolver) Resolve(ctx context.Context, bearer string) (domain.Principal, error) {
	claims, err := r.tokens.Parse(bearer, TokenTypeSession)
	if err != nil {
		return domain.Principal{}, err
	}

	user, err := r.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, fmt.Errorf("%w: user no longer exists", domain.ErrPrincipalRevoked)
		}
		return domain.Principal{}, fmt.Errorf("load principal: %w", err)
	}
	if !user.Active {
		return domain.Principal{}, fmt.Errorf("%w: user inactive", domain.ErrPrincipalRevoked)
	}
	if user.TenantID != claims.TenantID {
		return domain.Principal{}, fmt.Errorf("%w: tenant changed", domain.ErrPrincipalRevoked)
	}

	return user.Principal(), nil
}
