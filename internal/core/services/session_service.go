package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

// SessionService issues session credentials after password authentication and
// rotates refresh credentials on exchange. A refresh credential can be used once.
type SessionService struct {
	users  ports.UserRepository
	store  ports.RefreshTokenStore
	tokens *TokenIssuer
}

var _ ports.AuthService = (*SessionService)(nil)

func NewSessionService(users ports.UserRepository, store ports.RefreshTokenStore, tokens *TokenIssuer) *SessionService {
	return &SessionService{users: users, store: store, tokens: tokens}
}

func (s *SessionService) Login(ctx context.Context, email, password string) (domain.TokenPair, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.TokenPair{}, nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TokenPair{}, nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
		}
		return domain.TokenPair{}, nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.TokenPair{}, nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	if !user.Active {
		return domain.TokenPair{}, nil, fmt.Errorf("%w: user inactive", domain.ErrPrincipalRevoked)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}
	log.Printf("session: user %s logged in (tenant %s)", user.ID, user.TenantID)
	return pair, user, nil
}

// Refresh exchanges a refresh credential for a new pair. Session credentials are
// rejected here, expired or not, so the exchange never chains into another refresh.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, *domain.User, error) {
	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}

	userID, err := s.store.Consume(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TokenPair{}, nil, fmt.Errorf("%w: refresh credential already used or revoked", domain.ErrUnauthenticated)
		}
		return domain.TokenPair{}, nil, fmt.Errorf("consume refresh credential: %w", err)
	}
	if userID != claims.Subject {
		return domain.TokenPair{}, nil, fmt.Errorf("%w: refresh credential subject mismatch", domain.ErrUnauthenticated)
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TokenPair{}, nil, fmt.Errorf("%w: user no longer exists", domain.ErrPrincipalRevoked)
		}
		return domain.TokenPair{}, nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active || user.TenantID != claims.TenantID {
		return domain.TokenPair{}, nil, fmt.Errorf("%w: user inactive or moved", domain.ErrPrincipalRevoked)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return domain.TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Logout revokes a refresh credential owned by userID.
func (s *SessionService) Logout(ctx context.Context, userID, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, domain.ErrExpired) {
			return nil
		}
		return err
	}
	if claims.Subject != userID {
		return fmt.Errorf("%w: refresh credential belongs to another user", domain.ErrAccessDenied)
	}
	if err := s.store.Revoke(ctx, claims.ID); err != nil {
		return fmt.Errorf("revoke refresh credential: %w", err)
	}
	return nil
}

func (s *SessionService) issuePair(ctx context.Context, user *domain.User) (domain.TokenPair, error) {
	session, sessionClaims, err := s.tokens.Issue(user, TokenTypeSession)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshClaims, err := s.tokens.Issue(user, TokenTypeRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.store.Save(ctx, refreshClaims.ID, user.ID, s.tokens.RefreshTTL()); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh credential: %w", err)
	}
	return domain.TokenPair{
		SessionToken:     session,
		SessionExpiresAt: sessionClaims.ExpiresAt.Time,
		RefreshToken:     refresh,
	}, nil
}
