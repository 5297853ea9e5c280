package services

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

const (
	TokenTypeSession = "access"
	TokenTypeRefresh = "refresh"

	defaultIssuer     = "tenant-access-service"
	defaultSessionTTL = 8 * time.Hour
	defaultRefreshTTL = 14 * 24 * time.Hour
)

// SessionClaims is the payload of both session and refresh credentials.
type SessionClaims struct {
	TenantID  string `json:"tid"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies RS256 credentials.
type TokenIssuer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	sessionTTL time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type TokenOption func(*TokenIssuer)

func WithIssuer(issuer string) TokenOption {
	return func(i *TokenIssuer) {
		if s := strings.TrimSpace(issuer); s != "" {
			i.issuer = s
		}
	}
}

func WithSessionTTL(ttl time.Duration) TokenOption {
	return func(i *TokenIssuer) {
		if ttl > 0 {
			i.sessionTTL = ttl
		}
	}
}

func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(i *TokenIssuer) {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(i *TokenIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewTokenIssuer(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, opts ...TokenOption) *TokenIssuer {
	i := &TokenIssuer{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     defaultIssuer,
		sessionTTL: defaultSessionTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// Issue signs a credential of the given type for u.
func (i *TokenIssuer) Issue(u *domain.User, tokenType string) (string, *SessionClaims, error) {
	if i.privateKey == nil {
		return "", nil, errors.New("token issuer has no signing key")
	}
	ttl := i.sessionTTL
	if tokenType == TokenTypeRefresh {
		ttl = i.refreshTTL
	}
	now := i.now().UTC()
	claims := &SessionClaims{
		TenantID:  u.TenantID,
		Role:      string(u.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.privateKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer, expiry and credential type.
// A valid but expired credential yields domain.ErrExpired; anything else domain.ErrUnauthenticated.
func (i *TokenIssuer) Parse(token, tokenType string) (*SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing credential", domain.ErrUnauthenticated)
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %s credential", domain.ErrExpired, tokenType)
		}
		return nil, fmt.Errorf("%w: invalid credential", domain.ErrUnauthenticated)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s credential", domain.ErrUnauthenticated, tokenType)
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.TenantID) == "" {
		return nil, fmt.Errorf("%w: credential missing subject", domain.ErrUnauthenticated)
	}
	return claims, nil
}
