package services_test

import (
	"testing"
	"time"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/services"
	"github.com/prescrimed/tenant-access-service/test/mocks"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newIssuer(t *testing.T, now func() time.Time) *services.TokenIssuer {
	t.Helper()
	key := mocks.TestKey()
	return services.NewTokenIssuer(key, &key.PublicKey,
		services.WithClock(now),
		services.WithSessionTTL(15*time.Minute),
		services.WithRefreshTTL(24*time.Hour),
	)
}

func principal(u *domain.User) domain.Principal {
	return u.Principal()
}

func superadmin() domain.Principal {
	return domain.Principal{UserID: "root", TenantID: mocks.TenantCID, Role: domain.RoleSuperAdmin}
}
