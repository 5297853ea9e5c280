package mocks

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

// Fixed ids so failures are readable.
const (
	TenantAID = "11111111-1111-4111-8111-111111111111"
	TenantBID = "22222222-2222-4222-8222-222222222222"
	TenantCID = "33333333-3333-4333-8333-333333333333"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

// TestKey returns a process-wide RSA key; generating one per test is slow.
func TestKey() *rsa.PrivateKey {
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// MutableClock is a test clock that can be advanced.
type MutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMutableClock(t time.Time) *MutableClock {
	return &MutableClock{now: t}
}

func (c *MutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *MutableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ActiveTenant builds an active tenant outside any trial.
func ActiveTenant(id, name, code string) *domain.Tenant {
	return &domain.Tenant{
		ID:          id,
		Name:        name,
		DisplayCode: code,
		Active:      true,
		Plan:        domain.PlanBasic,
	}
}

// TrialTenant builds an active tenant whose trial ends at endsAt.
func TrialTenant(id, name, code string, startedAt, endsAt time.Time) *domain.Tenant {
	t := ActiveTenant(id, name, code)
	t.Trial = domain.TrialState{InTrial: true, StartedAt: &startedAt, EndsAt: &endsAt}
	return t
}

// NewUser builds an active user of tenantID holding the given modules.
func NewUser(id, tenantID string, role domain.Role, modules ...domain.Module) *domain.User {
	return &domain.User{
		ID:          id,
		TenantID:    tenantID,
		Email:       id + "@example.test",
		Name:        id,
		Role:        role,
		Permissions: domain.NewPermissionSet(modules...),
		Active:      true,
	}
}
