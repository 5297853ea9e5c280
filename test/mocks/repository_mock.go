// Package mocks provides in-memory implementations of the port interfaces.
// Services depend on ports, so tests inject these instead of Postgres and Redis.
package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

// MockUserRepository implements ports.UserRepository for testing.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Call tracking for verification
	FindByIDCalls    []string
	FindByEmailCalls []string

	// Error injection
	FindByIDError    error
	FindByEmailError error
}

var _ ports.UserRepository = (*MockUserRepository)(nil)

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// SeedUser adds a user for test setup.
func (m *MockUserRepository) SeedUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[u.ID] = &u
}

// SetActive flips a stored user's active flag, simulating an admin deactivation.
func (m *MockUserRepository) SetActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Active = active
	}
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindByIDCalls = append(m.FindByIDCalls, id)
	if m.FindByIDError != nil {
		return nil, m.FindByIDError
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindByEmailCalls = append(m.FindByEmailCalls, email)
	if m.FindByEmailError != nil {
		return nil, m.FindByEmailError
	}
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// removeTenant drops every user of tenantID, mirroring ON DELETE CASCADE.
func (m *MockUserRepository) removeTenant(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.TenantID == tenantID {
			delete(m.users, id)
		}
	}
}

// Count returns the number of stored users of tenantID.
func (m *MockUserRepository) Count(tenantID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n
}

// MockTenantRepository implements ports.TenantRepository for testing.
// Mutate and Delete hold the mock's lock for the whole read-modify-write, like a row lock.
type MockTenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant

	// Cascade targets for Delete; nil ones are skipped.
	Users      *MockUserRepository
	Patients   *MockPatientRepository
	Evolutions *MockEvolutionRepository

	// Audit events committed together with a mutation
	AuditEvents []domain.AuditEvent

	FindByIDCalls []string
	MutateCalls   []string
	DeleteCalls   []string

	FindByIDError error
	ListError     error
	MutateError   error
	DeleteError   error
}

var _ ports.TenantRepository = (*MockTenantRepository)(nil)

func NewMockTenantRepository() *MockTenantRepository {
	return &MockTenantRepository{tenants: make(map[string]*domain.Tenant)}
}

func (m *MockTenantRepository) SeedTenant(t *domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tenants[cp.ID] = &cp
}

// Get returns a copy of the stored tenant for assertions.
func (m *MockTenantRepository) Get(id string) (domain.Tenant, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, false
	}
	return *t, true
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindByIDCalls = append(m.FindByIDCalls, id)
	if m.FindByIDError != nil {
		return nil, m.FindByIDError
	}
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]domain.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockTenantRepository) Mutate(ctx context.Context, id string, fn ports.TenantMutation) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MutateCalls = append(m.MutateCalls, id)
	if m.MutateError != nil {
		return nil, m.MutateError
	}
	stored, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	working := *stored
	evt, err := fn(&working)
	if err != nil {
		return nil, err
	}
	m.tenants[id] = &working
	m.AuditEvents = append(m.AuditEvents, evt)

	cp := working
	return &cp, nil
}

func (m *MockTenantRepository) Delete(ctx context.Context, id string, fn ports.TenantMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, id)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	stored, ok := m.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}

	working := *stored
	evt, err := fn(&working)
	if err != nil {
		return err
	}
	delete(m.tenants, id)
	m.AuditEvents = append(m.AuditEvents, evt)

	if m.Users != nil {
		m.Users.removeTenant(id)
	}
	if m.Patients != nil {
		m.Patients.removeTenant(id)
	}
	if m.Evolutions != nil {
		m.Evolutions.removeTenant(id)
	}
	return nil
}

// Events returns a copy of the committed audit events.
func (m *MockTenantRepository) Events() []domain.AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AuditEvent, len(m.AuditEvents))
	copy(out, m.AuditEvents)
	return out
}

// MockPatientRepository implements ports.PatientRepository for testing.
type MockPatientRepository struct {
	mu       sync.RWMutex
	patients map[string]*domain.Patient

	ListCalls []string

	FindByIDError error
	ListError     error
}

var _ ports.PatientRepository = (*MockPatientRepository)(nil)

func NewMockPatientRepository() *MockPatientRepository {
	return &MockPatientRepository{patients: make(map[string]*domain.Patient)}
}

func (m *MockPatientRepository) SeedPatient(p *domain.Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.patients[cp.ID] = &cp
}

func (m *MockPatientRepository) FindByID(ctx context.Context, id string) (*domain.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FindByIDError != nil {
		return nil, m.FindByIDError
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPatientRepository) List(ctx context.Context, tenantID string) ([]domain.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls = append(m.ListCalls, tenantID)
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]domain.Patient, 0)
	for _, p := range m.patients {
		if tenantID == "" || p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockPatientRepository) removeTenant(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.patients {
		if p.TenantID == tenantID {
			delete(m.patients, id)
		}
	}
}

// MockEvolutionRepository implements ports.EvolutionRepository for testing.
type MockEvolutionRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.EvolutionRecord

	AuditEvents   []domain.AuditEvent
	CreateCalls   []domain.EvolutionRecord
	DeleteCalls   []string
	ListFilters   []domain.EvolutionFilter
	CreateError   error
	DeleteError   error
	ListError     error
	FindByIDError error
}

var _ ports.EvolutionRepository = (*MockEvolutionRepository)(nil)

func NewMockEvolutionRepository() *MockEvolutionRepository {
	return &MockEvolutionRepository{records: make(map[string]*domain.EvolutionRecord)}
}

func (m *MockEvolutionRepository) SeedRecord(rec *domain.EvolutionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[cp.ID] = &cp
}

func (m *MockEvolutionRepository) Create(ctx context.Context, rec domain.EvolutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, rec)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.records[rec.ID] = &rec
	return nil
}

func (m *MockEvolutionRepository) FindByID(ctx context.Context, id, tenantID string) (*domain.EvolutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FindByIDError != nil {
		return nil, m.FindByIDError
	}
	rec, ok := m.records[id]
	if !ok || (tenantID != "" && rec.TenantID != tenantID) {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockEvolutionRepository) List(ctx context.Context, filter domain.EvolutionFilter) ([]domain.EvolutionRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListFilters = append(m.ListFilters, filter)
	if m.ListError != nil {
		return nil, 0, m.ListError
	}

	matched := make([]domain.EvolutionRecord, 0)
	for _, rec := range m.records {
		if filter.TenantID != "" && rec.TenantID != filter.TenantID {
			continue
		}
		if filter.PatientID != "" && rec.PatientID != filter.PatientID {
			continue
		}
		if filter.Type != "" && rec.Body.Type != filter.Type {
			continue
		}
		if filter.Alert != nil && rec.Alert != *filter.Alert {
			continue
		}
		matched = append(matched, *rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func (m *MockEvolutionRepository) Delete(ctx context.Context, id, tenantID string, evt domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, id)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	rec, ok := m.records[id]
	if !ok || rec.TenantID != tenantID {
		return domain.ErrNotFound
	}
	delete(m.records, id)
	m.AuditEvents = append(m.AuditEvents, evt)
	return nil
}

// Has reports whether the record is still stored.
func (m *MockEvolutionRepository) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok
}

func (m *MockEvolutionRepository) removeTenant(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if rec.TenantID == tenantID {
			delete(m.records, id)
		}
	}
}
