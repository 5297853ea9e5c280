package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

// MockAuditPublisher implements ports.AuditEventPublisher so the outbox relay
// can be tested without RabbitMQ.
type MockAuditPublisher struct {
	mu sync.RWMutex

	PublishedEvents  []domain.AuditEvent
	PublishError     error
	PublishCallCount int
}

var _ ports.AuditEventPublisher = (*MockAuditPublisher)(nil)

func NewMockAuditPublisher() *MockAuditPublisher {
	return &MockAuditPublisher{PublishedEvents: make([]domain.AuditEvent, 0)}
}

func (m *MockAuditPublisher) PublishAudit(ctx context.Context, evt domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCallCount++
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, evt)
	return nil
}

// GetPublishedEvents returns a copy of everything published so far.
func (m *MockAuditPublisher) GetPublishedEvents() []domain.AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]domain.AuditEvent, len(m.PublishedEvents))
	copy(events, m.PublishedEvents)
	return events
}

func (m *MockAuditPublisher) GetPublishCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PublishCallCount
}

// MockRefreshTokenStore implements ports.RefreshTokenStore in memory.
type MockRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string

	SaveCalls    []string
	ConsumeCalls []string
	RevokeCalls  []string

	SaveError    error
	ConsumeError error
}

var _ ports.RefreshTokenStore = (*MockRefreshTokenStore)(nil)

func NewMockRefreshTokenStore() *MockRefreshTokenStore {
	return &MockRefreshTokenStore{tokens: make(map[string]string)}
}

func (m *MockRefreshTokenStore) Save(ctx context.Context, tokenID, userID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, tokenID)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.tokens[tokenID] = userID
	return nil
}

func (m *MockRefreshTokenStore) Consume(ctx context.Context, tokenID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls = append(m.ConsumeCalls, tokenID)
	if m.ConsumeError != nil {
		return "", m.ConsumeError
	}
	userID, ok := m.tokens[tokenID]
	if !ok {
		return "", domain.ErrNotFound
	}
	delete(m.tokens, tokenID)
	return userID, nil
}

func (m *MockRefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RevokeCalls = append(m.RevokeCalls, tokenID)
	delete(m.tokens, tokenID)
	return nil
}

// Len returns how many refresh credentials are still redeemable.
func (m *MockRefreshTokenStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
