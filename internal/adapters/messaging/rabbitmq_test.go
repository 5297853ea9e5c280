package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

type fakeChannel struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
	err       error
	deadline  bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestPublishAudit(t *testing.T) {
	ch := &fakeChannel{}
	p := NewAuditPublisherWithChannel(ch, "tenant-audit", gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}))

	evt := domain.AuditEvent{
		ID:         "evt-1",
		Type:       domain.AuditTenantLifecycle,
		TenantID:   "tenant-1",
		ActorID:    "admin-1",
		ActorRole:  domain.RoleSuperAdmin,
		OccurredAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Details:    map[string]string{"action": "trial.extend"},
	}
	if err := p.PublishAudit(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ch.published) != 1 || ch.keys[0] != "tenant-audit" {
		t.Fatalf("expected one message on tenant-audit, got %v", ch.keys)
	}
	msg := ch.published[0]
	if msg.DeliveryMode != amqp.Persistent {
		t.Error("audit messages must be persistent")
	}
	if msg.MessageId != "evt-1" || msg.Type != domain.AuditTenantLifecycle {
		t.Errorf("unexpected headers: id=%q type=%q", msg.MessageId, msg.Type)
	}
	if !ch.deadline {
		t.Error("publish should run with a deadline")
	}

	var decoded domain.AuditEvent
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded.Details["action"] != "trial.extend" {
		t.Errorf("details lost in transit: %v", decoded.Details)
	}
}

func TestPublishAudit_Failure(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := NewAuditPublisherWithChannel(ch, "tenant-audit", gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}))

	err := p.PublishAudit(context.Background(), domain.AuditEvent{ID: "evt-2"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ch.err) {
		t.Errorf("expected wrapped channel error, got %v", err)
	}
}
