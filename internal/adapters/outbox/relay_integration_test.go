//go:build integration

// Integration tests against a real PostgreSQL and RabbitMQ.
//
// Run with:
//
//	TEST_DB_CONNECTION_STRING=postgres://... TEST_RABBITMQ_URL=amqp://... \
//	  go test -tags=integration ./internal/adapters/outbox/...
package outbox_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/prescrimed/tenant-access-service/internal/adapters/messaging"
	"github.com/prescrimed/tenant-access-service/internal/adapters/outbox"
	"github.com/prescrimed/tenant-access-service/internal/config"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

const testQueue = "test_audit_events"

var (
	testDB    *sql.DB
	testDBURL string
	rabbitURL string
)

func TestMain(m *testing.M) {
	testDBURL = os.Getenv("TEST_DB_CONNECTION_STRING")
	rabbitURL = os.Getenv("TEST_RABBITMQ_URL")
	if testDBURL == "" || rabbitURL == "" {
		fmt.Println("Skipping relay integration tests: TEST_DB_CONNECTION_STRING or TEST_RABBITMQ_URL not set")
		os.Exit(m.Run())
	}

	var err error
	testDB, err = sql.Open("postgres", testDBURL)
	if err != nil {
		fmt.Printf("open test database: %v\n", err)
		os.Exit(1)
	}
	schema, err := os.ReadFile("../../../migrations/001_init.sql")
	if err != nil {
		fmt.Printf("read schema: %v\n", err)
		os.Exit(1)
	}
	if _, err := testDB.Exec(string(schema)); err != nil {
		fmt.Printf("apply schema: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	_, _ = testDB.Exec("DELETE FROM outbox_events")
	testDB.Close()
	os.Exit(code)
}

func requireInfra(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("integration tests require PostgreSQL and RabbitMQ")
	}
}

func insertEvent(t *testing.T, evt domain.AuditEvent) {
	t.Helper()
	payload, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	tx, err := testDB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(`INSERT INTO outbox_events (id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`,
		evt.ID, evt.Type, payload, evt.OccurredAt); err != nil {
		tx.Rollback()
		t.Fatalf("insert outbox event: %v", err)
	}
	if _, err := tx.Exec(`SELECT pg_notify('outbox_channel', $1)`, evt.ID); err != nil {
		tx.Rollback()
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func processedAt(t *testing.T, id string) sql.NullTime {
	t.Helper()
	var at sql.NullTime
	if err := testDB.QueryRow(`SELECT processed_at FROM outbox_events WHERE id = $1`, id).Scan(&at); err != nil {
		t.Fatalf("query event: %v", err)
	}
	return at
}

func newEvent() domain.AuditEvent {
	return domain.AuditEvent{
		ID:           uuid.NewString(),
		Type:         domain.AuditEvolutionDeleteOverride,
		TenantID:     uuid.NewString(),
		ActorID:      uuid.NewString(),
		ActorRole:    domain.RoleSuperAdmin,
		ResourceType: "evolution",
		ResourceID:   uuid.NewString(),
		OccurredAt:   time.Now().UTC(),
	}
}

func TestIntegration_RelayPublishesNotifiedEvent(t *testing.T) {
	requireInfra(t)
	publisher, err := messaging.NewAuditPublisher(rabbitURL, testQueue)
	if err != nil {
		t.Fatalf("connect rabbitmq: %v", err)
	}
	defer publisher.Close()

	relay := outbox.NewRelay(testDB, testDBURL, publisher, config.NewCircuitBreaker(config.BreakerRelayPostgres))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = relay.Start(ctx) }()
	time.Sleep(200 * time.Millisecond)

	evt := newEvent()
	insertEvent(t, evt)

	deadline := time.Now().Add(5 * time.Second)
	for !processedAt(t, evt.ID).Valid {
		if time.Now().After(deadline) {
			t.Fatal("event was not marked processed")
		}
		time.Sleep(100 * time.Millisecond)
	}

	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	found := false
	for i := 0; i < 50 && !found; i++ {
		msg, ok, err := ch.Get(testQueue, true)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		found = msg.MessageId == evt.ID
	}
	if !found {
		t.Errorf("audit event %s not found on %s", evt.ID, testQueue)
	}
}

func TestIntegration_ProcessPendingCatchesUp(t *testing.T) {
	requireInfra(t)
	publisher, err := messaging.NewAuditPublisher(rabbitURL, testQueue)
	if err != nil {
		t.Fatalf("connect rabbitmq: %v", err)
	}
	defer publisher.Close()

	first, second := newEvent(), newEvent()
	insertEvent(t, first)
	insertEvent(t, second)

	relay := outbox.NewRelay(testDB, testDBURL, publisher, config.NewCircuitBreaker(config.BreakerRelayPostgres))
	n, err := relay.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if n < 2 {
		t.Errorf("expected at least 2 events processed, got %d", n)
	}
	for _, id := range []string{first.ID, second.ID} {
		if !processedAt(t, id).Valid {
			t.Errorf("event %s still pending", id)
		}
	}
	if !relay.IsReady() {
		t.Error("relay should be ready after a successful batch")
	}
}
