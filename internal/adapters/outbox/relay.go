package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/adapters/repository"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

const (
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute

	eventProcessTimeout     = 30 * time.Second
	batchProcessTimeout     = 60 * time.Second
	periodicProcessInterval = 90 * time.Second

	healthCheckStaleThreshold = 5 * time.Minute

	maxEventsPerBatch = 100
)

const markProcessed = `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`

// Relay forwards audit events from outbox_events to the message broker. It wakes
// on NOTIFY and also sweeps the table periodically for anything it missed.
type Relay struct {
	db        *sql.DB
	publisher ports.AuditEventPublisher
	dbURL     string
	dbCB      *gobreaker.CircuitBreaker

	mu            sync.RWMutex
	lastProcessed time.Time
	healthy       bool
}

func NewRelay(db *sql.DB, dbURL string, publisher ports.AuditEventPublisher, dbCB *gobreaker.CircuitBreaker) *Relay {
	return &Relay{
		db:            db,
		dbURL:         dbURL,
		publisher:     publisher,
		dbCB:          dbCB,
		lastProcessed: time.Now(),
		healthy:       true,
	}
}

// IsHealthy is the liveness signal. An open breaker is degraded, not dead.
func (r *Relay) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy
}

// IsReady reports whether the relay can currently drain the outbox.
func (r *Relay) IsReady() bool {
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if time.Since(r.lastProcessed) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy
}

func (r *Relay) markProgress(healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthy = healthy
	if healthy {
		r.lastProcessed = time.Now()
	}
}

// Start blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("outbox relay: listener error: %v", err)
		}
	}

	listener := pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer listener.Close()

	if err := listener.Listen(repository.OutboxChannel); err != nil {
		return err
	}
	log.Printf("outbox relay: listening on '%s'", repository.OutboxChannel)

	if _, err := r.ProcessPending(ctx); err != nil {
		log.Printf("outbox relay: error processing startup backlog: %v", err)
	}

	ticker := time.NewTicker(periodicProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("outbox relay: shutting down")
			return ctx.Err()

		case notification := <-listener.Notify:
			if notification == nil {
				log.Println("outbox relay: connection lost, reconnecting")
				r.markProgress(false)
				continue
			}
			if err := r.ProcessEvent(ctx, notification.Extra); err != nil {
				log.Printf("outbox relay: error processing event %s: %v", notification.Extra, err)
				continue
			}
			r.markProgress(true)

		case <-ticker.C:
			go listener.Ping()
			if _, err := r.ProcessPending(ctx); err != nil {
				log.Printf("outbox relay: error in periodic sweep: %v", err)
				continue
			}
			r.markProgress(true)
		}
	}
}

// ProcessEvent publishes a single outbox row. Rows already handled or locked by
// another relay are skipped.
func (r *Relay) ProcessEvent(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var id string
		var payload []byte
		err = tx.QueryRowContext(ctx, `
			SELECT id, payload
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, eventID).Scan(&id, &payload)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if err := r.publish(ctx, id, payload); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, markProcessed, id); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

// ProcessPending drains up to one batch of unprocessed rows in creation order and
// returns how many were marked processed. A publish failure leaves that row for
// the next sweep.
func (r *Relay) ProcessPending(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	res, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, payload
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, maxEventsPerBatch)
		if err != nil {
			return 0, err
		}

		type record struct {
			id      string
			payload []byte
		}
		var records []record
		for rows.Next() {
			var rec record
			if err := rows.Scan(&rec.id, &rec.payload); err != nil {
				rows.Close()
				return 0, err
			}
			records = append(records, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return 0, err
		}

		processed := 0
		for _, rec := range records {
			if err := r.publish(ctx, rec.id, rec.payload); err != nil {
				log.Printf("outbox relay: failed to publish event %s: %v", rec.id, err)
				continue
			}
			if _, err := tx.ExecContext(ctx, markProcessed, rec.id); err != nil {
				return 0, err
			}
			processed++
		}
		return processed, tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// publish decodes and forwards one payload. Undecodable payloads are logged and
// treated as delivered so they do not block the queue forever.
func (r *Relay) publish(ctx context.Context, id string, payload []byte) error {
	var evt domain.AuditEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		log.Printf("outbox relay: invalid payload for event %s: %v", id, err)
		return nil
	}
	if err := r.publisher.PublishAudit(ctx, evt); err != nil {
		return err
	}
	log.Printf("outbox relay: published %s event %s", evt.Type, id)
	return nil
}
