package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

// OutboxChannel is the NOTIFY channel the relay listens on.
const OutboxChannel = "outbox_channel"

// store is shared by every Postgres repository: one pool, one breaker.
type store struct {
	db *sql.DB
	cb *gobreaker.CircuitBreaker
}

// run executes fn through the breaker. Domain outcomes such as not-found or a
// refused transition are returned to the caller without counting as failures.
func (s store) run(fn func() error) error {
	var outcome error
	_, err := s.cb.Execute(func() (interface{}, error) {
		err := fn()
		if isDomainError(err) {
			outcome = err
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return outcome
}

// inTx runs fn inside a transaction that is committed only when fn succeeds.
func (s store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.run(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func isDomainError(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range []error{
		domain.ErrNotFound,
		domain.ErrInvalidLifecycleTransition,
		domain.ErrInvalidInput,
		domain.ErrAccessDenied,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// appendOutbox records evt in outbox_events and signals the relay. The NOTIFY is
// delivered only if the surrounding transaction commits.
func appendOutbox(ctx context.Context, tx *sql.Tx, evt domain.AuditEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`,
		evt.ID, evt.Type, payload, evt.OccurredAt,
	); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, OutboxChannel, evt.ID); err != nil {
		return fmt.Errorf("notify outbox: %w", err)
	}
	return nil
}
