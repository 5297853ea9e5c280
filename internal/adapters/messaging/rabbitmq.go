package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/prescrimed/tenant-access-service/internal/config"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

const publishTimeout = 5 * time.Second

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AuditPublisher delivers audit events to a durable RabbitMQ queue.
type AuditPublisher struct {
	conn      *amqp.Connection
	ch        Channel
	queueName string
	cb        *gobreaker.CircuitBreaker
}

var _ ports.AuditEventPublisher = (*AuditPublisher)(nil)

func NewAuditPublisher(amqpURL, queueName string) (*AuditPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare %s: %w", queueName, err)
	}

	p := NewAuditPublisherWithChannel(ch, queueName, config.NewCircuitBreaker(config.BreakerRabbitMQ))
	p.conn = conn
	return p, nil
}

// NewAuditPublisherWithChannel wraps an already declared channel.
func NewAuditPublisherWithChannel(ch Channel, queueName string, cb *gobreaker.CircuitBreaker) *AuditPublisher {
	return &AuditPublisher{ch: ch, queueName: queueName, cb: cb}
}

func (p *AuditPublisher) PublishAudit(ctx context.Context, evt domain.AuditEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishTimeout)
		defer cancel()
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.ch.PublishWithContext(ctx,
			"",
			p.queueName,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    evt.ID,
				Type:         evt.Type,
				Timestamp:    evt.OccurredAt,
				Body:         body,
			},
		)
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", evt.ID, err)
	}
	return nil
}

func (p *AuditPublisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
