package config

import (
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker names shared between the API and the relay.
const (
	BreakerPostgres      = "PostgreSQL"
	BreakerRelayPostgres = "Relay-PostgreSQL"
	BreakerRedis         = "Redis-Sessions"
	BreakerRabbitMQ      = "RabbitMQ-Audit"
)

// NewCircuitBreaker creates a breaker that opens after three consecutive failures.
// Timeouts line up with the 5s readiness probe for Redis and give the databases a little longer.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	var timeout time.Duration
	switch name {
	case BreakerRedis:
		timeout = 5 * time.Second
	case BreakerPostgres, BreakerRelayPostgres:
		timeout = 10 * time.Second
	default:
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CRITICAL] Circuit Breaker %s: %s -> %s", name, from, to)
		},
	})
}
