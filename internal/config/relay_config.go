package config

import "os"

// RelayConfig holds what the outbox relay needs; it never touches keys or Redis.
type RelayConfig struct {
	DatabaseURL    string
	RabbitMQURL    string
	AuditQueueName string
	HealthPort     string
}

func LoadRelayConfig() *RelayConfig {
	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		panic("DB_CONNECTION_STRING environment variable is required")
	}

	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		panic("RABBITMQ_URL environment variable is required")
	}

	return &RelayConfig{
		DatabaseURL:    dbURL,
		RabbitMQURL:    rabbitURL,
		AuditQueueName: getEnv("AUDIT_QUEUE_NAME", "tenant-audit"),
		HealthPort:     getEnv("RELAY_HEALTH_PORT", "8090"),
	}
}
