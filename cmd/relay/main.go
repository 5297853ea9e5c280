package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/prescrimed/tenant-access-service/internal/adapters/handler"
	"github.com/prescrimed/tenant-access-service/internal/adapters/messaging"
	"github.com/prescrimed/tenant-access-service/internal/adapters/outbox"
	"github.com/prescrimed/tenant-access-service/internal/config"
)

func main() {
	log.Println("relay: starting outbox relay")

	cfg := config.LoadRelayConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("relay: failed to open database: %v", err)
	}
	defer db.Close()

	publisher, err := messaging.NewAuditPublisher(cfg.RabbitMQURL, cfg.AuditQueueName)
	if err != nil {
		log.Fatalf("relay: failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()
	log.Printf("relay: publishing audit events to queue %s", cfg.AuditQueueName)

	relay := outbox.NewRelay(db, cfg.DatabaseURL, publisher, config.NewCircuitBreaker(config.BreakerRelayPostgres))

	health := handler.NewHealthHandler(
		handler.DependencyCheck{Name: "database", Probe: db.PingContext},
		handler.DependencyCheck{Name: "relay", Probe: func(context.Context) error {
			if !relay.IsReady() {
				return errors.New("relay not ready")
			}
			return nil
		}},
	)

	mux := chi.NewRouter()
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if !relay.IsHealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		health.Health(w, r)
	})
	mux.Get("/health/live", health.Live)
	mux.Get("/health/ready", health.Ready)
	mux.Method(http.MethodGet, "/metrics", promhttp.Handler())

	healthServer := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("relay: health server on :%s", cfg.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := relay.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("relay: stopped with error: %v", err)
	}
	log.Println("relay: shutdown complete")
}
