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

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/prescrimed/tenant-access-service/internal/adapters/handler"
	"github.com/prescrimed/tenant-access-service/internal/adapters/middleware"
	"github.com/prescrimed/tenant-access-service/internal/adapters/repository"
	"github.com/prescrimed/tenant-access-service/internal/adapters/tokenstore"
	"github.com/prescrimed/tenant-access-service/internal/config"
	"github.com/prescrimed/tenant-access-service/internal/core/services"
	"github.com/prescrimed/tenant-access-service/internal/observability/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to initialise tracing: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	log.Println("api: connected to Redis")

	pgBreaker := config.NewCircuitBreaker(config.BreakerPostgres)
	users := repository.NewUserRepository(db, pgBreaker)
	tenants := repository.NewTenantRepository(db, pgBreaker)
	patients := repository.NewPatientRepository(db, pgBreaker)
	evolutions := repository.NewEvolutionRepository(db, pgBreaker)
	refreshStore := tokenstore.NewRedisStore(redisClient, config.NewCircuitBreaker(config.BreakerRedis))

	issuer := services.NewTokenIssuer(cfg.JWTPrivateKey, cfg.JWTPublicKey,
		services.WithIssuer(cfg.TokenIssuer),
		services.WithSessionTTL(cfg.SessionTTL),
		services.WithRefreshTTL(cfg.RefreshTTL),
	)
	evaluator := services.NewPermissionEvaluator()

	router := handler.NewRouter(handler.Routes{
		Auth: middleware.NewAuthMiddleware(
			services.NewPrincipalResolver(issuer, users),
			services.NewTenantResolver(tenants, time.Now),
		),
		Evaluator:   evaluator,
		RateLimiter: middleware.NewRateLimiter(cfg.AuthRatePerMinute),
		CORSOrigins: cfg.CORSAllowedOrigins,
		Sessions:    handler.NewAuthHandler(services.NewSessionService(users, refreshStore, issuer)),
		Patients:    handler.NewPatientHandler(services.NewPatientService(patients, evaluator)),
		Evolutions:  handler.NewEvolutionHandler(services.NewEvolutionService(evolutions, patients, evaluator, time.Now)),
		Tenants:     handler.NewTenantHandler(services.NewLifecycleService(tenants, evaluator, time.Now), time.Now),
		Health: handler.NewHealthHandler(
			handler.DependencyCheck{Name: "database", Probe: db.PingContext},
			handler.DependencyCheck{Name: "redis", Probe: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("api: listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("api: error during shutdown: %v", err)
		}
		return shutdownTracing(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("api: %v", err)
	}
	log.Println("api: shutdown complete")
}
