package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sylo/internal/agentconfig"
	"sylo/internal/audit"
	"sylo/internal/broker"
	"sylo/internal/command"
	"sylo/internal/connection"
	"sylo/internal/connector"
	"sylo/internal/connector/asana"
	"sylo/internal/connector/gmail"
	"sylo/internal/connector/xero"
	"sylo/internal/platform/config"
	"sylo/internal/platform/httpserver"
	"sylo/internal/platform/logger"
	"sylo/internal/platform/metrics"
	platformmw "sylo/internal/platform/middleware"
	"sylo/internal/platform/postgres"
	platformredis "sylo/internal/platform/redis"
	"sylo/internal/projectcontext"
	"sylo/internal/ratelimit"
	ratelimitstore "sylo/internal/ratelimit/store"
	"sylo/internal/session"
	httptransport "sylo/internal/transport/http"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// Persistence falls back to in-memory stores when no database is
	// configured, so the service runs standalone in development.
	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	var (
		auditStore audit.Store
		connStore  connection.Store
	)
	if db != nil {
		defer db.Close()
		auditStore = audit.NewPostgresStore(db)
		connStore = connection.NewPostgres(db)
		log.Info("using postgres storage")
	} else {
		auditStore = audit.NewMemoryStore()
		connStore = connection.NewMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	var limitStore ratelimit.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limitStore = ratelimitstore.NewRedisStore(redisClient.Client)
		log.Info("using redis rate limiting")
	} else {
		limitStore = ratelimitstore.NewMemoryStore()
		log.Warn("REDIS_URL not set, rate limits are per-process only")
	}
	limiter, err := ratelimit.New(limitStore)
	if err != nil {
		log.Error("failed to build rate limiter", "error", err)
		os.Exit(1)
	}

	brokerClient := broker.NewClient(cfg.Broker)
	gmailSvc := gmail.New(brokerClient)
	asanaSvc := asana.New(brokerClient)
	xeroSvc := xero.New(brokerClient)

	dispatcher := command.NewDispatcher(log, []connector.Executor{gmailSvc, asanaSvc, xeroSvc},
		command.WithMetrics(m))
	auditSvc := audit.NewService(auditStore, log, audit.WithMetrics(m))
	compiler := projectcontext.NewCompiler(connStore, gmailSvc, asanaSvc, xeroSvc, log,
		projectcontext.WithMetrics(m))
	configGen := agentconfig.NewGenerator(connStore, cfg.PublicBaseURL)

	var sessions platformmw.JWTValidator = session.NewValidator(cfg.SessionJWTSecret)

	var health []httptransport.HealthCheck
	if db != nil {
		health = append(health, httptransport.HealthCheck{
			Name:  "postgres",
			Check: db.PingContext,
		})
	}
	if redisClient != nil {
		health = append(health, httptransport.HealthCheck{
			Name:  "redis",
			Check: redisClient.Health,
		})
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:      log,
		Config:      cfg,
		Dispatcher:  dispatcher,
		Audit:       auditSvc,
		Compiler:    compiler,
		Connections: connStore,
		ConfigGen:   configGen,
		Limiter:     limiter,
		Sessions:    sessions,
		Metrics:     m,
		Health:      health,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
