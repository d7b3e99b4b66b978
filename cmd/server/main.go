// main wires configuration, storage, caching, the audit pipeline, and the
// HTTP router, then runs the server until interrupted. Business logic lives
// in the internal service packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lendgate/internal/activation/batch"
	activationhandler "lendgate/internal/activation/handler"
	activationservice "lendgate/internal/activation/service"
	activationstore "lendgate/internal/activation/store"
	"lendgate/internal/audit"
	documenthandler "lendgate/internal/document/handler"
	"lendgate/internal/document/service"
	documentstore "lendgate/internal/document/store"
	httpapi "lendgate/internal/http"
	"lendgate/internal/platform/config"
	"lendgate/internal/platform/httpserver"
	"lendgate/internal/platform/logger"
	"lendgate/internal/platform/metrics"
	"lendgate/internal/platform/postgres"
	platformredis "lendgate/internal/platform/redis"
	"lendgate/internal/token"
	"lendgate/pkg/cache"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Postgres when a DSN is configured, in-memory otherwise so the
	// service still runs in development without infrastructure.
	var (
		profiles activationservice.ProfileStore
		records  documentstore.RecordStore
		health   func() error
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db, activationstore.Schema, documentstore.Schema); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		profiles = activationstore.NewPostgres(db)
		records = documentstore.NewPostgresRecords(db)
		health = db.Ping
		log.Info("postgres storage configured")
	} else {
		profiles = activationstore.NewInMemory()
		records = documentstore.NewInMemoryRecords()
		log.Warn("no postgres DSN configured, using in-memory storage")
	}

	// Cache. Redis when configured, in-process otherwise.
	var batchCache cache.Cache
	if redisClient, err := platformredis.New(cfg.RedisURL); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		batchCache = cache.NewRedis(redisClient.Client, "lendgate")
		log.Info("redis cache configured")
	} else {
		batchCache = cache.NewInMemory()
	}

	// Audit pipeline. Events flow through a buffered publisher into Kafka
	// when brokers are configured; without brokers they land in memory so
	// Emit never blocks request handling either way.
	publisher := audit.NewPublisher(cfg.AuditBufferSize, audit.WithLogger(log))
	var sink audit.Sink
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(ctx, brokers, cfg.AuditTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("kafka audit sink configured", "topic", cfg.AuditTopic)
	} else {
		sink = audit.NewMemorySink()
		log.Warn("no kafka brokers configured, audit events stay in memory")
	}
	worker := audit.NewWorker(publisher.Inbox(), sink, log)
	go func() {
		if err := worker.Run(ctx); err != nil {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	// Document content backend.
	var backend documentstore.Backend
	if config.DocumentBackend(cfg.DocumentBackend) == config.BackendFile {
		fileContent, err := documentstore.NewFileContent(cfg.DocumentFileRoot)
		if err != nil {
			return fmt.Errorf("open document file root: %w", err)
		}
		backend = documentstore.NewContentBackend(fileContent)
	} else {
		backend = documentstore.NewInlineBackend()
	}

	documents, err := service.New(records, backend,
		service.WithMaxBytes(cfg.DocumentMaxBytes),
		service.WithReadTimeout(cfg.DocumentReadTimeout),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAudit(publisher),
	)
	if err != nil {
		return fmt.Errorf("build document service: %w", err)
	}

	activationSvc, err := activationservice.New(profiles, documents,
		activationservice.WithLogger(log),
		activationservice.WithMetrics(m),
		activationservice.WithAudit(publisher),
	)
	if err != nil {
		return fmt.Errorf("build activation service: %w", err)
	}

	aggregator := batch.New(profiles, documents,
		batch.WithDeadline(cfg.BatchDeadline),
		batch.WithLogger(log),
		batch.WithMetrics(m),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Activation: activationhandler.New(activationSvc, aggregator, log,
			activationhandler.WithBatchCache(batchCache, cfg.BatchCacheTTL),
			activationhandler.WithMetrics(m),
		),
		Documents: documenthandler.New(documents, log,
			documenthandler.WithBatchCache(batchCache),
		),
		Verifier:  token.NewVerifier(cfg.JWTSigningKey),
		Metrics:   m,
		Logger:    log,
		Health:    health,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
