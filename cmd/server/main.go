package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"carinsurance/internal/expiration/lease"
	expmetrics "carinsurance/internal/expiration/metrics"
	"carinsurance/internal/expiration/notifier"
	expservice "carinsurance/internal/expiration/service"
	"carinsurance/internal/expiration/worker"
	"carinsurance/internal/insurance/handler"
	insservice "carinsurance/internal/insurance/service"
	"carinsurance/internal/insurance/store"
	"carinsurance/internal/platform/config"
	"carinsurance/internal/platform/httpserver"
	"carinsurance/internal/platform/kafka"
	"carinsurance/internal/platform/logger"
	"carinsurance/internal/platform/metrics"
	"carinsurance/internal/platform/middleware"
	"carinsurance/internal/platform/postgres"
	platformredis "carinsurance/internal/platform/redis"
	"carinsurance/pkg/platform/circuit"
	"carinsurance/pkg/platform/httputil"
)

// appStore is what both store implementations offer the process.
type appStore interface {
	insservice.Store
	expservice.Store
	expservice.Transactor
	store.Seeder
}

// main wires dependencies and runs the HTTP server alongside the expiration
// monitor until SIGINT or SIGTERM. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "carinsurance: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	for _, w := range cfg.Warnings {
		log.Warn("configuration warning", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, db, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if cfg.Database.Seed {
		seeded, err := store.Seed(ctx, st, time.Now())
		if err != nil {
			return fmt.Errorf("seed data: %w", err)
		}
		log.Info("seed data", "inserted", seeded)
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	expMetrics := expmetrics.New(reg)
	passOpts := []expservice.Option{
		expservice.WithLogger(log),
		expservice.WithMetrics(expMetrics),
		expservice.WithWindow(cfg.Expiration.Window),
	}
	kafkaClient, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		if err := kafka.EnsureTopic(ctx, kafkaClient, cfg.Kafka); err != nil {
			return err
		}
		kn, err := notifier.NewKafka(kafkaClient, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		guarded, err := notifier.NewGuarded(kn, circuit.New("kafka"), log)
		if err != nil {
			return err
		}
		passOpts = append(passOpts, expservice.WithNotifier(guarded))
		log.Info("expiration notifications enabled", "topic", cfg.Kafka.Topic)
	}

	passService, err := expservice.New(st, st, passOpts...)
	if err != nil {
		return err
	}
	monitorOpts := []worker.Option{
		worker.WithInterval(cfg.Expiration.CheckInterval),
		worker.WithPassTimeout(cfg.Expiration.PassTimeout),
		worker.WithLogger(log),
		worker.WithMetrics(expMetrics),
	}
	if redisClient != nil {
		l, err := lease.NewRedisLease(redisClient.Client, cfg.Expiration.LeaseKey, cfg.Expiration.LeaseTTL)
		if err != nil {
			return err
		}
		monitorOpts = append(monitorOpts, worker.WithLocker(l))
	}
	monitor, err := worker.New(passService, monitorOpts...)
	if err != nil {
		return err
	}

	carService, err := insservice.New(st, insservice.WithLogger(log))
	if err != nil {
		return err
	}

	httpMetrics := metrics.New(reg)
	r := chi.NewRouter()
	r.Use(chimw.RequestID, middleware.RequestContext, middleware.AccessLog(log), chimw.Recoverer, httpMetrics.Middleware)
	r.Get("/healthz", healthHandler(db, redisClient))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.New(carService, log).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Expiration.Enabled {
		monitor.Start(gctx)
	} else {
		log.Warn("expiration monitor disabled")
	}
	g.Go(func() error {
		log.Info("starting carinsurance", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		// Stop is a no-op when the monitor was never started.
		return monitor.Stop(shutdownCtx)
	})
	return g.Wait()
}

// openStore returns the Postgres store when a URL is configured, otherwise
// the in-memory store. db is nil for the in-memory store.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (appStore, *sql.DB, error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewInMemory(), nil, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, db, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return store.NewPostgres(db), db, nil
}

func healthHandler(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := map[string]string{}
		healthy := true
		if db != nil {
			checks["postgres"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			}
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, map[string]any{"healthy": healthy, "checks": checks})
	}
}
