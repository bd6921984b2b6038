package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/ferretec/internal/config"
	"github.com/dejobratic/ferretec/internal/events"
	idemmemory "github.com/dejobratic/ferretec/internal/idempotency/memory"
	"github.com/dejobratic/ferretec/internal/persistence"
	"github.com/dejobratic/ferretec/internal/store/adapters"
	"github.com/dejobratic/ferretec/internal/store/adapters/filestore"
	httpadapter "github.com/dejobratic/ferretec/internal/store/adapters/http"
	"github.com/dejobratic/ferretec/internal/store/adapters/memory"
	"github.com/dejobratic/ferretec/internal/store/app"
	storemetrics "github.com/dejobratic/ferretec/internal/store/metrics"
	"github.com/dejobratic/ferretec/internal/store/ports"
	"github.com/dejobratic/ferretec/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dejobratic/ferretec"

func main() {
	if err := run(); err != nil {
		slog.Error("ferretec api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stdout, telemetry.ParseLevel(cfg.Telemetry.LogLevel), cfg.Telemetry.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.TelemetryEnabled() && cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.TelemetryEnabled() && cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	meter := tel.Meter(meterName)

	repo, err := newRepository(cfg.Storage, meter, logger)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := newPublisher(cfg.Events, meter, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	store := app.NewStore(repo, publisher, app.WithLogger(logger))
	summary, err := store.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info("store loaded",
		"products", summary.Products,
		"customers", summary.Customers,
		"backend", cfg.Storage.Backend,
	)
	if summary.Skipped > 0 {
		logger.Warn("skipped malformed records while loading", "count", summary.Skipped)
	}

	businessMetrics, err := storemetrics.NewMetrics(meter)
	if err != nil {
		return err
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return err
	}

	catalog := app.NewObservableStore(store, logger, businessMetrics)
	idemStore := idemmemory.NewStore(time.Duration(cfg.Idempotency.TTLSeconds)*time.Second, cfg.Idempotency.MaxEntries)

	router := mux.NewRouter()
	router.Use(httpadapter.WithTracing(), httpadapter.WithMetrics(httpMetrics))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Storage.Backend == config.BackendFile {
			if err := persistence.CheckHealth(r.Context(), cfg.Storage.DataDir); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)
	httpadapter.NewHandler(catalog, idemStore, logger).RegisterRoutes(router)

	handler := withRecovery(withLogging(httpadapter.WithCORS(router, cfg.HTTP.AllowedOrigin), logger), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func newRepository(cfg config.StorageConfig, meter metric.Meter, logger *slog.Logger) (ports.Repository, error) {
	var repo ports.Repository
	switch cfg.Backend {
	case config.BackendMemory:
		repo = memory.NewRepository()
	default:
		fileRepo, err := filestore.NewRepository(filestore.Paths{
			Products:  cfg.ProductsPath(),
			Customers: cfg.CustomersPath(),
			Sales:     cfg.SalesPath(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open data files: %w", err)
		}
		repo = fileRepo
	}

	metrics, err := persistence.NewMetrics(meter)
	if err != nil {
		return nil, err
	}
	return adapters.NewObservableRepository(repo, metrics), nil
}

// newPublisher connects to RabbitMQ when a URL is configured and falls back to
// logging events otherwise. The returned func releases the connection.
func newPublisher(cfg config.EventsConfig, meter metric.Meter, logger *slog.Logger) (ports.SalePublisher, func(), error) {
	metrics, err := events.NewMetrics(meter)
	if err != nil {
		return nil, nil, err
	}

	if cfg.RabbitMQURL == "" {
		logger.Info("no broker configured, sale events are only logged")
		return adapters.NewObservablePublisher(events.NewNoopPublisher(logger), metrics), func() {}, nil
	}

	pool, err := events.NewChannelPool(cfg.RabbitMQURL, cfg.Queue, cfg.ChannelPoolSize)
	if err != nil {
		return nil, nil, fmt.Errorf("connect sale event broker: %w", err)
	}
	logger.Info("publishing sale events", "queue", cfg.Queue, "channels", cfg.ChannelPoolSize)

	closePool := func() {
		if err := pool.Close(); err != nil {
			logger.Error("close rabbitmq pool", "error", err)
		}
	}
	publisher := events.NewRabbitPublisher(pool, cfg.Queue, logger)
	return adapters.NewObservablePublisher(publisher, metrics), closePool, nil
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
		)
	})
}

func withRecovery(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "panic recovered", "error", rec)
				respondJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
