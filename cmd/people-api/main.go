// main is the entry point of the People API.
//
// Startup sequence:
//  1. Load configuration from the environment (optionally a .env or YAML file)
//  2. Initialise the logger
//  3. Connect to the document store
//  4. Register the HTTP routes and middleware
//  5. Serve in a separate goroutine until SIGINT/SIGTERM
//  6. Shut down gracefully, then close the store
//
// Running the server:
//
//	MONGO_URI=mongodb://localhost:27017/people go run ./cmd/people-api
//
// or against the embedded store:
//
//	STORAGE_DRIVER=sqlite STORAGE_PATH=people.db go run ./cmd/people-api
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/people-api/internal/config"
	"github.com/aanand-mishra/people-api/internal/http/handlers/health"
	"github.com/aanand-mishra/people-api/internal/http/handlers/person"
	"github.com/aanand-mishra/people-api/internal/http/middleware"
	"github.com/aanand-mishra/people-api/internal/storage"
	"github.com/aanand-mishra/people-api/internal/storage/mongo"
	"github.com/aanand-mishra/people-api/internal/storage/sqlite"
)

const (
	version         = "1.0.0"
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting people-api",
		slog.String("env", cfg.Env),
		slog.String("version", version),
		slog.String("storage", cfg.StorageDriver),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	store, err := openStorage(ctx, cfg)
	cancel()
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("storage initialised")

	server := &http.Server{
		Addr:    cfg.HTTPServer.ListenAddr(),
		Handler: newHandler(log, store),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
	}
	if err := store.Close(ctx); err != nil {
		log.Error("failed to close storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// openStorage builds the backend selected by cfg.StorageDriver.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return mongo.New(ctx, cfg)
	case config.DriverSQLite:
		return sqlite.New(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// newHandler wires the routes, /healthz, /metrics and the middleware chain.
func newHandler(log *slog.Logger, store storage.Storage) http.Handler {
	metrics := middleware.NewMetrics()

	router := http.NewServeMux()
	person.Register(router, store)
	router.HandleFunc("GET /healthz", health.Check(store))
	router.Handle("GET /metrics", metrics.Handler())

	return middleware.RequestID(middleware.Logger(log)(metrics.Middleware(router)))
}

// setupLogger returns a text logger at debug level for dev and a JSON
// logger for staging (debug) and prod (info).
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
