/*
Package main is the entry point for the Parley chat server.

It is responsible for loading configuration, initializing the global logging system,
opening the database pool, selecting the broadcast bus backend, setting up the HTTP
server, and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"parley/internal/app/chat"
	"parley/internal/app/db"
	"parley/internal/app/store"
	"parley/internal/configs"
	"parley/internal/handler"
	"parley/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("redis_bus", cfg.RedisURL != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database pool (runs migrations on startup)
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	st := store.New(pool)

	// Realtime core: registry, broadcast bus, ingest pipeline, credential verifier.
	registry := chat.NewRegistry()

	var bus chat.Bus
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logx.Fatal(err, "Invalid REDIS_URL")
		}

		bus, err = chat.NewRedisBus(ctx, redis.NewClient(opts), registry)
		if err != nil {
			logx.Fatal(err, "Failed to connect broadcast bus to Redis")
		}
		logx.Info("Broadcast bus connected to Redis broker")
	} else {
		bus = chat.NewMemoryBus(registry)
		logx.Info("Broadcast bus running in-process (single instance)")
	}
	defer bus.Close()

	deps := &handler.AppDeps{
		Config:     cfg,
		Store:      st,
		Registry:   registry,
		Bus:        bus,
		Pipeline:   chat.NewPipeline(st, bus),
		Membership: st,
		Verifier:   chat.NewTokenVerifier(cfg.JWTSecret, st),
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Parley server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
