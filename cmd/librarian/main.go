package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openmediakit/librarian/internal/config"
	"github.com/openmediakit/librarian/internal/database"
	"github.com/openmediakit/librarian/internal/events"
	"github.com/openmediakit/librarian/internal/logger"
	"github.com/openmediakit/librarian/internal/server"
)

func main() {
	configPath := os.Getenv("LIBRARIAN_CONFIG")
	if configPath == "" {
		configPath = "librarian.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Configure(cfg.Logging.Level)

	if err := database.Initialize(&cfg.Database); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	eventBus := events.NewBus()
	eventBus.PublishAsync(events.NewSystemEvent(
		events.EventSystemStarted,
		"Librarian Started",
		"Library scanning service is starting",
	))

	srv, err := server.New(cfg, eventBus)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	srv.Shutdown()
	eventBus.Publish(events.NewSystemEvent(
		events.EventSystemStopped,
		"Librarian Stopped",
		"Library scanning service stopped",
	))
	eventBus.Stop()
}
