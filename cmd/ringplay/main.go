// ABOUTME: Main entry point for the sample ring server
// ABOUTME: Loads config, starts channels, runs HTTP server
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harper/sample-ring/internal/application/config"
	"github.com/harper/sample-ring/internal/application/manager"
	"github.com/harper/sample-ring/internal/infrastructure/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	// Load config
	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create channel manager
	mgr, err := manager.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	// Start channels
	if err := mgr.Start(); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Listen.Host, cfg.Listen.Port)
	srv := &nethttp.Server{
		Addr:         addr,
		Handler:      http.Router(mgr),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Streaming
		IdleTimeout:  0, // Streaming
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	// Closing the channels ends every /stream handler, which srv.Shutdown
	// waits for.
	srv.RegisterOnShutdown(func() {
		if err := mgr.Shutdown(); err != nil {
			log.Printf("shutdown channels: %v", err)
		}
	})

	// Graceful shutdown
	shutdown := make(chan error, 1)
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		shutdown <- srv.Shutdown(ctx)
	}()

	// Start server
	log.Printf("listening on http://%s (try /channels)", addr)
	if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}

	// Wait for shutdown
	if err := <-shutdown; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Shutdown channels; a no-op for any the shutdown hook already stopped
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("shutdown channels: %w", err)
	}

	log.Println("shutdown complete")
	return nil
}
