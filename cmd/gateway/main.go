package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promptvc.dev/internal/auth"
	"promptvc.dev/internal/bus"
	"promptvc.dev/internal/config"
	"promptvc.dev/internal/gateway"
	"promptvc.dev/internal/notify"
	"promptvc.dev/internal/obs"
	"promptvc.dev/internal/rooms"
	"promptvc.dev/internal/store"
	"promptvc.dev/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		st store.Store
		db *sql.DB
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		defer pgStore.Close()
		st = pgStore
		db = pgStore.DB()
	} else {
		log.Fatal("PVC_PG_DSN is required")
	}

	publisher, err := bus.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatalf("connect bus: %v", err)
	}
	defer publisher.Close()

	hub := notify.NewHub(cfg.NotifyTimeout,
		notify.NewHTTPDispatcher(cfg.NotifierURL, st, cfg.NotifyTimeout),
		publisher,
	)

	verifier := auth.NewVerifier(st)
	registry := rooms.NewRegistry()
	gw := gateway.New(verifier, registry, hub, cfg.AllowedOrigins, cfg.HandshakeTimeout)
	server := gateway.NewServer(gw, gateway.ReadyProbe{DB: db}, version, cfg.RateLimitBurst, cfg.RateLimitPerSecond)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Info("gateway_starting", map[string]any{
		"addr":     cfg.Addr,
		"version":  version,
		"notifier": cfg.NotifierURL != "",
		"bus":      publisher.Enabled(),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Info("gateway_stopping", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	obs.Info("gateway_stopped", nil)
}
