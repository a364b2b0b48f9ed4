package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/authz"
	"kanisa.org/internal/config"
	"kanisa.org/internal/httpapi"
	"kanisa.org/internal/obs"
	"kanisa.org/internal/session"
	"kanisa.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsurePermissions(ctx, authz.BuiltinPermissions); err != nil {
		cancel()
		log.Fatalf("seed permissions: %v", err)
	}
	perms, err := store.ListPermissions(ctx)
	cancel()
	if err != nil {
		log.Fatalf("load permissions: %v", err)
	}
	registry := authz.NewRegistry()
	if err := registry.Load(perms); err != nil {
		log.Fatalf("load registry: %v", err)
	}

	recorder, err := audit.NewRecorder(store, audit.WithStrict(cfg.AuditStrict))
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}
	gate := authz.NewGate(registry, store, recorder)
	roles, err := authz.NewRoleService(store)
	if err != nil {
		log.Fatalf("role service: %v", err)
	}
	sessions, err := session.NewService(store, store, cfg.AuthSecret,
		session.WithIssuer(cfg.Issuer),
		session.WithAccessTTL(cfg.AccessTTL),
		session.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}

	api, err := httpapi.New(httpapi.Options{
		ReadyProbe: httpapi.ReadyProbe{DB: store.DB()},
		Sessions:   sessions,
		Gate:       gate,
		Roles:      roles,
		Tenants:    store,
		Registry:   registry,
		Recorder:   recorder,
		AuditLog:   store,
		Version:    version,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})
	if err != nil {
		log.Fatalf("httpapi: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting kanisa-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
