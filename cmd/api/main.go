package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schooladmin.org/internal/audit"
	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/config"
	"schooladmin.org/internal/dbgw"
	"schooladmin.org/internal/httpapi"
	"schooladmin.org/internal/obs"
	"schooladmin.org/internal/ratelimit"
)

var version = "1.4.0"

func main() {
	obs.Init()

	cfg := config.Load()

	// A typo in the role table must never ship; refuse to start on one.
	if err := auth.ValidateRoles(); err != nil {
		log.Fatalf("role table: %v", err)
	}

	var gw *dbgw.Gateway
	if cfg.DatabaseDSN != "" {
		var err error
		gw, err = dbgw.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
	} else {
		log.Println("SCHOOLADMIN_PG_DSN not set; starting without a store")
		gw = dbgw.New(nil)
	}

	auditLog, err := audit.New(cfg.AuditLogPath)
	if err != nil {
		log.Fatalf("audit log: %v", err)
	}

	var limiterOpts []ratelimit.Option
	if cfg.RateLimitSnapshotPath != "" {
		limiterOpts = append(limiterOpts, ratelimit.WithSnapshot(cfg.RateLimitSnapshotPath))
	}
	limiter := ratelimit.New(limiterOpts...)

	sessions := auth.NewSessionStore(cfg.SessionTTL)
	authn := auth.NewAuthenticator(gw, sessions, limiter, auditLog,
		auth.WithAttemptLimit(cfg.LoginMaxAttempts, cfg.LoginWindow))

	api := httpapi.New(gw, authn, auditLog, cfg.BackupDir, version)

	handler := httpapi.RateLimit(api.Handler(), 40, 20)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting schooladmin-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = gw.Close()
	log.Println("Stopped")
}
