package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guustavogomes/emprestimosdiario/internal/audit"
	"github.com/guustavogomes/emprestimosdiario/internal/auth"
	"github.com/guustavogomes/emprestimosdiario/internal/clients"
	"github.com/guustavogomes/emprestimosdiario/internal/config"
	"github.com/guustavogomes/emprestimosdiario/internal/httpapi"
	"github.com/guustavogomes/emprestimosdiario/internal/obs"
	"github.com/guustavogomes/emprestimosdiario/internal/store/pg"
)

var commit = "none"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.InitBuildInfo(cfg.Version, commit)

	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.Ping(ctx); err != nil {
		cancel()
		log.Fatalf("ping db: %v", err)
	}
	cancel()

	authSvc, err := auth.NewService(store)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	if err := authSvc.EnsureBuiltins(context.Background()); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.TokenSecret,
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	clientSvc, err := clients.NewService(store, store)
	if err != nil {
		log.Fatalf("client service: %v", err)
	}

	recorder := audit.NewRecorder(store, cfg.AuditQueueSize)

	api := httpapi.New(httpapi.Config{
		Auth:           authSvc,
		Tokens:         tokens,
		Clients:        clientSvc,
		Recorder:       recorder,
		Ready:          httpapi.ReadyProbe{Ping: store.Ping},
		Version:        cfg.Version,
		LoginBurst:     cfg.LoginBurst,
		LoginPerMinute: cfg.LoginPerMinute,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting emprestimosdiario-api %s on %s", cfg.Version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	// Drain the audit queue only after the handlers stop producing.
	recorder.Close()
	_ = store.Close()
	log.Println("Stopped")
}
