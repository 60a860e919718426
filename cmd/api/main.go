package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gkash/ussd/backend/internal/config"
	"github.com/gkash/ussd/backend/internal/handler"
	"github.com/gkash/ussd/backend/internal/metrics"
	"github.com/gkash/ussd/backend/internal/model/account"
	"github.com/gkash/ussd/backend/internal/service/gkash"
	"github.com/gkash/ussd/backend/internal/service/session"
	"github.com/gkash/ussd/backend/internal/service/sms"
	"github.com/gkash/ussd/backend/internal/service/ussd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var sessions *session.Store
	m := metrics.New(func() int { return sessions.Len() })
	sessions = session.NewStore(session.Options{
		Timeout:       cfg.Session.Timeout,
		SweepInterval: cfg.Session.SweepInterval,
		OnSweep:       m.ObserveSweep,
	})
	sessions.Start(ctx)
	defer sessions.Stop()

	backend := gkash.NewClient(gkash.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	})
	log.Printf("GKash API client targeting %s", backend.BaseURL())

	notifier := sms.NewClient(sms.Config{
		BaseURL:   cfg.SMS.BaseURL,
		APIKey:    cfg.SMS.APIKey,
		Shortcode: cfg.SMS.Shortcode,
		Timeout:   cfg.SMS.Timeout,
	})
	if !cfg.SMS.Configured() {
		log.Println("TiaraConnect API key not configured, SMS notifications will fail and be skipped")
	}

	dispatcher := ussd.NewService(sessions, account.NewCatalog(account.Seed()), backend, ussd.Options{
		Notifier: notifier,
		Metrics:  m,
	})

	simulatorEnabled := cfg.Simulator.Enabled && !cfg.Production()
	if simulatorEnabled {
		log.Println("Dial simulator enabled at /simulator/ws")
	}

	router := handler.NewRouter(handler.Deps{
		Dispatcher: dispatcher,
		Integrations: handler.Integrations{
			GKashURL:       backend.BaseURL(),
			SMSConfigured:  cfg.SMS.Configured(),
			SMSShortcode:   notifier.Shortcode(),
			SessionCounter: sessions.Len,
		},
		Metrics:          m.Handler(),
		SimulatorEnabled: simulatorEnabled,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("GKash USSD backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
