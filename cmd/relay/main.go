package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/auth"
	"github.com/Guizzs26/go-pos-sync/internal/config"
	"github.com/Guizzs26/go-pos-sync/internal/db"
	"github.com/Guizzs26/go-pos-sync/internal/mapper"
	"github.com/Guizzs26/go-pos-sync/internal/processor"
	"github.com/Guizzs26/go-pos-sync/internal/remote"
	"github.com/Guizzs26/go-pos-sync/internal/service"
	"github.com/Guizzs26/go-pos-sync/pkg/infra"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)
	defer infra.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("FATAL: local store unavailable", "data_dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	session := auth.NewSession(cfg.KeyringService, cfg.KeyringAccount, logger)
	session.SetAccessToken(cfg.AccessToken)
	if _, ok := session.LoadRefreshToken(); ok {
		logger.Info("Refresh token present in credential store")
	}

	client := remote.NewClient(session, cfg.PushTimeout, cfg.DiscoveryTimeout, logger)
	rooms := remote.NewRoomResolver(cfg.RoomID, client, logger)
	handler := processor.NewSyncHandler(store, client, rooms, mapper.DefaultRegistry(), logger)
	reconciler := service.NewReconciler(store, handler, logger)
	enqueuer := service.NewEnqueuer(store, logger)
	feedback := service.NewFeedbackService(store, logger)

	if _, err := enqueuer.QueueSize(ctx); err != nil {
		logger.Warn("Could not read initial queue size", "error", err)
	}
	if err := feedback.Refresh(ctx); err != nil {
		logger.Warn("Could not read dead letter count", "error", err)
	}

	backoff := infra.NewBackoff(cfg.BackoffMin, cfg.BackoffMax, 2.0)
	runner := service.NewRunner(reconciler, session, backoff, cfg.APIBaseURL, cfg.SyncInterval, logger)

	go startObservabilityServer(ctx, cfg.MetricsPort, runner, reconciler, enqueuer, client, logger)

	logger.Info("🚀 POS sync relay started", "pid", os.Getpid(), "store", store.Path(), "newly_created", store.NewlyCreated())

	runner.Run(ctx)
	logger.Info("✅ Shutdown complete")
}

type healthReport struct {
	Status        string `json:"status"`
	QueueSize     int    `json:"queueSize"`
	Syncing       bool   `json:"syncing"`
	RemoteHealthy bool   `json:"remoteHealthy"`
}

func startObservabilityServer(ctx context.Context, port string, runner *service.Runner, reconciler *service.Reconciler, enqueuer *service.Enqueuer, client *remote.Client, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{
			Status:        "ok",
			Syncing:       reconciler.Syncing(),
			RemoteHealthy: client.IsHealthy(),
		}
		size, err := enqueuer.QueueSize(r.Context())
		if err != nil {
			report.Status = "store_error"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		report.QueueSize = size

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	})

	// "sync now" from the terminal UI
	mux.HandleFunc("POST /sync", func(w http.ResponseWriter, r *http.Request) {
		runner.Trigger()
		w.WriteHeader(http.StatusAccepted)
	})

	server := &http.Server{
		Addr:         "127.0.0.1:" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("📊 Observability server online", "url", "http://127.0.0.1:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}
