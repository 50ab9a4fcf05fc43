package cli

import (
	"log/slog"
	"os"

	"github.com/Guizzs26/go-pos-sync/internal/auth"
	"github.com/Guizzs26/go-pos-sync/internal/db"
	"github.com/Guizzs26/go-pos-sync/internal/mapper"
	"github.com/Guizzs26/go-pos-sync/internal/processor"
	"github.com/Guizzs26/go-pos-sync/internal/remote"
	"github.com/Guizzs26/go-pos-sync/internal/service"
	"github.com/Guizzs26/go-pos-sync/pkg/infra"
)

// app is the object graph a command works with
type app struct {
	logger     *slog.Logger
	store      *db.Store
	enqueuer   *service.Enqueuer
	reconciler *service.Reconciler
	feedback   *service.FeedbackService
}

func newLogger(opts *RootOptions) *slog.Logger {
	cfg := *opts.Config
	cfg.LogFile = ""
	if opts.Verbose {
		cfg.LogLevel = "DEBUG"
	} else if cfg.LogLevel == "INFO" {
		cfg.LogLevel = "WARN"
	}
	return infra.SetupLoggerTo(&cfg, os.Stderr)
}

// newSession does not touch the store, so auth commands work without one
func newSession(opts *RootOptions, logger *slog.Logger) *auth.Session {
	s := auth.NewSession(opts.Config.KeyringService, opts.Config.KeyringAccount, logger)
	s.SetAccessToken(opts.Token)
	return s
}

func openApp(opts *RootOptions) (*app, error) {
	logger := newLogger(opts)

	store, err := db.Open(opts.DataDir, logger)
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	session := newSession(opts, logger)
	client := remote.NewClient(session, cfg.PushTimeout, cfg.DiscoveryTimeout, logger)
	rooms := remote.NewRoomResolver(cfg.RoomID, client, logger)
	handler := processor.NewSyncHandler(store, client, rooms, mapper.DefaultRegistry(), logger)

	return &app{
		logger:     logger,
		store:      store,
		enqueuer:   service.NewEnqueuer(store, logger),
		reconciler: service.NewReconciler(store, handler, logger),
		feedback:   service.NewFeedbackService(store, logger),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}
