package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Guizzs26/go-pos-sync/pkg/infra"
)

// Cycler is the drain entry point the runner calls
type Cycler interface {
	ProcessSyncCycle(ctx context.Context, apiBase string) (CycleResult, error)
}

// SessionClearer forgets credentials the server rejected
type SessionClearer interface {
	Clear()
}

// Runner fires drains on a fixed interval and on demand. After a transient
// halt, timer driven drains wait for a backoff keyed by the head entry's
// attempt count; on-demand drains always run
type Runner struct {
	cycler   Cycler
	session  SessionClearer
	backoff  *infra.Backoff
	apiBase  string
	interval time.Duration
	logger   *slog.Logger
	trigger  chan struct{}
	now      func() time.Time

	// OnCycle, when set, observes every completed drain
	OnCycle func(CycleResult, error)
}

func NewRunner(cycler Cycler, session SessionClearer, backoff *infra.Backoff, apiBase string, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		cycler:   cycler,
		session:  session,
		backoff:  backoff,
		apiBase:  apiBase,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Trigger requests an immediate drain. Requests made while one is pending collapse
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run starts the drain loop. It blocks until the context is canceled
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Sync runner started", "interval", r.interval, "api_base", r.apiBase)

	notBefore := r.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Sync runner shutting down...")
			return
		case <-r.trigger:
			notBefore = r.cycle(ctx)
		case <-ticker.C:
			if r.now().Before(notBefore) {
				r.logger.Debug("Backing off, skipping timed drain", "until", notBefore)
				continue
			}
			notBefore = r.cycle(ctx)
		}
	}
}

// cycle runs one drain and returns the earliest time the next timed drain may start
func (r *Runner) cycle(ctx context.Context) time.Time {
	res, err := r.cycler.ProcessSyncCycle(ctx, r.apiBase)
	if r.OnCycle != nil {
		r.OnCycle(res, err)
	}

	if err != nil {
		if ctx.Err() != nil {
			return time.Time{}
		}
		wait := r.backoff.Next()
		r.logger.Error("Sync cycle failed", "consecutive_failures", r.backoff.Attempts(), "retry_in", wait, "error", err)
		return r.now().Add(wait)
	}
	r.backoff.Reset()

	switch {
	case res.Skipped:
		return time.Time{}
	case res.AuthExpired:
		r.session.Clear()
		r.logger.Warn("Session expired, credentials cleared; sign in again to resume sync", "remaining", res.Remaining)
		return time.Time{}
	case res.Failures > 0:
		wait := r.backoff.For(res.HeadAttempts)
		code := ""
		if res.LastError != nil {
			code = res.LastError.Code
		}
		r.logger.Warn("Sync halted on transient failure", "code", code, "head_attempts", res.HeadAttempts, "retry_in", wait)
		return r.now().Add(wait)
	}
	return time.Time{}
}
