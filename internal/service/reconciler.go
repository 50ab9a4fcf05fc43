package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/internal/processor"
	"github.com/Guizzs26/go-pos-sync/pkg/metrics"
)

// MetaLastPushAt records when a cycle last pushed something
const MetaLastPushAt = "last_push_at"

// Repository defines the store contract of the reconciler
type Repository interface {
	PeekOldest(ctx context.Context) (*models.QueuedMutation, error)
	QueueSize(ctx context.Context) (int, error)
	SetMeta(ctx context.Context, key, value string) error
	CountDeadLetters(ctx context.Context) (int, error)
}

// Processor makes one push attempt on a queue entry and persists its outcome
type Processor interface {
	Process(ctx context.Context, apiBase string, m models.QueuedMutation) (processor.Outcome, error)
}

// CycleResult summarizes one drain
type CycleResult struct {
	Pushed        int                  `json:"pushed"`
	Dropped       int                  `json:"dropped"`
	Failures      int                  `json:"failures"`
	Remaining     int                  `json:"remaining"`
	AuthExpired   bool                 `json:"authExpired"`
	Skipped       bool                 `json:"skipped,omitempty"`
	HeadAttempts  int                  `json:"headAttempts,omitempty"` // attempt count of the entry that halted the drain
	LastError     *models.ErrorDetail  `json:"lastError,omitempty"`
	DroppedErrors []models.ErrorDetail `json:"droppedErrors,omitempty"`
}

// Reconciler drains the sync queue in strict FIFO order. Only one drain runs
// at a time per instance; an overlapping call returns a skipped result
type Reconciler struct {
	repo    Repository
	handler Processor
	logger  *slog.Logger
	now     func() time.Time
	syncing atomic.Bool
}

func NewReconciler(repo Repository, handler Processor, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:    repo,
		handler: handler,
		logger:  logger,
		now:     time.Now,
	}
}

// Syncing reports whether a drain is in progress
func (r *Reconciler) Syncing() bool {
	return r.syncing.Load()
}

// ProcessSyncOnce makes at most one push attempt
func (r *Reconciler) ProcessSyncOnce(ctx context.Context, apiBase string) (CycleResult, error) {
	return r.drain(ctx, apiBase, 1)
}

// ProcessSyncCycle pushes until the queue is empty or an entry halts the drain.
// Permanently rejected entries are dropped and the drain continues
func (r *Reconciler) ProcessSyncCycle(ctx context.Context, apiBase string) (CycleResult, error) {
	return r.drain(ctx, apiBase, 0)
}

// drain runs up to limit attempts; zero means no limit
func (r *Reconciler) drain(ctx context.Context, apiBase string, limit int) (res CycleResult, err error) {
	if !r.syncing.CompareAndSwap(false, true) {
		r.logger.Debug("Drain already in progress, skipping")
		return CycleResult{Skipped: true}, nil
	}
	defer r.syncing.Store(false)

	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
		err = errors.Join(err, r.finish(ctx, &res))

		if res.Pushed+res.Dropped+res.Failures > 0 {
			r.logger.Info("Sync cycle telemetry",
				"pushed", res.Pushed,
				"dropped", res.Dropped,
				"failures", res.Failures,
				"remaining", res.Remaining,
				"auth_expired", res.AuthExpired,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}()

	for attempts := 0; limit == 0 || attempts < limit; attempts++ {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		head, err := r.repo.PeekOldest(ctx)
		if err != nil {
			return res, fmt.Errorf("peek failure: %w", err)
		}
		if head == nil {
			return res, nil
		}

		o, err := r.handler.Process(ctx, apiBase, *head)
		r.tally(&res, *head, o)
		if err != nil {
			return res, err
		}
		if o.Halts() {
			return res, nil
		}
	}
	return res, nil
}

func (r *Reconciler) tally(res *CycleResult, head models.QueuedMutation, o processor.Outcome) {
	if o.Verdict == processor.VerdictPushed {
		res.Pushed++
		return
	}

	detail := o.Detail(head.ID)
	res.LastError = &detail

	switch o.Verdict {
	case processor.VerdictDropped:
		res.Dropped++
		res.DroppedErrors = append(res.DroppedErrors, detail)
	case processor.VerdictAuthExpired:
		res.AuthExpired = true
		res.Failures++
		res.HeadAttempts = head.Attempts
	case processor.VerdictRetry:
		res.Failures++
		res.HeadAttempts = head.Attempts + 1
	}
}

// finish measures what is left and stamps the push time. It runs even when
// the drain itself failed, so its context must not be the cancelled one
func (r *Reconciler) finish(ctx context.Context, res *CycleResult) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error

	remaining, err := r.repo.QueueSize(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to measure queue: %w", err))
	} else {
		res.Remaining = remaining
		metrics.QueueBacklog.Set(float64(remaining))
	}

	if res.Pushed > 0 {
		if err := r.repo.SetMeta(ctx, MetaLastPushAt, r.now().UTC().Format(time.RFC3339)); err != nil {
			errs = append(errs, err)
		}
	}

	if res.Dropped > 0 {
		if n, err := r.repo.CountDeadLetters(ctx); err == nil {
			metrics.DeadLetters.Set(float64(n))
		}
	}

	return errors.Join(errs...)
}
