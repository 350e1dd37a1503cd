// Package reconciler runs the periodic sweep that keeps documents in line with the engine
// and subscriptions in line with the calendar.
package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"github.com/paperlane/paperlane/internal/config"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/pkg/metrics"
	"go.uber.org/zap"
)

// Summary describes one sweep.
type Summary struct {
	Polled      int
	Skipped     int
	Unavailable int
	Errors      int
	Overdue     int
	Expired     int
}

type backoff struct {
	delay time.Duration
	next  time.Time
}

type Reconciler struct {
	reconcile *service.ReconcileService
	accounts  *service.AccountService
	cfg       config.Reconciler

	mu      sync.Mutex
	backoff map[uuid.UUID]*backoff

	now func() time.Time
}

func New(reconcile *service.ReconcileService, accounts *service.AccountService, cfg config.Reconciler) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = cfg.Interval
	}
	return &Reconciler{
		reconcile: reconcile,
		accounts:  accounts,
		cfg:       cfg,
		backoff:   map[uuid.UUID]*backoff{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := jitterbug.New(r.cfg.Interval, &jitterbug.Norm{Stdev: r.cfg.Interval / 10})
	defer ticker.Stop()

	zap.S().Named("reconciler").Infow("reconciler started", "interval", r.cfg.Interval, "max_backoff", r.cfg.MaxBackoff)

	for {
		select {
		case <-ctx.Done():
			zap.S().Named("reconciler").Info("reconciler stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick polls up to BatchSize in-flight documents that are due, fails the overdue ones and expires ended subscriptions.
func (r *Reconciler) Tick(ctx context.Context) Summary {
	logger := zap.S().Named("reconciler")
	summary := Summary{}
	now := r.now()

	docs, err := r.reconcile.ListInFlight(ctx, 0)
	if err != nil {
		logger.Errorw("failed to list in-flight documents", "error", err)
		metrics.IncreaseReconcileTicksMetric("error")
		return summary
	}

	seen := make(map[uuid.UUID]struct{}, len(docs))
	for _, doc := range docs {
		seen[doc.ID] = struct{}{}
		if !r.due(doc.ID, now) || (r.cfg.BatchSize > 0 && summary.Polled+summary.Unavailable+summary.Errors >= r.cfg.BatchSize) {
			summary.Skipped++
			continue
		}

		res, err := r.reconcile.ReconcileJob(ctx, doc.JobID())
		switch {
		case err != nil:
			summary.Errors++
			r.delay(doc.ID, now)
			logger.Warnw("failed to reconcile document", "document_id", doc.ID, "job_id", doc.JobID(), "error", err)
		case res.EngineUnavailable:
			summary.Unavailable++
			r.delay(doc.ID, now)
		default:
			summary.Polled++
			r.reset(doc.ID)
			if res.Document.Status.Terminal() {
				logger.Infow("document finished", "document_id", doc.ID, "status", res.Document.Status)
			}
		}
	}
	r.forget(seen)

	if r.cfg.JobDeadline > 0 {
		summary.Overdue, err = r.reconcile.FailOverdue(ctx, r.cfg.JobDeadline)
		if err != nil {
			summary.Errors++
			logger.Errorw("failed to fail overdue documents", "error", err)
		}
	}

	summary.Expired, err = r.accounts.ExpireSubscriptions(ctx, now)
	if err != nil {
		summary.Errors++
		logger.Errorw("failed to expire subscriptions", "error", err)
	}

	outcome := "ok"
	if summary.Errors > 0 || summary.Unavailable > 0 {
		outcome = "degraded"
	}
	metrics.IncreaseReconcileTicksMetric(outcome)
	logger.Debugw("sweep done", "polled", summary.Polled, "skipped", summary.Skipped, "unavailable", summary.Unavailable,
		"errors", summary.Errors, "overdue", summary.Overdue, "expired", summary.Expired)

	return summary
}

func (r *Reconciler) due(id uuid.UUID, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.backoff[id]
	return !ok || !now.Before(b.next)
}

// delay doubles the wait before the document is polled again, up to MaxBackoff.
func (r *Reconciler) delay(id uuid.UUID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.backoff[id]
	if !ok {
		b = &backoff{delay: r.cfg.Interval}
		r.backoff[id] = b
	} else {
		b.delay *= 2
	}
	if b.delay > r.cfg.MaxBackoff {
		b.delay = r.cfg.MaxBackoff
	}
	b.next = now.Add(b.delay)
}

func (r *Reconciler) reset(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backoff, id)
}

// forget drops backoff state of documents that are no longer in flight.
func (r *Reconciler) forget(inFlight map[uuid.UUID]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.backoff {
		if _, ok := inFlight[id]; !ok {
			delete(r.backoff, id)
		}
	}
}

// Backoff returns the current wait of a document, zero when it is polled every sweep.
func (r *Reconciler) Backoff(id uuid.UUID) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backoff[id]; ok {
		return b.delay
	}
	return 0
}
