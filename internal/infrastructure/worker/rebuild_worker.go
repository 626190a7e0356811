package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/owlinhq/invoice-reconciler/internal/application/service"
)

// RebuildWorker periodically recomputes matching pairs so the summary
// stays fresh as new documents arrive from extraction. A non-positive
// interval disables the loop; rebuilds then run only on demand through
// the API.
type RebuildWorker struct {
	service  service.ReconcileService
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRebuildWorker creates a new rebuild worker
func NewRebuildWorker(svc service.ReconcileService, interval time.Duration, logger *zap.Logger) *RebuildWorker {
	return &RebuildWorker{
		service:  svc,
		interval: interval,
		logger:   logger,
	}
}

// Name returns the worker name
func (w *RebuildWorker) Name() string {
	return "matching_rebuild"
}

// Start launches the rebuild loop. The first rebuild runs immediately,
// then on every interval tick until the context is cancelled.
func (w *RebuildWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.Info("Rebuild worker disabled, no interval configured")
		return nil
	}

	w.mu.Lock()
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

func (w *RebuildWorker) run(ctx context.Context) {
	defer close(w.done)

	w.rebuild(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.rebuild(ctx)
		}
	}
}

func (w *RebuildWorker) rebuild(ctx context.Context) {
	result, err := w.service.RebuildMatching(ctx, 0)
	if err != nil {
		w.logger.Error("Scheduled matching rebuild failed", zap.Error(err))
		return
	}
	w.logger.Info("Scheduled matching rebuild finished",
		zap.Int("invoices_processed", result.InvoicesProcessed),
		zap.Int("pairs_created", result.PairsCreated),
		zap.Int("invoices_failed", result.InvoicesFailed))
}

// Stop cancels the loop and waits for the in-flight rebuild to finish.
func (w *RebuildWorker) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

// Verify interface compliance
var _ Worker = (*RebuildWorker)(nil)
