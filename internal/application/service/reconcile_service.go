package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/owlinhq/invoice-reconciler/internal/application/port"
	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
	"github.com/owlinhq/invoice-reconciler/internal/matching"
)

// Logger is the minimal logging interface used by services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ReconcileService manages invoice / delivery-note reconciliation
type ReconcileService interface {
	// MatchInvoice recomputes and persists the pair for a single invoice.
	// Returns nil (no error) when no plausible candidate exists; any
	// previously persisted pair for the invoice is cleared in that case.
	MatchInvoice(ctx context.Context, invoiceID int64) (*entity.MatchingPair, error)

	// RebuildMatching recomputes pairs for every invoice dated within the
	// last windowDays days. windowDays <= 0 falls back to the configured
	// date window. Individual invoice failures are counted and skipped.
	RebuildMatching(ctx context.Context, windowDays int) (*entity.RebuildResult, error)

	// GetSummary returns pair counts by status plus a page of pairs.
	GetSummary(ctx context.Context, state string, limit, offset int) (*entity.MatchingSummary, error)

	// GetPairForInvoice returns the persisted pair, or port.ErrNotFound.
	GetPairForInvoice(ctx context.Context, invoiceID int64) (*entity.MatchingPair, error)
}

type reconcileServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	deliveryRepo port.DeliveryNoteRepository
	matchingRepo port.MatchingRepository
	cfg          matching.Config
	workers      int
	now          func() time.Time
	logger       Logger
}

// NewReconcileService creates a new ReconcileService. workers bounds the
// rebuild fanout; values below 1 are treated as 1.
func NewReconcileService(
	invoiceRepo port.InvoiceRepository,
	deliveryRepo port.DeliveryNoteRepository,
	matchingRepo port.MatchingRepository,
	cfg matching.Config,
	workers int,
	logger Logger,
) ReconcileService {
	if workers < 1 {
		workers = 1
	}
	return &reconcileServiceImpl{
		invoiceRepo:  invoiceRepo,
		deliveryRepo: deliveryRepo,
		matchingRepo: matchingRepo,
		cfg:          cfg,
		workers:      workers,
		now:          time.Now,
		logger:       logger,
	}
}

// MatchInvoice recomputes the pair for one invoice against the delivery
// notes inside its date window
func (s *reconcileServiceImpl) MatchInvoice(ctx context.Context, invoiceID int64) (*entity.MatchingPair, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	window := time.Duration(s.cfg.DateWindowDays) * 24 * time.Hour
	pool, err := s.deliveryRepo.ListByDateWindow(ctx, inv.InvoiceDate.Add(-window), inv.InvoiceDate.Add(window))
	if err != nil {
		return nil, fmt.Errorf("list delivery notes: %w", err)
	}

	return s.matchAgainstPool(ctx, inv, pool)
}

// matchAgainstPool selects the best candidate from pool, computes the
// full pair, and persists it. A nil pair with nil error means no
// candidate survived the filters.
func (s *reconcileServiceImpl) matchAgainstPool(ctx context.Context, inv *entity.Invoice, pool []*entity.DeliveryNote) (*entity.MatchingPair, error) {
	candidates := matching.FindCandidates(inv, pool, s.cfg)
	if len(candidates) == 0 {
		if err := s.matchingRepo.ClearPairForInvoice(ctx, inv.ID); err != nil {
			return nil, fmt.Errorf("clear pair: %w", err)
		}
		s.logger.Info("No matching candidates for invoice", "invoice_id", inv.ID, "supplier", inv.SupplierName)
		return nil, nil
	}

	var extra []entity.MatchReason
	if tie, ok := matching.TieReason(candidates, s.cfg); ok {
		extra = append(extra, tie)
	}

	pair := matching.ComputeMatchingPair(inv, candidates[0].DeliveryNote, s.cfg, extra...)
	if err := s.matchingRepo.ReplacePairForInvoice(ctx, pair); err != nil {
		return nil, fmt.Errorf("persist pair: %w", err)
	}
	return pair, nil
}

// RebuildMatching recomputes pairs for all invoices in the window using a
// bounded worker pool. The result replaces any previous pairs for the
// same invoices, so re-running with unchanged data is a no-op in effect.
func (s *reconcileServiceImpl) RebuildMatching(ctx context.Context, windowDays int) (*entity.RebuildResult, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.DateWindowDays
	}

	to := s.now()
	from := to.AddDate(0, 0, -windowDays)

	invoices, err := s.invoiceRepo.ListByDateWindow(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	// One shared pool, padded by the candidate window on both sides so
	// deliveries just outside the invoice range still qualify.
	pad := time.Duration(s.cfg.DateWindowDays) * 24 * time.Hour
	pool, err := s.deliveryRepo.ListByDateWindow(ctx, from.Add(-pad), to.Add(pad))
	if err != nil {
		return nil, fmt.Errorf("list delivery notes: %w", err)
	}

	result := &entity.RebuildResult{DateWindowDays: windowDays}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.workers)
	)

	for _, inv := range invoices {
		// Stop dispatching on cancellation; in-flight work drains below.
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(inv *entity.Invoice) {
			defer wg.Done()
			defer func() { <-sem }()

			pair, err := s.matchAgainstPool(ctx, inv, pool)

			mu.Lock()
			defer mu.Unlock()
			result.InvoicesProcessed++
			if err != nil {
				result.InvoicesFailed++
				s.logger.Error("Failed to rebuild matching for invoice", "error", err, "invoice_id", inv.ID)
				return
			}
			if pair != nil {
				result.PairsCreated++
			}
		}(inv)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("rebuild interrupted: %w", err)
	}

	s.logger.Info("Matching rebuild complete",
		"invoices_processed", result.InvoicesProcessed,
		"pairs_created", result.PairsCreated,
		"invoices_failed", result.InvoicesFailed,
		"window_days", windowDays)
	return result, nil
}

func (s *reconcileServiceImpl) GetSummary(ctx context.Context, state string, limit, offset int) (*entity.MatchingSummary, error) {
	summary, err := s.matchingRepo.Summary(ctx, state, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return summary, nil
}

func (s *reconcileServiceImpl) GetPairForInvoice(ctx context.Context, invoiceID int64) (*entity.MatchingPair, error) {
	pair, err := s.matchingRepo.GetPairByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return pair, nil
}
