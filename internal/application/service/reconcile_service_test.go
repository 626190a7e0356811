package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/owlinhq/invoice-reconciler/internal/application/port"
	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
	"github.com/owlinhq/invoice-reconciler/internal/matching"
	"github.com/owlinhq/invoice-reconciler/pkg/utils"
)

// Fake repositories

type fakeInvoiceRepo struct {
	invoices []*entity.Invoice
	listErr  error
}

func (f *fakeInvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error { return nil }

func (f *fakeInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, port.ErrNotFound
}

func (f *fakeInvoiceRepo) ListByDateWindow(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.invoices, nil
}

type fakeDeliveryRepo struct {
	notes []*entity.DeliveryNote
}

func (f *fakeDeliveryRepo) Create(ctx context.Context, dn *entity.DeliveryNote) error { return nil }

func (f *fakeDeliveryRepo) GetByID(ctx context.Context, id int64) (*entity.DeliveryNote, error) {
	for _, dn := range f.notes {
		if dn.ID == id {
			return dn, nil
		}
	}
	return nil, port.ErrNotFound
}

func (f *fakeDeliveryRepo) ListByDateWindow(ctx context.Context, from, to time.Time) ([]*entity.DeliveryNote, error) {
	return f.notes, nil
}

type fakeMatchingRepo struct {
	mu         sync.Mutex
	pairs      map[int64]*entity.MatchingPair
	cleared    []int64
	replaceErr func(invoiceID int64) error
}

func newFakeMatchingRepo() *fakeMatchingRepo {
	return &fakeMatchingRepo{pairs: make(map[int64]*entity.MatchingPair)}
}

func (f *fakeMatchingRepo) ReplacePairForInvoice(ctx context.Context, pair *entity.MatchingPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		if err := f.replaceErr(pair.InvoiceID); err != nil {
			return err
		}
	}
	f.pairs[pair.InvoiceID] = pair
	return nil
}

func (f *fakeMatchingRepo) ClearPairForInvoice(ctx context.Context, invoiceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pairs, invoiceID)
	f.cleared = append(f.cleared, invoiceID)
	return nil
}

func (f *fakeMatchingRepo) GetPairByInvoiceID(ctx context.Context, invoiceID int64) (*entity.MatchingPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair, ok := f.pairs[invoiceID]
	if !ok {
		return nil, port.ErrNotFound
	}
	return pair, nil
}

func (f *fakeMatchingRepo) Summary(ctx context.Context, state string, limit, offset int) (*entity.MatchingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &entity.MatchingSummary{Totals: make(map[string]int)}
	for _, p := range f.pairs {
		summary.Totals[string(p.Status)]++
		summary.Pairs = append(summary.Pairs, p)
	}
	return summary, nil
}

// Fixtures

var fixedNow = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

func fixtureInvoice(id int64, supplier string, daysAgo int) *entity.Invoice {
	return &entity.Invoice{
		ID:           id,
		SupplierName: supplier,
		InvoiceDate:  fixedNow.AddDate(0, 0, -daysAgo),
		TotalAmount:  decimal.NewFromInt(100),
		Lines: []entity.LineItem{{
			SKU:       "TOM500",
			Quantity:  decimal.NewFromInt(10),
			Unit:      "kg",
			UnitPrice: decimal.NewFromFloat(2.50),
		}},
	}
}

func fixtureDeliveryNote(id int64, supplier string, daysAgo int) *entity.DeliveryNote {
	return &entity.DeliveryNote{
		ID:           id,
		SupplierName: supplier,
		DeliveryDate: fixedNow.AddDate(0, 0, -daysAgo),
		TotalAmount:  decimal.NewFromInt(100),
		Lines: []entity.LineItem{{
			SKU:       "TOM500",
			Quantity:  decimal.NewFromInt(10),
			Unit:      "kg",
			UnitPrice: decimal.NewFromFloat(2.50),
		}},
	}
}

func newTestService(invRepo *fakeInvoiceRepo, dnRepo *fakeDeliveryRepo, mRepo *fakeMatchingRepo) *reconcileServiceImpl {
	svc := NewReconcileService(invRepo, dnRepo, mRepo, matching.DefaultConfig(), 2, utils.NewKVLogger(zap.NewNop())).(*reconcileServiceImpl)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestMatchInvoice_PersistsBestPair(t *testing.T) {
	invRepo := &fakeInvoiceRepo{invoices: []*entity.Invoice{fixtureInvoice(1, "Bidfood Ltd", 5)}}
	dnRepo := &fakeDeliveryRepo{notes: []*entity.DeliveryNote{
		fixtureDeliveryNote(10, "Bidfood", 4),
		fixtureDeliveryNote(11, "Brakes", 4),
	}}
	mRepo := newFakeMatchingRepo()
	svc := newTestService(invRepo, dnRepo, mRepo)

	pair, err := svc.MatchInvoice(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, int64(1), pair.InvoiceID)
	assert.Equal(t, int64(10), pair.DeliveryNoteID)
	assert.Equal(t, entity.PairMatched, pair.Status)

	stored, err := mRepo.GetPairByInvoiceID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, pair.ID, stored.ID)
}

func TestMatchInvoice_NoCandidatesClearsPair(t *testing.T) {
	invRepo := &fakeInvoiceRepo{invoices: []*entity.Invoice{fixtureInvoice(1, "Bidfood", 5)}}
	dnRepo := &fakeDeliveryRepo{notes: []*entity.DeliveryNote{fixtureDeliveryNote(10, "Brakes", 4)}}
	mRepo := newFakeMatchingRepo()
	svc := newTestService(invRepo, dnRepo, mRepo)

	pair, err := svc.MatchInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Contains(t, mRepo.cleared, int64(1))
}

func TestMatchInvoice_UnknownInvoice(t *testing.T) {
	svc := newTestService(&fakeInvoiceRepo{}, &fakeDeliveryRepo{}, newFakeMatchingRepo())

	_, err := svc.MatchInvoice(context.Background(), 42)
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRebuildMatching_CountsProcessedCreatedFailed(t *testing.T) {
	invRepo := &fakeInvoiceRepo{invoices: []*entity.Invoice{
		fixtureInvoice(1, "Bidfood", 5),  // matches
		fixtureInvoice(2, "Unknown", 5),  // no candidates, skipped
		fixtureInvoice(3, "Bidfood", 6),  // persistence fails
	}}
	dnRepo := &fakeDeliveryRepo{notes: []*entity.DeliveryNote{fixtureDeliveryNote(10, "Bidfood", 4)}}
	mRepo := newFakeMatchingRepo()
	mRepo.replaceErr = func(invoiceID int64) error {
		if invoiceID == 3 {
			return errors.New("disk full")
		}
		return nil
	}
	svc := newTestService(invRepo, dnRepo, mRepo)

	result, err := svc.RebuildMatching(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 3, result.InvoicesProcessed)
	assert.Equal(t, 1, result.PairsCreated)
	assert.Equal(t, 1, result.InvoicesFailed)
	assert.Equal(t, 30, result.DateWindowDays)
}

func TestRebuildMatching_DefaultsWindow(t *testing.T) {
	invRepo := &fakeInvoiceRepo{}
	svc := newTestService(invRepo, &fakeDeliveryRepo{}, newFakeMatchingRepo())

	result, err := svc.RebuildMatching(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, matching.DefaultConfig().DateWindowDays, result.DateWindowDays)
}

func TestRebuildMatching_ListError(t *testing.T) {
	invRepo := &fakeInvoiceRepo{listErr: errors.New("db closed")}
	svc := newTestService(invRepo, &fakeDeliveryRepo{}, newFakeMatchingRepo())

	_, err := svc.RebuildMatching(context.Background(), 7)
	assert.Error(t, err)
}

func TestRebuildMatching_IsIdempotent(t *testing.T) {
	invRepo := &fakeInvoiceRepo{invoices: []*entity.Invoice{fixtureInvoice(1, "Bidfood", 5)}}
	dnRepo := &fakeDeliveryRepo{notes: []*entity.DeliveryNote{fixtureDeliveryNote(10, "Bidfood", 4)}}
	mRepo := newFakeMatchingRepo()
	svc := newTestService(invRepo, dnRepo, mRepo)

	_, err := svc.RebuildMatching(context.Background(), 14)
	require.NoError(t, err)
	first, err := mRepo.GetPairByInvoiceID(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.RebuildMatching(context.Background(), 14)
	require.NoError(t, err)
	second, err := mRepo.GetPairByInvoiceID(context.Background(), 1)
	require.NoError(t, err)

	// The rerun reproduces the pair exactly, and still exactly one pair.
	assert.Equal(t, first, second)
	summary, err := svc.GetSummary(context.Background(), "all", 50, 0)
	require.NoError(t, err)
	assert.Len(t, summary.Pairs, 1)
}

func TestGetPairForInvoice_NotFound(t *testing.T) {
	svc := newTestService(&fakeInvoiceRepo{}, &fakeDeliveryRepo{}, newFakeMatchingRepo())

	_, err := svc.GetPairForInvoice(context.Background(), 5)
	assert.ErrorIs(t, err, port.ErrNotFound)
}
