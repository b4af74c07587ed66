package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
	"github.com/javajoker/songgate/internal/store/memory"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	ctx      context.Context
	store    *memory.Store
	notifier *NotificationService
	ledger   *LedgerService
	listings *ListingService
	reports  *ReportService
	registry *RegistryService
	access   *AccessService
}

// newTestEnv wires the services over a memory store with the ledger rail.
// A nil reporter means the built-in report service.
func newTestEnv(t *testing.T, reporter Reporter, wrapRail func(PaymentRail) PaymentRail) *testEnv {
	t.Helper()
	require.NoError(t, i18n.Initialize())

	st := memory.New()
	logger := testLogger()
	env := &testEnv{ctx: context.Background(), store: st}
	env.notifier = NewNotificationService(st, logger)
	env.ledger = NewLedgerService(st, env.notifier)
	env.reports = NewReportService(st, env.notifier, logger)

	var rail PaymentRail = NewLedgerRail(env.ledger)
	if wrapRail != nil {
		rail = wrapRail(rail)
	}
	if reporter == nil {
		reporter = NewLocalReporter(env.reports)
	}
	escrow := NewEscrowService(rail, reporter, time.Second, logger)
	env.registry = NewRegistryService(st, escrow, NewReceiptService(st), env.notifier, logger)
	env.listings = NewListingService(st, env.notifier, 10, logger)
	env.access = NewAccessService(st, nil, 0, logger)
	return env
}

func (e *testEnv) fund(t *testing.T, account models.AccountID, amount uint64) {
	t.Helper()
	_, err := e.ledger.Genesis(e.ctx, account, models.NewAmount(amount))
	require.NoError(t, err)
}

func (e *testEnv) publish(t *testing.T, owner models.AccountID, price uint64, reportAccount *uuid.UUID) *models.Listing {
	t.Helper()
	listing, err := e.listings.Publish(e.ctx, owner, &PublishRequest{
		Name:             "Canción",
		Artist:           "Artist",
		ContentReference: "s3://songs/cancion.flac",
		Price:            models.NewAmount(price),
		ReportAccount:    reportAccount,
	})
	require.NoError(t, err)
	return listing
}

func (e *testEnv) intent(listing *models.Listing, buyer models.AccountID, amount uint64) error {
	_, err := e.registry.PostIntent(e.ctx, listing.ID, buyer, &BuyIntentRequest{
		PublicKey: "pk-" + buyer.String(),
		Payment:   PaymentProof{Amount: models.NewAmount(amount)},
	})
	return err
}

func (e *testEnv) confirm(listing *models.Listing, buyer, requester models.AccountID) (*ConfirmResult, error) {
	return e.registry.ConfirmBuyer(e.ctx, listing.ID, buyer, requester, &ConfirmBuyerRequest{
		EncryptedKey: "k1",
		Location:     "Qm123",
	})
}

func (e *testEnv) balance(t *testing.T, account models.AccountID) string {
	t.Helper()
	amount, err := e.ledger.BalanceOf(e.ctx, account)
	require.NoError(t, err)
	return amount.String()
}

func (e *testEnv) state(t *testing.T, listing *models.Listing, account models.AccountID) models.BuyerState {
	t.Helper()
	state, err := e.registry.State(e.ctx, listing.ID, account)
	require.NoError(t, err)
	return state
}

type failingReporter struct {
	calls int
}

func (r *failingReporter) Report(ctx context.Context, call ReportCall) (*ReportReceipt, error) {
	r.calls++
	return nil, errors.New("report collaborator unavailable")
}

type countingReporter struct {
	next  Reporter
	calls []ReportCall
}

func (r *countingReporter) Report(ctx context.Context, call ReportCall) (*ReportReceipt, error) {
	r.calls = append(r.calls, call)
	return r.next.Report(ctx, call)
}

// failingRail rejects every payout but still accepts payments.
type failingRail struct {
	PaymentRail
}

func (r failingRail) Transfer(ctx context.Context, tx store.Store, from, to models.AccountID, amount models.Amount) (*TransferReceipt, error) {
	return nil, errors.New("payout rejected")
}
