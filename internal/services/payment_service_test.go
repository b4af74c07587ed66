package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
	"github.com/javajoker/songgate/internal/store/memory"
)

type fakeStripe struct {
	intents   map[string]*stripe.PaymentIntent
	created   []*stripe.PaymentIntentParams
	transfers []*stripe.TransferParams
	reversed  []string
	failAfter int // transfers allowed before failing; negative never fails
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{intents: make(map[string]*stripe.PaymentIntent), failAfter: -1}
}

func (f *fakeStripe) GetPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	pi, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return pi, nil
}

func (f *fakeStripe) NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = append(f.created, params)
	return &stripe.PaymentIntent{
		ID:           "pi_new",
		ClientSecret: "pi_new_secret",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Amount:       *params.Amount,
	}, nil
}

func (f *fakeStripe) NewTransfer(params *stripe.TransferParams) (*stripe.Transfer, error) {
	if f.failAfter >= 0 && len(f.transfers) >= f.failAfter {
		return nil, errors.New("insufficient platform balance")
	}
	f.transfers = append(f.transfers, params)
	return &stripe.Transfer{ID: "tr_" + stripe.StringValue(params.Destination)}, nil
}

func (f *fakeStripe) ReverseTransfer(params *stripe.TransferReversalParams) (*stripe.TransferReversal, error) {
	f.reversed = append(f.reversed, stripe.StringValue(params.ID))
	return &stripe.TransferReversal{}, nil
}

func (f *fakeStripe) succeeded(id string, buyer models.AccountID, listing *models.Listing, amount int64) {
	f.intents[id] = &stripe.PaymentIntent{
		ID:             id,
		Status:         stripe.PaymentIntentStatusSucceeded,
		AmountReceived: amount,
		Metadata: map[string]string{
			"buyer_id":   buyer.String(),
			"listing_id": listing.ID.String(),
		},
	}
}

func TestStripeCreatePaymentIntent(t *testing.T) {
	api := newFakeStripe()
	rail := newStripeRail(api, "", testLogger())
	listing := &models.Listing{BaseModel: models.BaseModel{ID: uuid.New()}, Price: models.NewAmount(100), CommissionRate: 10}
	buyer := uuid.New()

	required, _, err := RequiredPayment(listing)
	require.NoError(t, err)
	resp, err := rail.CreatePaymentIntent(context.Background(), listing, buyer, required)
	require.NoError(t, err)
	assert.Equal(t, "pi_new_secret", resp.ClientSecret)
	assert.Equal(t, "110", resp.Amount.String())

	require.Len(t, api.created, 1)
	params := api.created[0]
	assert.Equal(t, int64(110), *params.Amount)
	assert.Equal(t, "usd", *params.Currency)
	assert.Equal(t, buyer.String(), params.Metadata["buyer_id"])
	assert.Equal(t, models.EscrowAccount(listing.ID).String(), *params.TransferGroup)

	_, err = rail.CreatePaymentIntent(context.Background(), listing, buyer, models.MustAmount("18446744073709551616"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStripeAttach(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	api := newFakeStripe()
	rail := newStripeRail(api, "usd", testLogger())
	listing := &models.Listing{BaseModel: models.BaseModel{ID: uuid.New()}}
	buyer := uuid.New()

	api.succeeded("pi_ok", buyer, listing, 110)
	api.succeeded("pi_other_buyer", uuid.New(), listing, 110)
	api.intents["pi_pending"] = &stripe.PaymentIntent{ID: "pi_pending", Status: stripe.PaymentIntentStatusProcessing}

	attached, err := rail.Attach(ctx, st, listing, buyer, PaymentProof{Reference: "pi_ok"})
	require.NoError(t, err)
	assert.Equal(t, "110", attached.String())

	// a payment intent pays for one purchase only
	attached, err = rail.Attach(ctx, st, listing, buyer, PaymentProof{Reference: "pi_ok"})
	require.NoError(t, err)
	assert.True(t, attached.IsZero())

	attached, err = rail.Attach(ctx, st, listing, buyer, PaymentProof{Reference: "pi_other_buyer"})
	require.NoError(t, err)
	assert.True(t, attached.IsZero())

	attached, err = rail.Attach(ctx, st, listing, buyer, PaymentProof{Reference: "pi_pending"})
	require.NoError(t, err)
	assert.True(t, attached.IsZero())

	attached, err = rail.Attach(ctx, st, listing, buyer, PaymentProof{Amount: models.NewAmount(500)})
	require.NoError(t, err)
	assert.True(t, attached.IsZero())

	_, err = rail.Attach(ctx, st, listing, buyer, PaymentProof{Reference: "pi_missing"})
	assert.Error(t, err)
}

func TestStripeSettlement(t *testing.T) {
	api := newFakeStripe()
	env := newTestEnv(t, nil, func(PaymentRail) PaymentRail {
		return newStripeRail(api, "usd", testLogger())
	})

	artist := &models.User{Username: "artist", Email: "artist@example.com", ProfileData: models.JSONB{"stripe_account_id": "acct_artist"}}
	collector := &models.User{Username: "collector", Email: "collector@example.com", ProfileData: models.JSONB{"stripe_account_id": "acct_collector"}}
	require.NoError(t, env.store.CreateUser(env.ctx, artist))
	require.NoError(t, env.store.CreateUser(env.ctx, collector))
	buyer := uuid.New()

	listing := env.publish(t, artist.ID, 100, &collector.ID)
	api.succeeded("pi_buy", buyer, listing, 110)
	_, err := env.registry.PostIntent(env.ctx, listing.ID, buyer, &BuyIntentRequest{
		PublicKey: "pk",
		Payment:   PaymentProof{Reference: "pi_buy"},
	})
	require.NoError(t, err)

	_, err = env.confirm(listing, buyer, artist.ID)
	require.NoError(t, err)
	require.Len(t, api.transfers, 2)
	assert.Equal(t, "acct_artist", stripe.StringValue(api.transfers[0].Destination))
	assert.Equal(t, int64(100), stripe.Int64Value(api.transfers[0].Amount))
	assert.Equal(t, "acct_collector", stripe.StringValue(api.transfers[1].Destination))
	assert.Equal(t, int64(10), stripe.Int64Value(api.transfers[1].Amount))
	assert.Empty(t, api.reversed)
}

func TestStripeCommissionFailureReversesPrincipal(t *testing.T) {
	api := newFakeStripe()
	api.failAfter = 1
	env := newTestEnv(t, nil, func(PaymentRail) PaymentRail {
		return newStripeRail(api, "usd", testLogger())
	})

	artist := &models.User{Username: "artist", Email: "artist@example.com", ProfileData: models.JSONB{"stripe_account_id": "acct_artist"}}
	require.NoError(t, env.store.CreateUser(env.ctx, artist))
	buyer := uuid.New()

	listing := env.publish(t, artist.ID, 100, nil)
	api.succeeded("pi_buy", buyer, listing, 110)
	_, err := env.registry.PostIntent(env.ctx, listing.ID, buyer, &BuyIntentRequest{
		PublicKey: "pk",
		Payment:   PaymentProof{Reference: "pi_buy"},
	})
	require.NoError(t, err)

	_, err = env.confirm(listing, buyer, artist.ID)
	assert.ErrorIs(t, err, ErrContractReportInsertionFailed)
	assert.Equal(t, []string{"tr_acct_artist"}, api.reversed)
	assert.Equal(t, models.BuyerStateIntent, env.state(t, listing, buyer))
}

// stripeEnv is a stripe-rail environment with a paid intent from buyer on a
// listing by artist whose commission goes to collector.
func stripeEnv(t *testing.T, api *fakeStripe, reporter Reporter) (*testEnv, *models.Listing, *models.User, models.AccountID) {
	t.Helper()
	env := newTestEnv(t, reporter, func(PaymentRail) PaymentRail {
		return newStripeRail(api, "usd", testLogger())
	})

	artist := &models.User{Username: "artist", Email: "artist@example.com", ProfileData: models.JSONB{"stripe_account_id": "acct_artist"}}
	collector := &models.User{Username: "collector", Email: "collector@example.com", ProfileData: models.JSONB{"stripe_account_id": "acct_collector"}}
	require.NoError(t, env.store.CreateUser(env.ctx, artist))
	require.NoError(t, env.store.CreateUser(env.ctx, collector))
	buyer := uuid.New()

	listing := env.publish(t, artist.ID, 100, &collector.ID)
	api.succeeded("pi_buy", buyer, listing, 110)
	_, err := env.registry.PostIntent(env.ctx, listing.ID, buyer, &BuyIntentRequest{
		PublicKey: "pk",
		Payment:   PaymentProof{Reference: "pi_buy"},
	})
	require.NoError(t, err)
	return env, listing, artist, buyer
}

// cancellingReporter reports and then cancels the confirming request.
type cancellingReporter struct {
	next   Reporter
	cancel context.CancelFunc
}

func (r *cancellingReporter) Report(ctx context.Context, call ReportCall) (*ReportReceipt, error) {
	receipt, err := r.next.Report(ctx, call)
	r.cancel()
	return receipt, err
}

func TestStripeConfirmSurvivesCancelAfterPayout(t *testing.T) {
	api := newFakeStripe()
	reporter := &cancellingReporter{}
	env, listing, artist, buyer := stripeEnv(t, api, reporter)
	reporter.next = NewLocalReporter(env.reports)

	ctx, cancel := context.WithCancel(context.Background())
	reporter.cancel = cancel
	req := &ConfirmBuyerRequest{EncryptedKey: "k1", Location: "Qm123"}

	result, err := env.registry.ConfirmBuyer(ctx, listing.ID, buyer, artist.ID, req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ReceiptCode)
	assert.Len(t, api.transfers, 2)
	assert.Empty(t, api.reversed)
	assert.Equal(t, models.BuyerStateConfirmed, env.state(t, listing, buyer))

	_, err = env.registry.ConfirmBuyer(context.Background(), listing.ID, buyer, artist.ID, req)
	assert.ErrorIs(t, err, ErrNotOnPossibleBuyersList)
	assert.Len(t, api.transfers, 2)
}

func TestStripeConfirmCancelledBeforePayout(t *testing.T) {
	api := newFakeStripe()
	env, listing, artist, buyer := stripeEnv(t, api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.registry.ConfirmBuyer(ctx, listing.ID, buyer, artist.ID, &ConfirmBuyerRequest{EncryptedKey: "k1", Location: "Qm123"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.transfers)
	assert.Equal(t, models.BuyerStateIntent, env.state(t, listing, buyer))
}

// confirmRejectingStore fails to persist confirmed buyers, as a commit
// failure after settlement would.
type confirmRejectingStore struct {
	store.Store
}

func (s confirmRejectingStore) Tx(ctx context.Context, fn func(store.Store) error) error {
	return s.Store.Tx(ctx, func(tx store.Store) error {
		return fn(confirmRejectingStore{tx})
	})
}

func (s confirmRejectingStore) SaveBuyer(ctx context.Context, b *models.BuyerRecord) error {
	if b.State == models.BuyerStateConfirmed {
		return errors.New("database is read-only")
	}
	return s.Store.SaveBuyer(ctx, b)
}

func TestStripeUncommittedConfirmReversesPayouts(t *testing.T) {
	api := newFakeStripe()
	env, listing, artist, buyer := stripeEnv(t, api, nil)
	registry := NewRegistryService(confirmRejectingStore{env.store}, env.registry.escrow, NewReceiptService(env.store), env.notifier, testLogger())
	req := &ConfirmBuyerRequest{EncryptedKey: "k1", Location: "Qm123"}

	_, err := registry.ConfirmBuyer(env.ctx, listing.ID, buyer, artist.ID, req)
	require.ErrorContains(t, err, "read-only")
	require.Len(t, api.transfers, 2)
	assert.Equal(t, []string{"tr_acct_collector", "tr_acct_artist"}, api.reversed)
	assert.Equal(t, models.BuyerStateIntent, env.state(t, listing, buyer))

	// a retry on a healthy store pays once more, against the reversed payouts
	_, err = env.registry.ConfirmBuyer(env.ctx, listing.ID, buyer, artist.ID, req)
	require.NoError(t, err)
	assert.Len(t, api.transfers, 4)
	assert.Len(t, api.reversed, 2)
}
