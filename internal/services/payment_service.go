// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/transfer"
	"github.com/stripe/stripe-go/v74/transferreversal"

	"github.com/javajoker/songgate/internal/config"
	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// StripeAPI is the subset of the Stripe client used by StripeRail.
type StripeAPI interface {
	GetPaymentIntent(id string) (*stripe.PaymentIntent, error)
	NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	NewTransfer(params *stripe.TransferParams) (*stripe.Transfer, error)
	ReverseTransfer(params *stripe.TransferReversalParams) (*stripe.TransferReversal, error)
}

type stripeClient struct{}

func (stripeClient) GetPaymentIntent(id string) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, nil)
}

func (stripeClient) NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (stripeClient) NewTransfer(params *stripe.TransferParams) (*stripe.Transfer, error) {
	return transfer.New(params)
}

func (stripeClient) ReverseTransfer(params *stripe.TransferReversalParams) (*stripe.TransferReversal, error) {
	return transferreversal.New(params)
}

// StripeRail settles purchases through Stripe: buyers pay with a
// PaymentIntent and publishers are paid with Connect transfers.
type StripeRail struct {
	api      StripeAPI
	currency string
	log      *logrus.Entry
}

type PaymentIntentResponse struct {
	ClientSecret string        `json:"client_secret"`
	PaymentID    string        `json:"payment_id"`
	Status       string        `json:"status"`
	Amount       models.Amount `json:"amount"`
}

func NewStripeRail(cfg *config.Config, logger *logrus.Logger) *StripeRail {
	// Initialize Stripe
	stripe.Key = cfg.Payment.StripeSecretKey

	return newStripeRail(stripeClient{}, cfg.Payment.Currency, logger)
}

func newStripeRail(api StripeAPI, currency string, logger *logrus.Logger) *StripeRail {
	if currency == "" {
		currency = "usd"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StripeRail{
		api:      api,
		currency: currency,
		log:      logger.WithField("rail", "stripe"),
	}
}

func (r *StripeRail) Name() string { return "stripe" }

// CreatePaymentIntent starts a payment for required, tagged with the buyer
// and listing so Attach can check who paid for what.
func (r *StripeRail) CreatePaymentIntent(ctx context.Context, listing *models.Listing, buyer models.AccountID, required models.Amount) (*PaymentIntentResponse, error) {
	cents, ok := required.Uint64()
	if !ok || cents > 1<<62 {
		return nil, newError(KindInvalidRequest, "amount too large for card payments", nil)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(cents)),
		Currency:      stripe.String(r.currency),
		TransferGroup: stripe.String(models.EscrowAccount(listing.ID).String()),
	}
	params.AddMetadata("buyer_id", buyer.String())
	params.AddMetadata("listing_id", listing.ID.String())

	pi, err := r.api.NewPaymentIntent(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Status:       string(pi.Status),
		Amount:       required,
	}, nil
}

// Attach accepts a succeeded PaymentIntent made by buyer for this listing.
// Anything else counts as nothing attached.
func (r *StripeRail) Attach(ctx context.Context, tx store.Store, listing *models.Listing, buyer models.AccountID, proof PaymentProof) (models.Amount, error) {
	if proof.Reference == "" {
		return models.Amount{}, nil
	}

	pi, err := r.api.GetPaymentIntent(proof.Reference)
	if err != nil {
		return models.Amount{}, fmt.Errorf("failed to get payment intent: %w", err)
	}

	entry := r.log.WithFields(logrus.Fields{"payment_intent": pi.ID, "buyer": buyer.String()})
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		entry.WithField("status", pi.Status).Info("payment intent not settled")
		return models.Amount{}, nil
	}
	if pi.Metadata["buyer_id"] != buyer.String() {
		entry.Warn("payment intent belongs to another buyer")
		return models.Amount{}, nil
	}
	if id, ok := pi.Metadata["listing_id"]; ok && id != listing.ID.String() {
		entry.Warn("payment intent was made for another listing")
		return models.Amount{}, nil
	}
	if pi.AmountReceived <= 0 {
		return models.Amount{}, nil
	}

	if err := tx.MarkPaymentUsed(ctx, r.Name(), pi.ID); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			entry.Warn("payment intent already used")
			return models.Amount{}, nil
		}
		return models.Amount{}, err
	}

	return models.NewAmount(uint64(pi.AmountReceived)), nil
}

func (r *StripeRail) Transfer(ctx context.Context, tx store.Store, from, to models.AccountID, amount models.Amount) (*TransferReceipt, error) {
	if amount.IsZero() {
		return &TransferReceipt{Rail: r.Name(), From: from, To: to, Amount: amount}, nil
	}
	cents, ok := amount.Uint64()
	if !ok || cents > 1<<62 {
		return nil, fmt.Errorf("amount %s too large for a transfer", amount)
	}

	user, err := tx.GetUserByID(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("payout account %s: %w", to, err)
	}
	destination := user.StripeAccountID()
	if destination == "" {
		return nil, fmt.Errorf("user %s has no connected stripe account", to)
	}

	tr, err := r.api.NewTransfer(&stripe.TransferParams{
		Amount:        stripe.Int64(int64(cents)),
		Currency:      stripe.String(r.currency),
		Destination:   stripe.String(destination),
		TransferGroup: stripe.String(from.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	r.log.WithFields(logrus.Fields{"transfer": tr.ID, "to": to.String(), "amount": amount.String()}).Info("transfer created")
	return &TransferReceipt{Rail: r.Name(), Reference: tr.ID, From: from, To: to, Amount: amount}, nil
}

func (r *StripeRail) Reverse(ctx context.Context, receipt *TransferReceipt) error {
	if receipt == nil || receipt.Reference == "" {
		return nil
	}
	if _, err := r.api.ReverseTransfer(&stripe.TransferReversalParams{ID: stripe.String(receipt.Reference)}); err != nil {
		return fmt.Errorf("failed to reverse transfer %s: %w", receipt.Reference, err)
	}
	r.log.WithField("transfer", receipt.Reference).Warn("transfer reversed")
	return nil
}
