// internal/services/payment_rail.go
package services

import (
	"context"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// PaymentProof is what a buyer submits with a purchase. The ledger rail reads
// Amount; the stripe rail reads Reference, a PaymentIntent id.
type PaymentProof struct {
	Amount    models.Amount `json:"amount"`
	Reference string        `json:"reference,omitempty"`
}

// TransferReceipt identifies a completed native transfer so it can be
// reversed.
type TransferReceipt struct {
	Rail      string
	Reference string
	From      models.AccountID
	To        models.AccountID
	Amount    models.Amount
}

// PaymentRail is the host payment environment: it tells how much value a
// buyer attached to a call and moves value out of escrow.
type PaymentRail interface {
	Name() string
	// Attach places the buyer's payment in the listing's escrow account and
	// returns the attached value.
	Attach(ctx context.Context, tx store.Store, listing *models.Listing, buyer models.AccountID, proof PaymentProof) (models.Amount, error)
	Transfer(ctx context.Context, tx store.Store, from, to models.AccountID, amount models.Amount) (*TransferReceipt, error)
	// Reverse undoes a transfer made outside the store transaction. Rails
	// whose transfers roll back with the transaction do nothing.
	Reverse(ctx context.Context, receipt *TransferReceipt) error
}

// LedgerRail pays with balances on the internal ledger.
type LedgerRail struct {
	ledger *LedgerService
}

func NewLedgerRail(ledger *LedgerService) *LedgerRail {
	return &LedgerRail{ledger: ledger}
}

func (r *LedgerRail) Name() string { return "ledger" }

func (r *LedgerRail) Attach(ctx context.Context, tx store.Store, listing *models.Listing, buyer models.AccountID, proof PaymentProof) (models.Amount, error) {
	if proof.Amount.IsZero() {
		return models.Amount{}, nil
	}
	if err := r.ledger.TransferTx(ctx, tx, buyer, models.EscrowAccount(listing.ID), proof.Amount); err != nil {
		return models.Amount{}, err
	}
	return proof.Amount, nil
}

func (r *LedgerRail) Transfer(ctx context.Context, tx store.Store, from, to models.AccountID, amount models.Amount) (*TransferReceipt, error) {
	if err := r.ledger.TransferTx(ctx, tx, from, to, amount); err != nil {
		return nil, err
	}
	return &TransferReceipt{Rail: r.Name(), From: from, To: to, Amount: amount}, nil
}

func (r *LedgerRail) Reverse(ctx context.Context, receipt *TransferReceipt) error {
	return nil
}
