// internal/services/escrow_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// EscrowService validates buyer payments against the listing price and later
// settles them: principal to the owner, commission to the reporting
// collaborator.
type EscrowService struct {
	rail          PaymentRail
	reporter      Reporter
	reportTimeout time.Duration
	log           *logrus.Entry
}

type EscrowResult struct {
	Attached   models.Amount
	Required   models.Amount
	Commission models.Amount
	Reference  string
}

type Settlement struct {
	Principal   models.Amount `json:"principal"`
	Commission  models.Amount `json:"commission"`
	ContentName string        `json:"content_name,omitempty"`

	payouts []*TransferReceipt
}

func NewEscrowService(rail PaymentRail, reporter Reporter, reportTimeout time.Duration, logger *logrus.Logger) *EscrowService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EscrowService{
		rail:          rail,
		reporter:      reporter,
		reportTimeout: reportTimeout,
		log:           logger.WithField("component", "escrow"),
	}
}

func (s *EscrowService) Rail() PaymentRail {
	return s.rail
}

// Commission is price / rate with integer division. A zero rate disables it.
func Commission(price models.Amount, rate uint32) models.Amount {
	if rate == 0 {
		return models.Amount{}
	}
	return price.Div(uint64(rate))
}

// RequiredPayment is the minimum a buyer must attach: price plus commission.
func RequiredPayment(listing *models.Listing) (models.Amount, models.Amount, error) {
	commission := Commission(listing.Price, listing.CommissionRate)
	required, err := listing.Price.Add(commission)
	if err != nil {
		return models.Amount{}, models.Amount{}, err
	}
	return required, commission, nil
}

// ValidateAndEscrow attaches the buyer's payment and fails with
// InsufficientBalance when it does not cover price plus commission.
func (s *EscrowService) ValidateAndEscrow(ctx context.Context, tx store.Store, listing *models.Listing, buyer models.AccountID, proof PaymentProof) (*EscrowResult, error) {
	required, commission, err := RequiredPayment(listing)
	if err != nil {
		return nil, newError(KindInsufficientBalance, "price is not payable", err)
	}

	attached, err := s.rail.Attach(ctx, tx, listing, buyer, proof)
	if err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("failed to attach payment: %w", err)
	}
	if attached.LessThan(required) {
		return nil, newError(KindInsufficientBalance, fmt.Sprintf("attached %s, required %s", attached, required), nil)
	}

	now := time.Now().UTC()
	if err := tx.CreateTransaction(ctx, &models.Transaction{
		TransactionType:  models.TransactionTypeEscrow,
		ListingID:        listing.ID,
		BuyerID:          buyer,
		From:             buyer,
		To:               models.EscrowAccount(listing.ID),
		Amount:           attached,
		PaymentMethod:    s.rail.Name(),
		PaymentReference: proof.Reference,
		ProcessedAt:      &now,
	}); err != nil {
		return nil, fmt.Errorf("failed to record escrow: %w", err)
	}

	return &EscrowResult{
		Attached:   attached,
		Required:   required,
		Commission: commission,
		Reference:  proof.Reference,
	}, nil
}

// Settle pays out an escrowed purchase. The steps run in order and the first
// failure stops the pipeline; transfers the rail made outside tx are reversed.
// A returned Settlement still holds its payouts: when tx later fails to
// commit, the caller must hand it to Unwind.
func (s *EscrowService) Settle(ctx context.Context, tx store.Store, listing *models.Listing, record *models.BuyerRecord) (*Settlement, error) {
	escrow := models.EscrowAccount(listing.ID)
	commission := record.Commission
	principal, err := record.Escrowed.Sub(commission)
	if err != nil {
		return nil, newError(KindTransferError, "escrowed amount below commission", err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"listing_id": listing.ID.String(),
		"buyer":      record.Account.String(),
		"principal":  principal.String(),
		"commission": commission.String(),
	})

	settlement := &Settlement{Principal: principal, Commission: commission}
	kinds := []models.TransactionType{models.TransactionTypePrincipal}

	receipt, err := s.rail.Transfer(ctx, tx, escrow, listing.Owner, principal)
	if err != nil {
		entry.WithError(err).Warn("principal transfer rejected")
		return nil, newError(KindTransferError, "principal transfer to owner rejected", err)
	}
	settlement.payouts = append(settlement.payouts, receipt)

	if !commission.IsZero() {
		receipt, err := s.rail.Transfer(ctx, tx, escrow, listing.CommissionRecipient(), commission)
		if err != nil {
			s.Unwind(ctx, settlement)
			entry.WithError(err).Warn("commission transfer rejected")
			return nil, newError(KindContractReportInsertionFailed, "commission transfer rejected", err)
		}
		settlement.payouts = append(settlement.payouts, receipt)
		kinds = append(kinds, models.TransactionTypeCommission)

		report, err := s.report(ctx, tx, ReportCall{Caller: listing.ID, Buyer: record.Account, Value: commission})
		if err != nil {
			s.Unwind(ctx, settlement)
			entry.WithError(err).Warn("report insertion failed")
			return nil, newError(KindContractReportInsertionFailed, "reporting collaborator failed", err)
		}
		settlement.ContentName = report.ContentName
	}

	now := time.Now().UTC()
	for i, p := range settlement.payouts {
		if err := tx.CreateTransaction(ctx, &models.Transaction{
			TransactionType:  kinds[i],
			ListingID:        listing.ID,
			BuyerID:          record.Account,
			From:             p.From,
			To:               p.To,
			Amount:           p.Amount,
			PaymentMethod:    s.rail.Name(),
			PaymentReference: p.Reference,
			ProcessedAt:      &now,
		}); err != nil {
			s.Unwind(ctx, settlement)
			return nil, fmt.Errorf("failed to record settlement: %w", err)
		}
	}

	entry.Info("purchase settled")
	return settlement, nil
}

// Unwind reverses the payouts of a settlement, newest first. It runs even when
// ctx is already cancelled.
func (s *EscrowService) Unwind(ctx context.Context, settlement *Settlement) {
	if settlement == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for i := len(settlement.payouts) - 1; i >= 0; i-- {
		if err := s.rail.Reverse(ctx, settlement.payouts[i]); err != nil {
			s.log.WithError(err).WithField("reference", settlement.payouts[i].Reference).Error("failed to reverse transfer")
		}
	}
	settlement.payouts = nil
}

func (s *EscrowService) report(ctx context.Context, tx store.Store, call ReportCall) (*ReportReceipt, error) {
	if s.reporter == nil {
		return nil, fmt.Errorf("no reporting collaborator configured")
	}
	ctx = store.ContextWithTx(ctx, tx)
	if s.reportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.reportTimeout)
		defer cancel()
	}
	receipt, err := s.reporter.Report(ctx, call)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("empty report receipt")
	}
	return receipt, nil
}
