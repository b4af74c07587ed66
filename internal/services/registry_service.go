// internal/services/registry_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// RegistryService is the two-phase buyer state machine of every listing:
// absent -> intent -> confirmed, never backwards.
type RegistryService struct {
	store    store.Store
	escrow   *EscrowService
	receipts *ReceiptService
	notifier *NotificationService
	log      *logrus.Entry

	// settling holds the buyers whose confirmation is running, so a call that
	// re-enters during settlement cannot settle the same escrow twice.
	settling sync.Map
}

type BuyIntentRequest struct {
	PublicKey string       `json:"public_key" validate:"required,max=4096"`
	Payment   PaymentProof `json:"payment"`
}

type ConfirmBuyerRequest struct {
	EncryptedKey string `json:"encrypted_key" validate:"required,max=8192"`
	Location     string `json:"location" validate:"required,max=1024"`
}

type ConfirmResult struct {
	Buyer       *models.BuyerRecord `json:"buyer"`
	Settlement  *Settlement         `json:"settlement"`
	ReceiptCode string              `json:"receipt_code"`
}

type settlingKey struct {
	listing uuid.UUID
	account models.AccountID
}

func NewRegistryService(st store.Store, escrow *EscrowService, receipts *ReceiptService, notifier *NotificationService, logger *logrus.Logger) *RegistryService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RegistryService{
		store:    st,
		escrow:   escrow,
		receipts: receipts,
		notifier: notifier,
		log:      logger.WithField("component", "registry"),
	}
}

func (s *RegistryService) getListing(ctx context.Context, st store.Store, id uuid.UUID) (*models.Listing, error) {
	listing, err := st.GetListing(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "listing not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return listing, nil
}

func (s *RegistryService) getBuyer(ctx context.Context, st store.Store, listingID uuid.UUID, account models.AccountID) (*models.BuyerRecord, error) {
	record, err := st.GetBuyer(ctx, listingID, account)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load buyer: %w", err)
	}
	return record, nil
}

// PostIntent escrows the caller's payment and records their public key.
func (s *RegistryService) PostIntent(ctx context.Context, listingID uuid.UUID, caller models.AccountID, req *BuyIntentRequest) (*models.BuyerRecord, error) {
	if strings.TrimSpace(req.PublicKey) == "" {
		return nil, newError(KindInvalidRequest, "public key is required", nil)
	}

	var record *models.BuyerRecord
	err := store.FromContext(ctx, s.store).Tx(ctx, func(tx store.Store) error {
		listing, err := s.getListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if caller == listing.Owner {
			return newError(KindCallerIsOwner, "the publisher cannot buy their own song", nil)
		}

		existing, err := s.getBuyer(ctx, tx, listingID, caller)
		if err != nil {
			return err
		}
		if existing != nil {
			return newError(KindAlreadyOnList, fmt.Sprintf("account is already %s", existing.State), nil)
		}

		escrowed, err := s.escrow.ValidateAndEscrow(ctx, tx, listing, caller, req.Payment)
		if err != nil {
			return err
		}

		record = &models.BuyerRecord{
			ListingID:  listingID,
			Account:    caller,
			State:      models.BuyerStateIntent,
			PublicKey:  req.PublicKey,
			Escrowed:   escrowed.Attached,
			Commission: escrowed.Commission,
			PaymentRef: escrowed.Reference,
		}
		if err := tx.SaveBuyer(ctx, record); err != nil {
			return fmt.Errorf("failed to save intent: %w", err)
		}

		return s.notifier.Emit(ctx, tx, &listingID, models.EventBuyIntent, models.JSONB{
			"buyer":      caller.String(),
			"owner":      listing.Owner.String(),
			"listing_id": listingID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetPendingKey hands the owner a pending buyer's public key.
func (s *RegistryService) GetPendingKey(ctx context.Context, listingID uuid.UUID, account, requester models.AccountID) (string, error) {
	st := store.FromContext(ctx, s.store)
	listing, err := s.getListing(ctx, st, listingID)
	if err != nil {
		return "", err
	}
	if requester != listing.Owner {
		return "", newError(KindCallerIsNotOwner, "only the publisher can read pending keys", nil)
	}

	record, err := s.getBuyer(ctx, st, listingID, account)
	if err != nil {
		return "", err
	}
	if record == nil || record.State != models.BuyerStateIntent {
		return "", newError(KindNotOnPossibleBuyersList, "account has no pending purchase", nil)
	}
	return record.PublicKey, nil
}

// ConfirmBuyer settles a pending purchase and, only once every payment step
// has succeeded, records the delivery for the buyer. Once payouts have left
// escrow the confirmation no longer follows the caller's cancellation; if it
// still fails to commit, the payouts are reversed.
func (s *RegistryService) ConfirmBuyer(ctx context.Context, listingID uuid.UUID, account, requester models.AccountID, req *ConfirmBuyerRequest) (*ConfirmResult, error) {
	key := settlingKey{listingID, account}
	if _, busy := s.settling.LoadOrStore(key, struct{}{}); busy {
		return nil, newError(KindNotOnPossibleBuyersList, "confirmation already in progress", nil)
	}
	defer s.settling.Delete(key)

	commitCtx := context.WithoutCancel(ctx)
	var (
		result  *ConfirmResult
		settled *Settlement
	)
	err := store.FromContext(ctx, s.store).Tx(commitCtx, func(tx store.Store) error {
		listing, err := s.getListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if requester != listing.Owner {
			return newError(KindCallerIsNotOwner, "only the publisher can confirm buyers", nil)
		}

		record, err := s.getBuyer(ctx, tx, listingID, account)
		if err != nil {
			return err
		}
		if record == nil || record.State != models.BuyerStateIntent {
			return newError(KindNotOnPossibleBuyersList, "account has no pending purchase", nil)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		settled, err = s.escrow.Settle(ctx, tx, listing, record)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		code, err := s.receipts.Issue(listing, record, now)
		if err != nil {
			return err
		}

		record.State = models.BuyerStateConfirmed
		record.PublicKey = ""
		record.Location = req.Location
		record.EncryptedKey = req.EncryptedKey
		record.ReceiptCode = code
		record.ConfirmedAt = &now
		if err := tx.SaveBuyer(commitCtx, record); err != nil {
			return fmt.Errorf("failed to save confirmation: %w", err)
		}

		result = &ConfirmResult{Buyer: record, Settlement: settled, ReceiptCode: code}
		return s.notifier.Emit(commitCtx, tx, &listingID, models.EventBuyConfirmed, models.JSONB{
			"buyer":      account.String(),
			"artist":     listing.Owner.String(),
			"listing_id": listingID.String(),
		})
	})
	if err != nil {
		if settled != nil {
			s.log.WithError(err).WithField("listing_id", listingID.String()).Warn("confirmation not committed, reversing payouts")
			s.escrow.Unwind(commitCtx, settled)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"listing_id": listingID.String(),
		"buyer":      account.String(),
	}).Info("buyer confirmed")
	return result, nil
}

// RetrieveDelivery returns the confirmed delivery of the requester. Nobody
// can read another account's delivery.
func (s *RegistryService) RetrieveDelivery(ctx context.Context, listingID uuid.UUID, account, requester models.AccountID) (*models.Delivery, error) {
	if requester != account {
		return nil, newError(KindNotOnBuyersList, "deliveries are only visible to their buyer", nil)
	}

	st := store.FromContext(ctx, s.store)
	if _, err := s.getListing(ctx, st, listingID); err != nil {
		return nil, err
	}
	record, err := s.getBuyer(ctx, st, listingID, account)
	if err != nil {
		return nil, err
	}
	if record == nil || record.State != models.BuyerStateConfirmed {
		return nil, newError(KindNotOnBuyersList, "account has not bought this song", nil)
	}
	return &models.Delivery{Location: record.Location, EncryptedKey: record.EncryptedKey}, nil
}

// IsOnList reports whether account has a pending or confirmed purchase. The
// owner is never on the list.
func (s *RegistryService) IsOnList(ctx context.Context, listingID uuid.UUID, account models.AccountID) (bool, error) {
	listing, err := s.getListing(ctx, s.store, listingID)
	if err != nil {
		return false, err
	}
	if account == listing.Owner {
		return false, nil
	}
	record, err := s.getBuyer(ctx, s.store, listingID, account)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// State returns the buyer state of account, absent included.
func (s *RegistryService) State(ctx context.Context, listingID uuid.UUID, account models.AccountID) (models.BuyerState, error) {
	record, err := s.getBuyer(ctx, s.store, listingID, account)
	if err != nil {
		return "", err
	}
	if record == nil {
		return models.BuyerStateAbsent, nil
	}
	return record.State, nil
}

func (s *RegistryService) VerifyReceipt(ctx context.Context, code string) (*models.Receipt, error) {
	return s.receipts.Verify(ctx, code)
}

// ListTransactions shows the owner every value movement of a listing.
func (s *RegistryService) ListTransactions(ctx context.Context, listingID uuid.UUID, requester models.AccountID) ([]models.Transaction, error) {
	listing, err := s.getListing(ctx, s.store, listingID)
	if err != nil {
		return nil, err
	}
	if requester != listing.Owner {
		return nil, newError(KindCallerIsNotOwner, "only the publisher can list transactions", nil)
	}
	txs, err := s.store.ListTransactions(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return txs, nil
}
