// internal/services/receipt_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
	"github.com/javajoker/songgate/internal/utils"
)

// ReceiptService issues and verifies the public codes that prove a purchase
// was confirmed, without revealing the delivered key.
type ReceiptService struct {
	store store.Store
}

func NewReceiptService(st store.Store) *ReceiptService {
	return &ReceiptService{store: st}
}

// Issue derives a code from the confirmation data and a random nonce.
func (s *ReceiptService) Issue(listing *models.Listing, record *models.BuyerRecord, confirmedAt time.Time) (string, error) {
	nonce, err := utils.ReceiptNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate receipt nonce: %w", err)
	}

	recordData := map[string]interface{}{
		"type":       "purchase_confirmation",
		"listing_id": listing.ID.String(),
		"buyer":      record.Account.String(),
		"escrowed":   record.Escrowed.String(),
		"timestamp":  confirmedAt.UnixNano(),
		"nonce":      nonce,
	}
	// fmt prints map keys sorted, which keeps the digest stable
	return utils.HashString(fmt.Sprintf("%+v", recordData))[:32], nil
}

func (s *ReceiptService) Verify(ctx context.Context, code string) (*models.Receipt, error) {
	record, err := s.store.GetBuyerByReceipt(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "invalid receipt code", nil)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if record.State != models.BuyerStateConfirmed {
		return nil, newError(KindNotFound, "invalid receipt code", nil)
	}

	listing, err := s.store.GetListing(ctx, record.ListingID)
	if err != nil {
		return nil, fmt.Errorf("receipt listing: %w", err)
	}

	return &models.Receipt{
		Code:        code,
		ListingID:   listing.ID,
		Buyer:       record.Account,
		SongName:    listing.Metadata.Name,
		Artist:      listing.Metadata.Artist,
		Paid:        record.Escrowed,
		ConfirmedAt: record.ConfirmedAt,
		Valid:       true,
	}, nil
}
