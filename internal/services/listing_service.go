// internal/services/listing_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/contentref"
	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
	"github.com/javajoker/songgate/internal/utils"
)

// ListingService publishes songs and manages the few fields an owner may
// change afterwards: price, commission rate and report account.
type ListingService struct {
	store                 store.Store
	notifier              *NotificationService
	defaultCommissionRate uint32
	log                   *logrus.Entry
}

type PublishRequest struct {
	Name             string        `json:"name" validate:"required,max=255"`
	Artist           string        `json:"artist" validate:"max=255"`
	Album            string        `json:"album" validate:"max=255"`
	Duration         uint32        `json:"duration"`
	CoverReference   string        `json:"cover_reference" validate:"max=512"`
	ContentReference string        `json:"content_reference" validate:"required,max=512"`
	Price            models.Amount `json:"price"`
	CommissionRate   *uint32       `json:"commission_rate,omitempty"`
	ReportAccount    *uuid.UUID    `json:"report_account,omitempty"`
	Tags             []string      `json:"tags" validate:"max=20,dive,max=50"`
}

type UpdatePriceRequest struct {
	Price models.Amount `json:"price"`
}

type SetCommissionRequest struct {
	CommissionRate uint32 `json:"commission_rate"`
}

type SetReportAccountRequest struct {
	ReportAccount *uuid.UUID `json:"report_account"`
}

func NewListingService(st store.Store, notifier *NotificationService, defaultCommissionRate uint32, logger *logrus.Logger) *ListingService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ListingService{
		store:                 st,
		notifier:              notifier,
		defaultCommissionRate: defaultCommissionRate,
		log:                   logger.WithField("component", "listings"),
	}
}

// Publish creates a listing. Owner, metadata and content reference never
// change afterwards.
func (s *ListingService) Publish(ctx context.Context, owner models.AccountID, req *PublishRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, newError(KindInvalidRequest, "validation failed", err)
	}

	ref, err := contentref.Parse(req.ContentReference)
	if err != nil {
		return nil, newError(KindInvalidRequest, "invalid content reference", err)
	}

	rate := s.defaultCommissionRate
	if req.CommissionRate != nil {
		rate = *req.CommissionRate
	}

	listing := &models.Listing{
		Owner: owner,
		Metadata: models.SongMetadata{
			Name:           req.Name,
			Duration:       req.Duration,
			Artist:         req.Artist,
			Album:          req.Album,
			CoverReference: req.CoverReference,
		},
		Price:            req.Price,
		ContentReference: ref.Normalized,
		ContentKind:      ref.Describe(),
		CommissionRate:   rate,
		ReportAccount:    req.ReportAccount,
		Tags:             pq.StringArray(req.Tags),
	}
	if _, _, err := RequiredPayment(listing); err != nil {
		return nil, newError(KindInvalidRequest, "price plus commission does not fit in 128 bits", err)
	}

	err = s.store.Tx(ctx, func(tx store.Store) error {
		if err := tx.CreateListing(ctx, listing); err != nil {
			return fmt.Errorf("failed to create listing: %w", err)
		}
		return s.notifier.Emit(ctx, tx, &listing.ID, models.EventListingPublished, models.JSONB{
			"from":  owner.String(),
			"name":  listing.Metadata.Name,
			"value": listing.Price.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"listing_id": listing.ID.String(),
		"owner":      owner.String(),
		"content":    listing.ContentKind,
	}).Info("listing published")
	return listing, nil
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.store.GetListing(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(KindNotFound, "listing not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return listing, nil
}

// GetInfo is the public view: metadata and price, no content reference.
func (s *ListingService) GetInfo(ctx context.Context, id uuid.UUID) (*models.ListingInfo, error) {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ListingInfo{
		ID:       listing.ID,
		Owner:    listing.Owner,
		Metadata: listing.Metadata,
		Price:    listing.Price,
		Tags:     listing.Tags,
	}, nil
}

func (s *ListingService) ListByOwner(ctx context.Context, owner models.AccountID, params utils.PaginationParams) ([]*models.Listing, int64, error) {
	listings, total, err := s.store.ListListingsByOwner(ctx, owner, params.Offset(), params.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, total, nil
}

// update applies fn to a listing the requester owns.
func (s *ListingService) update(ctx context.Context, id uuid.UUID, requester models.AccountID, fn func(*models.Listing) (models.JSONB, error)) (*models.Listing, error) {
	var listing *models.Listing
	err := s.store.Tx(ctx, func(tx store.Store) error {
		var err error
		listing, err = tx.GetListing(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindNotFound, "listing not found", nil)
		}
		if err != nil {
			return fmt.Errorf("failed to load listing: %w", err)
		}
		if listing.Owner != requester {
			return newError(KindCallerIsNotOwner, "only the publisher can change this listing", nil)
		}

		changes, err := fn(listing)
		if err != nil {
			return err
		}
		if err := tx.UpdateListing(ctx, listing); err != nil {
			return fmt.Errorf("failed to update listing: %w", err)
		}
		return s.notifier.Emit(ctx, tx, &listing.ID, models.EventListingUpdated, changes)
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *ListingService) UpdatePrice(ctx context.Context, id uuid.UUID, requester models.AccountID, price models.Amount) (*models.Listing, error) {
	return s.update(ctx, id, requester, func(l *models.Listing) (models.JSONB, error) {
		l.Price = price
		if _, _, err := RequiredPayment(l); err != nil {
			return nil, newError(KindInvalidRequest, "price plus commission does not fit in 128 bits", err)
		}
		return models.JSONB{"price": price.String()}, nil
	})
}

func (s *ListingService) SetCommissionRate(ctx context.Context, id uuid.UUID, requester models.AccountID, rate uint32) (*models.Listing, error) {
	return s.update(ctx, id, requester, func(l *models.Listing) (models.JSONB, error) {
		l.CommissionRate = rate
		if _, _, err := RequiredPayment(l); err != nil {
			return nil, newError(KindInvalidRequest, "price plus commission does not fit in 128 bits", err)
		}
		return models.JSONB{"commission_rate": rate}, nil
	})
}

func (s *ListingService) SetReportAccount(ctx context.Context, id uuid.UUID, requester models.AccountID, account *uuid.UUID) (*models.Listing, error) {
	return s.update(ctx, id, requester, func(l *models.Listing) (models.JSONB, error) {
		l.ReportAccount = account
		var value interface{}
		if account != nil {
			value = account.String()
		}
		return models.JSONB{"report_account": value}, nil
	})
}
