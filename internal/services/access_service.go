// internal/services/access_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/contentref"
	"github.com/javajoker/songgate/internal/i18n"
	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// ContentPresigner turns an object reference into a short-lived download URL.
type ContentPresigner interface {
	PresignObject(bucket, key string, expiration time.Duration) (string, error)
}

// Access is the answer to "what may this caller see". Pending and
// unauthorized callers get a reason, not an error.
type Access struct {
	Kind             models.AccessKind `json:"kind"`
	ContentReference string            `json:"content_reference,omitempty"`
	ContentKind      string            `json:"content_kind,omitempty"`
	DownloadURL      string            `json:"download_url,omitempty"`
	Location         string            `json:"location,omitempty"`
	EncryptedKey     string            `json:"encrypted_key,omitempty"`
	Reason           string            `json:"reason"`
}

type AccessService struct {
	store      store.Store
	presigner  ContentPresigner
	presignTTL time.Duration
	log        *logrus.Entry
}

func NewAccessService(st store.Store, presigner ContentPresigner, presignTTL time.Duration, logger *logrus.Logger) *AccessService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &AccessService{
		store:      st,
		presigner:  presigner,
		presignTTL: presignTTL,
		log:        logger.WithField("component", "access"),
	}
}

// ResolveAccess applies the rules in order: owner, confirmed buyer, pending
// buyer, everyone else.
func (s *AccessService) ResolveAccess(ctx context.Context, listingID uuid.UUID, caller models.AccountID, lang string) (*Access, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "listing not found", nil)
		}
		return nil, err
	}

	if caller == listing.Owner {
		access := s.contentAccess(listing, models.AccessOwner)
		access.Reason = i18n.T(lang, i18n.KeyAccessOwner)
		return access, nil
	}

	record, err := s.store.GetBuyer(ctx, listingID, caller)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	switch {
	case record != nil && record.State == models.BuyerStateConfirmed:
		access := s.contentAccess(listing, models.AccessConfirmed)
		access.Location = record.Location
		access.EncryptedKey = record.EncryptedKey
		access.Reason = i18n.T(lang, i18n.KeyAccessConfirmed)
		return access, nil
	case record != nil && record.State == models.BuyerStateIntent:
		return &Access{Kind: models.AccessPending, Reason: i18n.T(lang, i18n.KeyAccessPending)}, nil
	default:
		return &Access{Kind: models.AccessUnauthorized, Reason: i18n.T(lang, i18n.KeyAccessUnauthorized)}, nil
	}
}

func (s *AccessService) contentAccess(listing *models.Listing, kind models.AccessKind) *Access {
	access := &Access{
		Kind:             kind,
		ContentReference: listing.ContentReference,
		ContentKind:      listing.ContentKind,
	}

	ref, err := contentref.Parse(listing.ContentReference)
	if err != nil || ref.Kind != contentref.KindS3 || s.presigner == nil {
		return access
	}
	url, err := s.presigner.PresignObject(ref.Bucket, ref.Key, s.presignTTL)
	if err != nil {
		s.log.WithError(err).WithField("listing_id", listing.ID.String()).Warn("failed to presign content")
		return access
	}
	access.DownloadURL = url
	return access
}
