// internal/services/notification_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// NotificationService appends events to the store so off-service clients can
// follow listings, and mirrors each one to the structured log.
type NotificationService struct {
	store store.Store
	log   *logrus.Entry
}

func NewNotificationService(st store.Store, logger *logrus.Logger) *NotificationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NotificationService{
		store: st,
		log:   logger.WithField("component", "notifications"),
	}
}

// Emit records an event inside tx so it is dropped along with a failed
// operation.
func (s *NotificationService) Emit(ctx context.Context, tx store.Store, listingID *uuid.UUID, kind models.EventKind, payload models.JSONB) error {
	event := &models.Event{
		ListingID: listingID,
		Kind:      kind,
		Payload:   payload,
	}
	if err := tx.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", kind, err)
	}

	fields := logrus.Fields{"event": kind, "event_id": event.ID}
	if listingID != nil {
		fields["listing_id"] = listingID.String()
	}
	for k, v := range payload {
		fields[k] = v
	}
	s.log.WithFields(fields).Debug("event emitted")
	return nil
}

// ListEvents returns the newest events first. A nil listingID lists every
// event, including ledger events.
func (s *NotificationService) ListEvents(ctx context.Context, listingID *uuid.UUID, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := s.store.ListEvents(ctx, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	return events, nil
}
