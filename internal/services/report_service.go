// internal/services/report_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// ReportSelector identifies the "insert report" entry point of the reporting
// collaborator.
const ReportSelector = "a1b2c3d4"

// ReportCall is sent for every commission-bearing sale.
type ReportCall struct {
	Caller uuid.UUID        `json:"-"`
	Buyer  models.AccountID `json:"buyer"`
	Value  models.Amount    `json:"value"`
}

type ReportReceipt struct {
	ContentName string        `json:"content_name"`
	Amount      models.Amount `json:"amount"`
}

// Reporter is the external reporting collaborator. Any error aborts the
// purchase that triggered it.
type Reporter interface {
	Report(ctx context.Context, call ReportCall) (*ReportReceipt, error)
}

type ReportRequest struct {
	Selector string           `json:"selector" validate:"required,selector"`
	Buyer    models.AccountID `json:"buyer" validate:"required"`
	Value    models.Amount    `json:"value"`
}

// ReportService is the built-in reporting collaborator. It records each
// report and answers with the caller listing's song name.
type ReportService struct {
	store    store.Store
	notifier *NotificationService
	log      *logrus.Entry
}

func NewReportService(st store.Store, notifier *NotificationService, logger *logrus.Logger) *ReportService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReportService{store: st, notifier: notifier, log: logger.WithField("component", "reports")}
}

func (s *ReportService) Insert(ctx context.Context, caller uuid.UUID, req *ReportRequest) (*ReportReceipt, error) {
	if req.Selector != ReportSelector {
		return nil, newError(KindInvalidRequest, fmt.Sprintf("unknown selector %q", req.Selector), nil)
	}

	st := store.FromContext(ctx, s.store)

	var name string
	if caller != uuid.Nil {
		listing, err := st.GetListing(ctx, caller)
		switch {
		case err == nil:
			name = listing.Metadata.Name
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to load caller listing: %w", err)
		}
	}

	entry := &models.ReportEntry{
		Caller:      caller,
		Buyer:       req.Buyer,
		ContentName: name,
		Amount:      req.Value,
	}
	if err := st.CreateReportEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record report: %w", err)
	}
	if s.notifier != nil {
		var listingID *uuid.UUID
		if name != "" {
			listingID = &caller
		}
		if err := s.notifier.Emit(ctx, st, listingID, models.EventReportInserted, models.JSONB{
			"buyer":  req.Buyer.String(),
			"amount": req.Value.String(),
		}); err != nil {
			return nil, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"caller": caller.String(),
		"buyer":  req.Buyer.String(),
		"value":  req.Value.String(),
	}).Info("commission reported")

	return &ReportReceipt{ContentName: name, Amount: req.Value}, nil
}

// LocalReporter feeds reports straight into a ReportService in the same
// process. Entries join the caller's transaction when ctx carries one.
type LocalReporter struct {
	service *ReportService
}

func NewLocalReporter(service *ReportService) *LocalReporter {
	return &LocalReporter{service: service}
}

func (r *LocalReporter) Report(ctx context.Context, call ReportCall) (*ReportReceipt, error) {
	return r.service.Insert(ctx, call.Caller, &ReportRequest{
		Selector: ReportSelector,
		Buyer:    call.Buyer,
		Value:    call.Value,
	})
}
