// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/javajoker/songgate/internal/models"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the persistence boundary of the service. Every mutating service
// operation runs inside Tx; the Store handed to fn sees its own writes and
// is discarded when fn returns an error.
type Store interface {
	Tx(ctx context.Context, fn func(Store) error) error

	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	CreateListing(ctx context.Context, l *models.Listing) error
	UpdateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListListingsByOwner(ctx context.Context, owner models.AccountID, offset, limit int) ([]*models.Listing, int64, error)

	GetBuyer(ctx context.Context, listingID uuid.UUID, account models.AccountID) (*models.BuyerRecord, error)
	SaveBuyer(ctx context.Context, b *models.BuyerRecord) error
	GetBuyerByReceipt(ctx context.Context, code string) (*models.BuyerRecord, error)

	GetSupply(ctx context.Context) (*models.LedgerSupply, error)
	SaveSupply(ctx context.Context, s *models.LedgerSupply) error
	GetBalance(ctx context.Context, account models.AccountID) (models.Amount, error)
	SetBalance(ctx context.Context, account models.AccountID, amount models.Amount) error
	ListBalances(ctx context.Context) ([]models.LedgerBalance, error)
	GetAllowance(ctx context.Context, owner, spender models.AccountID) (models.Amount, error)
	SetAllowance(ctx context.Context, owner, spender models.AccountID, amount models.Amount) error

	AppendEvent(ctx context.Context, e *models.Event) error
	ListEvents(ctx context.Context, listingID *uuid.UUID, limit int) ([]models.Event, error)

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, listingID uuid.UUID) ([]models.Transaction, error)

	CreateReportEntry(ctx context.Context, r *models.ReportEntry) error
	CreateAuditLog(ctx context.Context, a *models.AuditLog) error

	// MarkPaymentUsed records an external payment reference and fails with
	// ErrAlreadyExists when it was recorded before.
	MarkPaymentUsed(ctx context.Context, rail, reference string) error
}
