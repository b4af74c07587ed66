// internal/store/gormstore/gormstore.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/store"
)

// Store implements store.Store on top of gorm. It works against postgres and
// sqlite; row locks are only requested where the dialect supports them.
type Store struct {
	db   *gorm.DB
	inTx bool
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Tx(ctx context.Context, fn func(store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// forUpdate locks the selected rows for the rest of the transaction.
func (s *Store) forUpdate(db *gorm.DB) *gorm.DB {
	if s.inTx && s.db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrAlreadyExists
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint") {
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return duplicate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) CreateListing(ctx context.Context, l *models.Listing) error {
	return duplicate(s.db.WithContext(ctx).Create(l).Error)
}

func (s *Store) UpdateListing(ctx context.Context, l *models.Listing) error {
	res := s.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", l.ID).Updates(map[string]interface{}{
		"price":           l.Price,
		"commission_rate": l.CommissionRate,
		"report_account":  l.ReportAccount,
		"tags":            l.Tags,
		"updated_at":      time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	if err := s.forUpdate(s.db.WithContext(ctx)).First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *Store) ListListingsByOwner(ctx context.Context, owner models.AccountID, offset, limit int) ([]*models.Listing, int64, error) {
	var (
		listings []*models.Listing
		total    int64
	)
	query := s.db.WithContext(ctx).Model(&models.Listing{}).Where("owner = ?", owner)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&listings).Error; err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func (s *Store) GetBuyer(ctx context.Context, listingID uuid.UUID, account models.AccountID) (*models.BuyerRecord, error) {
	var b models.BuyerRecord
	err := s.forUpdate(s.db.WithContext(ctx)).
		Where("listing_id = ? AND account = ?", listingID, account).
		First(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *Store) SaveBuyer(ctx context.Context, b *models.BuyerRecord) error {
	return s.db.WithContext(ctx).Save(b).Error
}

func (s *Store) GetBuyerByReceipt(ctx context.Context, code string) (*models.BuyerRecord, error) {
	var b models.BuyerRecord
	if err := s.db.WithContext(ctx).Where("receipt_code = ?", code).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *Store) GetSupply(ctx context.Context) (*models.LedgerSupply, error) {
	var supply models.LedgerSupply
	if err := s.forUpdate(s.db.WithContext(ctx)).First(&supply, "id = ?", 1).Error; err != nil {
		return nil, notFound(err)
	}
	return &supply, nil
}

func (s *Store) SaveSupply(ctx context.Context, supply *models.LedgerSupply) error {
	supply.ID = 1
	return duplicate(s.db.WithContext(ctx).Create(supply).Error)
}

func (s *Store) GetBalance(ctx context.Context, account models.AccountID) (models.Amount, error) {
	var row models.LedgerBalance
	err := s.forUpdate(s.db.WithContext(ctx)).First(&row, "account = ?", account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Amount{}, nil
	}
	if err != nil {
		return models.Amount{}, err
	}
	return row.Balance, nil
}

func (s *Store) SetBalance(ctx context.Context, account models.AccountID, amount models.Amount) error {
	row := models.LedgerBalance{Account: account, Balance: amount, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) ListBalances(ctx context.Context) ([]models.LedgerBalance, error) {
	var rows []models.LedgerBalance
	if err := s.db.WithContext(ctx).Order("account").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) GetAllowance(ctx context.Context, owner, spender models.AccountID) (models.Amount, error) {
	var row models.LedgerAllowance
	err := s.forUpdate(s.db.WithContext(ctx)).
		Where("owner = ? AND spender = ?", owner, spender).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Amount{}, nil
	}
	if err != nil {
		return models.Amount{}, err
	}
	return row.Amount, nil
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender models.AccountID, amount models.Amount) error {
	row := models.LedgerAllowance{Owner: owner, Spender: spender, Amount: amount, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "spender"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) AppendEvent(ctx context.Context, e *models.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *Store) ListEvents(ctx context.Context, listingID *uuid.UUID, limit int) ([]models.Event, error) {
	var events []models.Event
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if listingID != nil {
		query = query.Where("listing_id = ?", *listingID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) ListTransactions(ctx context.Context, listingID uuid.UUID) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).Where("listing_id = ?", listingID).Order("created_at").Find(&txs).Error
	return txs, err
}

func (s *Store) CreateReportEntry(ctx context.Context, r *models.ReportEntry) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) CreateAuditLog(ctx context.Context, a *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) MarkPaymentUsed(ctx context.Context, rail, reference string) error {
	claim := models.PaymentClaim{Rail: rail, Reference: reference}
	if err := duplicate(s.db.WithContext(ctx).Create(&claim).Error); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to record payment %s: %w", reference, err)
	}
	return nil
}
