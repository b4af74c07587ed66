package gormstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/javajoker/songgate/internal/config"
	"github.com/javajoker/songgate/internal/database"
	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/services"
	"github.com/javajoker/songgate/internal/store"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestStore opens a migrated sqlite database in a temp dir.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := quietLogger()
	db, err := database.Initialize(config.DatabaseConfig{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "songgate.db"),
		LogLevel: "silent",
	}, logger)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db, logger))
	t.Cleanup(func() { database.Close(db, logger) })
	return New(db)
}

func TestAmountRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	account := uuid.New()

	big := models.MustAmount("1267650600228229401496703205376") // 2^100
	require.NoError(t, s.SetBalance(ctx, account, big))

	got, err := s.GetBalance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, big.String(), got.String())

	missing, err := s.GetBalance(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, missing.IsZero())
}

func TestBalanceUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	account := uuid.New()

	require.NoError(t, s.SetBalance(ctx, account, models.NewAmount(10)))
	require.NoError(t, s.SetBalance(ctx, account, models.NewAmount(7)))

	rows, err := s.ListBalances(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, account, rows[0].Account)
	assert.Equal(t, "7", rows[0].Balance.String())
}

func TestAllowanceUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner, spender := uuid.New(), uuid.New()

	require.NoError(t, s.SetAllowance(ctx, owner, spender, models.NewAmount(50)))
	require.NoError(t, s.SetAllowance(ctx, owner, spender, models.NewAmount(20)))

	got, err := s.GetAllowance(ctx, owner, spender)
	require.NoError(t, err)
	assert.Equal(t, "20", got.String())

	reverse, err := s.GetAllowance(ctx, spender, owner)
	require.NoError(t, err)
	assert.True(t, reverse.IsZero())
}

func TestSaveBuyerCompositeKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	listingID := uuid.New()
	first, second := uuid.New(), uuid.New()

	intent := &models.BuyerRecord{
		ListingID:  listingID,
		Account:    first,
		State:      models.BuyerStateIntent,
		PublicKey:  "pk",
		Escrowed:   models.NewAmount(110),
		Commission: models.NewAmount(10),
	}
	require.NoError(t, s.SaveBuyer(ctx, intent))
	require.NoError(t, s.SaveBuyer(ctx, &models.BuyerRecord{
		ListingID: listingID,
		Account:   second,
		State:     models.BuyerStateIntent,
		PublicKey: "pk2",
	}))

	now := time.Now().UTC()
	intent.State = models.BuyerStateConfirmed
	intent.PublicKey = ""
	intent.Location = "Qm123"
	intent.EncryptedKey = "k1"
	intent.ReceiptCode = "0123456789abcdef0123456789abcdef"
	intent.ConfirmedAt = &now
	require.NoError(t, s.SaveBuyer(ctx, intent))

	got, err := s.GetBuyer(ctx, listingID, first)
	require.NoError(t, err)
	assert.Equal(t, models.BuyerStateConfirmed, got.State)
	assert.Equal(t, "Qm123", got.Location)
	assert.Equal(t, "110", got.Escrowed.String())
	assert.Equal(t, "10", got.Commission.String())
	require.NotNil(t, got.ConfirmedAt)

	other, err := s.GetBuyer(ctx, listingID, second)
	require.NoError(t, err)
	assert.Equal(t, models.BuyerStateIntent, other.State)
	assert.Equal(t, "pk2", other.PublicKey)

	byReceipt, err := s.GetBuyerByReceipt(ctx, intent.ReceiptCode)
	require.NoError(t, err)
	assert.Equal(t, first, byReceipt.Account)

	_, err = s.GetBuyer(ctx, uuid.New(), first)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkPaymentUsed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.MarkPaymentUsed(ctx, "stripe", "pi_1"))
	assert.ErrorIs(t, s.MarkPaymentUsed(ctx, "stripe", "pi_1"), store.ErrAlreadyExists)
	assert.NoError(t, s.MarkPaymentUsed(ctx, "ledger", "pi_1"))
}

func TestSupplyWrittenOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	treasury := uuid.New()

	_, err := s.GetSupply(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveSupply(ctx, &models.LedgerSupply{TotalSupply: models.NewAmount(1000), Treasury: treasury}))
	assert.ErrorIs(t, s.SaveSupply(ctx, &models.LedgerSupply{TotalSupply: models.NewAmount(5), Treasury: treasury}), store.ErrAlreadyExists)

	supply, err := s.GetSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000", supply.TotalSupply.String())
}

func TestListingUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := uuid.New()

	listing := &models.Listing{
		Owner:            owner,
		Metadata:         models.SongMetadata{Name: "Night Drive"},
		Price:            models.NewAmount(100),
		ContentReference: "s3://songs/night.flac",
		CommissionRate:   10,
	}
	require.NoError(t, s.CreateListing(ctx, listing))
	require.NotEqual(t, uuid.Nil, listing.ID)

	reporter := uuid.New()
	listing.Price = models.NewAmount(250)
	listing.ReportAccount = &reporter
	require.NoError(t, s.UpdateListing(ctx, listing))

	got, err := s.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "250", got.Price.String())
	require.NotNil(t, got.ReportAccount)
	assert.Equal(t, reporter, *got.ReportAccount)
	assert.Equal(t, "Night Drive", got.Metadata.Name)

	listings, total, err := s.ListListingsByOwner(ctx, owner, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, listings, 1)

	assert.ErrorIs(t, s.UpdateListing(ctx, &models.Listing{BaseModel: models.BaseModel{ID: uuid.New()}}), store.ErrNotFound)
	_, err = s.GetListing(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	account := uuid.New()
	require.NoError(t, s.SetBalance(ctx, account, models.NewAmount(10)))

	boom := errors.New("boom")
	err := s.Tx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.SetBalance(ctx, account, models.NewAmount(99)))
		got, err := tx.GetBalance(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, "99", got.String())
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetBalance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "10", got.String())
}

func lockingSQL(s *Store) string {
	dry := s.db.Session(&gorm.Session{DryRun: true})
	stmt := s.forUpdate(dry).First(&models.Listing{}, "id = ?", uuid.New()).Statement
	return strings.ToUpper(stmt.SQL.String())
}

func TestForUpdateOnlyOnPostgresTx(t *testing.T) {
	sqliteStore := newTestStore(t)
	assert.NotContains(t, lockingSQL(&Store{db: sqliteStore.db, inTx: true}), "FOR UPDATE")

	pg, err := gorm.Open(postgres.Open("host=localhost user=songgate dbname=songgate sslmode=disable"), &gorm.Config{
		DisableAutomaticPing: true,
		DryRun:               true,
	})
	require.NoError(t, err)

	assert.Contains(t, lockingSQL(&Store{db: pg, inTx: true}), "FOR UPDATE")
	assert.NotContains(t, lockingSQL(&Store{db: pg}), "FOR UPDATE")
}

func TestPurchaseScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	logger := quietLogger()

	notifier := services.NewNotificationService(s, logger)
	ledger := services.NewLedgerService(s, notifier)
	reports := services.NewReportService(s, notifier, logger)
	escrow := services.NewEscrowService(services.NewLedgerRail(ledger), services.NewLocalReporter(reports), time.Second, logger)
	registry := services.NewRegistryService(s, escrow, services.NewReceiptService(s), notifier, logger)
	listings := services.NewListingService(s, notifier, 10, logger)

	artist, buyer, stranger := uuid.New(), uuid.New(), uuid.New()
	_, err := ledger.Genesis(ctx, buyer, models.NewAmount(1000))
	require.NoError(t, err)

	listing, err := listings.Publish(ctx, artist, &services.PublishRequest{
		Name:             "Night Drive",
		ContentReference: "s3://songs/night.flac",
		Price:            models.NewAmount(100),
	})
	require.NoError(t, err)

	intent := &services.BuyIntentRequest{PublicKey: "pk-buyer", Payment: services.PaymentProof{Amount: models.NewAmount(110)}}
	_, err = registry.PostIntent(ctx, listing.ID, buyer, intent)
	require.NoError(t, err)
	_, err = registry.PostIntent(ctx, listing.ID, buyer, intent)
	assert.ErrorIs(t, err, services.ErrAlreadyOnList)

	confirm := &services.ConfirmBuyerRequest{EncryptedKey: "k1", Location: "Qm123"}
	result, err := registry.ConfirmBuyer(ctx, listing.ID, buyer, artist, confirm)
	require.NoError(t, err)
	assert.Equal(t, "100", result.Settlement.Principal.String())
	assert.Equal(t, "10", result.Settlement.Commission.String())

	delivery, err := registry.RetrieveDelivery(ctx, listing.ID, buyer, buyer)
	require.NoError(t, err)
	assert.Equal(t, models.Delivery{Location: "Qm123", EncryptedKey: "k1"}, *delivery)

	_, err = registry.RetrieveDelivery(ctx, listing.ID, stranger, stranger)
	assert.ErrorIs(t, err, services.ErrNotOnBuyersList)

	_, err = registry.ConfirmBuyer(ctx, listing.ID, buyer, artist, confirm)
	assert.ErrorIs(t, err, services.ErrNotOnPossibleBuyersList)

	for account, want := range map[models.AccountID]string{
		buyer:                           "890",
		artist:                          "110",
		models.EscrowAccount(listing.ID): "0",
	} {
		got, err := ledger.BalanceOf(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, want, got.String())
	}

	require.NoError(t, ledger.Approve(ctx, buyer, stranger, models.NewAmount(50)))
	require.NoError(t, ledger.TransferFrom(ctx, buyer, stranger, stranger, models.NewAmount(30)))
	allowance, err := ledger.Allowance(ctx, buyer, stranger)
	require.NoError(t, err)
	assert.Equal(t, "20", allowance.String())
	assert.NoError(t, ledger.CheckConservation(ctx))

	txs, err := s.ListTransactions(ctx, listing.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}
