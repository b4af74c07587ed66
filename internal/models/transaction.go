// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeEscrow     TransactionType = "escrow"
	TransactionTypePrincipal  TransactionType = "principal"
	TransactionTypeCommission TransactionType = "commission"
)

// Transaction records one movement of value made on behalf of a listing.
type Transaction struct {
	BaseModel
	TransactionType  TransactionType `json:"transaction_type" gorm:"type:varchar(20);not null;index"`
	ListingID        uuid.UUID       `json:"listing_id" gorm:"type:uuid;not null;index"`
	BuyerID          AccountID       `json:"buyer_id" gorm:"type:uuid;not null;index"`
	From             AccountID       `json:"from" gorm:"column:from_account;type:uuid;not null"`
	To               AccountID       `json:"to" gorm:"column:to_account;type:uuid;not null"`
	Amount           Amount          `json:"amount" gorm:"not null"`
	PaymentMethod    string          `json:"payment_method" gorm:"size:50"`
	PaymentReference string          `json:"payment_reference" gorm:"size:255"`
	ProcessedAt      *time.Time      `json:"processed_at"`
}

// PaymentClaim marks an external payment as consumed by a purchase.
type PaymentClaim struct {
	Rail      string    `json:"rail" gorm:"size:20;primaryKey"`
	Reference string    `json:"reference" gorm:"size:255;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}
