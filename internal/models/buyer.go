// internal/models/buyer.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// BuyerRecord tracks one account's purchase of one listing. A missing row is
// the absent state.
type BuyerRecord struct {
	ListingID    uuid.UUID  `json:"listing_id" gorm:"type:uuid;primaryKey"`
	Account      AccountID  `json:"account" gorm:"type:uuid;primaryKey"`
	State        BuyerState `json:"state" gorm:"type:varchar(20);not null;index"`
	PublicKey    string     `json:"-" gorm:"type:text;not null"`
	Escrowed     Amount     `json:"escrowed" gorm:"not null"`
	Commission   Amount     `json:"commission" gorm:"not null"`
	PaymentRef   string     `json:"payment_ref,omitempty" gorm:"size:255"`
	Location     string     `json:"-" gorm:"type:text"`
	EncryptedKey string     `json:"-" gorm:"type:text"`
	ReceiptCode  string     `json:"receipt_code,omitempty" gorm:"size:32;index"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
}

func (b *BuyerRecord) Clone() *BuyerRecord {
	out := *b
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		out.ConfirmedAt = &t
	}
	return &out
}

// Delivery is what a confirmed buyer retrieves.
type Delivery struct {
	Location     string `json:"location"`
	EncryptedKey string `json:"encrypted_key"`
}

// Receipt is the public proof of a confirmed purchase.
type Receipt struct {
	Code        string     `json:"code"`
	ListingID   uuid.UUID  `json:"listing_id"`
	Buyer       AccountID  `json:"buyer"`
	SongName    string     `json:"song_name"`
	Artist      string     `json:"artist"`
	Paid        Amount     `json:"paid"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
	Valid       bool       `json:"valid"`
}
