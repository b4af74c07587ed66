// internal/models/ledger.go
package models

import "time"

type LedgerBalance struct {
	Account   AccountID `json:"account" gorm:"type:uuid;primaryKey"`
	Balance   Amount    `json:"balance" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LedgerAllowance struct {
	Owner     AccountID `json:"owner" gorm:"type:uuid;primaryKey"`
	Spender   AccountID `json:"spender" gorm:"type:uuid;primaryKey"`
	Amount    Amount    `json:"amount" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerSupply is a single row written once at genesis.
type LedgerSupply struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	TotalSupply Amount    `json:"total_supply" gorm:"not null"`
	Treasury    AccountID `json:"treasury" gorm:"type:uuid;not null"`
	CreatedAt   time.Time `json:"created_at"`
}
