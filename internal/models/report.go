// internal/models/report.go
package models

import "github.com/google/uuid"

// ReportEntry is written by the built-in reporting endpoint for every
// commission it is told about.
type ReportEntry struct {
	BaseModel
	Caller      uuid.UUID `json:"caller" gorm:"type:uuid;index"`
	Buyer       AccountID `json:"buyer" gorm:"type:uuid;not null;index"`
	ContentName string    `json:"content_name" gorm:"size:255"`
	Amount      Amount    `json:"amount" gorm:"not null"`
}
