// internal/models/listing.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SongMetadata is fixed at publish time.
type SongMetadata struct {
	Name           string `json:"name" gorm:"size:255;not null"`
	Duration       uint32 `json:"duration"`
	Artist         string `json:"artist" gorm:"size:255"`
	Album          string `json:"album" gorm:"size:255"`
	CoverReference string `json:"cover_reference" gorm:"size:512"`
}

type Listing struct {
	BaseModel
	Owner            AccountID      `json:"owner" gorm:"type:uuid;not null;index"`
	Metadata         SongMetadata   `json:"metadata" gorm:"embedded;embeddedPrefix:meta_"`
	Price            Amount         `json:"price" gorm:"not null"`
	ContentReference string         `json:"-" gorm:"size:512;not null"`
	ContentKind      string         `json:"content_kind" gorm:"size:20"`
	CommissionRate   uint32         `json:"commission_rate"`
	ReportAccount    *AccountID     `json:"report_account,omitempty" gorm:"type:uuid"`
	Tags             pq.StringArray `json:"tags" gorm:"type:text[]"`
}

// CommissionRecipient is the account credited with the commission.
func (l *Listing) CommissionRecipient() AccountID {
	if l.ReportAccount != nil && *l.ReportAccount != uuid.Nil {
		return *l.ReportAccount
	}
	return l.Owner
}

// Clone returns a copy that shares no mutable state with l.
func (l *Listing) Clone() *Listing {
	out := *l
	if l.ReportAccount != nil {
		ra := *l.ReportAccount
		out.ReportAccount = &ra
	}
	if l.Tags != nil {
		out.Tags = append(pq.StringArray(nil), l.Tags...)
	}
	return &out
}

// ListingInfo is the public view of a listing.
type ListingInfo struct {
	ID       uuid.UUID    `json:"id"`
	Owner    AccountID    `json:"owner"`
	Metadata SongMetadata `json:"metadata"`
	Price    Amount       `json:"price"`
	Tags     []string     `json:"tags"`
}
