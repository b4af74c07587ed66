// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns an ID in Go so the schema works on drivers without
// server-side uuid generation.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	m.EnsureID()
	return nil
}

// EnsureID sets a random ID and timestamps when they are still zero.
func (m *BaseModel) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Clone returns a shallow copy of the map.
func (j JSONB) Clone() JSONB {
	if j == nil {
		return nil
	}
	out := make(JSONB, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}

// Enums
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type BuyerState string

const (
	BuyerStateAbsent    BuyerState = "absent"
	BuyerStateIntent    BuyerState = "intent"
	BuyerStateConfirmed BuyerState = "confirmed"
)

type EventKind string

const (
	EventListingPublished EventKind = "listing.published"
	EventListingUpdated   EventKind = "listing.updated"
	EventBuyIntent        EventKind = "buy.intent"
	EventBuyConfirmed     EventKind = "buy.confirmed"
	EventLedgerTransfer   EventKind = "ledger.transfer"
	EventLedgerApproval   EventKind = "ledger.approval"
	EventReportInserted   EventKind = "report.inserted"
)

type AccessKind string

const (
	AccessOwner        AccessKind = "owner"
	AccessConfirmed    AccessKind = "confirmed"
	AccessPending      AccessKind = "pending"
	AccessUnauthorized AccessKind = "unauthorized"
)
