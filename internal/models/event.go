// internal/models/event.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is an append-only notification observable by off-service clients.
type Event struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ListingID *uuid.UUID `json:"listing_id,omitempty" gorm:"type:uuid;index"`
	Kind      EventKind  `json:"kind" gorm:"type:varchar(40);not null;index"`
	Payload   JSONB      `json:"payload" gorm:"type:jsonb"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
}
