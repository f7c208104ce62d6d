// internal/models/revenue.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RevenueShare is one (recipient, share) pair of an asset's revenue
// split. Shares for one asset always sum to exactly 10,000 bps;
// ConfigureSplit replaces the whole set atomically.
type RevenueShare struct {
	BaseModel
	IPAssetID   int64     `json:"ip_asset_id" gorm:"not null;index"`
	Position    int       `json:"position" gorm:"not null"`
	RecipientID uuid.UUID `json:"recipient_id" gorm:"type:uuid;not null"`
	ShareBps    int       `json:"share_bps" gorm:"not null"`

	// Relationships
	Recipient User `json:"recipient,omitempty" gorm:"foreignKey:RecipientID"`
}

// Balance is a recipient's withdrawable credit in the smallest currency
// unit. Credits append on distribution; withdrawal zeroes the row and
// transfers the funds in the same transaction.
type Balance struct {
	RecipientID uuid.UUID `json:"recipient_id" gorm:"type:uuid;primaryKey"`
	Amount      int64     `json:"amount" gorm:"not null;default:0"`
	UpdatedAt   time.Time `json:"updated_at"`
}
