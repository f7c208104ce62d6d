// internal/models/marketplace.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Listing struct {
	SerialModel
	SellerID      uuid.UUID     `json:"seller_id" gorm:"type:uuid;not null;index"`
	LicenseID     int64         `json:"license_id" gorm:"not null;index"`
	Quantity      int64         `json:"quantity" gorm:"not null;default:1"`
	Price         int64         `json:"price" gorm:"not null"`
	TokenStandard TokenStandard `json:"token_standard" gorm:"type:varchar(10);not null"`
	Status        ListingStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	SoldAt        *time.Time    `json:"sold_at"`
	CancelledAt   *time.Time    `json:"cancelled_at"`

	// Relationships
	Seller  User    `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}

type Offer struct {
	SerialModel
	BuyerID   uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;index"`
	LicenseID int64     `json:"license_id" gorm:"not null;index"`
	Amount    int64     `json:"amount" gorm:"not null"`

	// EscrowRef is the processor reference for the funds held against
	// this offer; refunded on cancel, distributed on accept.
	EscrowRef string `json:"escrow_ref" gorm:"size:255;not null"`

	// ExpiresAt is advisory: an expired offer cannot be accepted but the
	// escrow is only released by an explicit cancel.
	ExpiresAt   *time.Time  `json:"expires_at"`
	Status      OfferStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	AcceptedAt  *time.Time  `json:"accepted_at"`
	CancelledAt *time.Time  `json:"cancelled_at"`

	// Relationships
	Buyer   User    `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}

// SaleRecord marks a license as having been sold at least once. The row
// is inserted on the first sale and never removed, making the
// primary/secondary classification sticky: the first sale of a license
// is primary, every later one secondary.
type SaleRecord struct {
	LicenseID   int64     `json:"license_id" gorm:"primaryKey"`
	FirstSoldAt time.Time `json:"first_sold_at" gorm:"not null"`
}
