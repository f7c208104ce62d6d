// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Per-license payment-term bounds and defaults.
const (
	DefaultMaxMissedPayments = 3
	DefaultPenaltyRateBps    = 500
	MaxPenaltyRateBps        = 5000
	MaxMissedPaymentsLimit   = 255
)

type License struct {
	SerialModel
	IPAssetID int64     `json:"ip_asset_id" gorm:"not null;index"`
	HolderID  uuid.UUID `json:"holder_id" gorm:"type:uuid;not null;index"`
	Supply    int64     `json:"supply" gorm:"not null"`

	// ExpiresAt nil means perpetual; a perpetual license can never expire.
	ExpiresAt *time.Time `json:"expires_at"`
	Terms     string     `json:"terms" gorm:"type:text"`

	IsExclusive bool `json:"is_exclusive" gorm:"not null;default:false"`

	// Terminal flags. Expired is persisted by the one-shot MarkExpired
	// transition so the asset's active count is decremented exactly once;
	// neither flag is ever reset.
	Revoked       bool   `json:"revoked" gorm:"not null;default:false"`
	RevokedReason string `json:"revoked_reason,omitempty" gorm:"type:text"`
	Expired       bool   `json:"expired" gorm:"not null;default:false"`

	// PaymentInterval in seconds; 0 means one-time.
	PaymentInterval   int64 `json:"payment_interval" gorm:"not null;default:0"`
	MaxMissedPayments int   `json:"max_missed_payments" gorm:"not null;default:3"`
	PenaltyRateBps    int   `json:"penalty_rate_bps" gorm:"not null;default:500"`

	PublicMetadataURI  string `json:"public_metadata_uri" gorm:"size:512"`
	PrivateMetadataURI string `json:"-" gorm:"size:512"`

	// Relationships
	IPAsset IPAsset `json:"ip_asset,omitempty" gorm:"foreignKey:IPAssetID"`
	Holder  User    `json:"holder,omitempty" gorm:"foreignKey:HolderID"`
}

// IsRecurring reports whether the license carries recurring payment terms.
func (l *License) IsRecurring() bool {
	return l.PaymentInterval > 0
}

// IsActive reports whether the license is neither revoked nor expired.
// Expiry is derived from ExpiresAt so a license past its expiry time is
// inactive even before MarkExpired persists the flag.
func (l *License) IsActive(now time.Time) bool {
	if l.Revoked || l.Expired {
		return false
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return false
	}
	return true
}

// RecurringPayment tracks payment state for one recurring license. The
// missed-payment count is never stored; it is always derived from
// LastPaymentAt and the license's interval.
type RecurringPayment struct {
	LicenseID     int64     `json:"license_id" gorm:"primaryKey"`
	LastPaymentAt time.Time `json:"last_payment_at" gorm:"not null"`
	HolderID      uuid.UUID `json:"holder_id" gorm:"type:uuid;not null"`
	BaseAmount    int64     `json:"base_amount" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
