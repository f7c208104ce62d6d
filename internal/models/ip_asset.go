// internal/models/ip_asset.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type IPAsset struct {
	SerialModel
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Category    string         `json:"category" gorm:"size:100;index"`
	FileURLs    pq.StringArray `json:"file_urls" gorm:"type:text[]"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`
	Metadata    JSONB          `json:"metadata" gorm:"type:jsonb"`

	// Aggregate ledger state. ActiveLicenseCount tracks licenses that are
	// neither revoked nor expired; HasExclusiveLicense is the single
	// per-asset exclusivity flag, cleared when the exclusive license
	// terminates. Both gate Burn together with HasActiveDispute.
	ActiveLicenseCount  int  `json:"active_license_count" gorm:"not null;default:0"`
	HasActiveDispute    bool `json:"has_active_dispute" gorm:"not null;default:false"`
	HasExclusiveLicense bool `json:"has_exclusive_license" gorm:"not null;default:false"`

	// RoyaltyBps overrides the ledger-wide default royalty when set.
	RoyaltyBps *int `json:"royalty_bps,omitempty"`

	// Relationships
	Owner    User      `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Licenses []License `json:"licenses,omitempty" gorm:"foreignKey:IPAssetID"`
}
