// internal/models/dispute.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Dispute struct {
	SerialModel
	LicenseID   int64     `json:"license_id" gorm:"not null;index"`
	SubmitterID uuid.UUID `json:"submitter_id" gorm:"type:uuid;not null;index"`

	// IPOwnerID is cached at submission time so later ownership changes
	// do not affect the dispute record.
	IPOwnerID uuid.UUID `json:"ip_owner_id" gorm:"type:uuid;not null"`

	Reason      string `json:"reason" gorm:"type:text;not null"`
	EvidenceURI string `json:"evidence_uri,omitempty" gorm:"size:512"`

	Status           DisputeStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	SubmittedAt      time.Time     `json:"submitted_at" gorm:"not null"`
	ResolvedAt       *time.Time    `json:"resolved_at"`
	ResolverID       *uuid.UUID    `json:"resolver_id" gorm:"type:uuid"`
	ResolutionReason string        `json:"resolution_reason,omitempty" gorm:"type:text"`

	// Relationships
	License   License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	Submitter User    `json:"submitter,omitempty" gorm:"foreignKey:SubmitterID"`
}
