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
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the UUID client-side so inserts also work on
// databases without gen_random_uuid.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// SerialModel is the base for ledger entities whose public identity is a
// monotonically increasing integer rather than a UUID.
type SerialModel struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
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

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Basis-point denominator: 10,000 bps = 100%.
const BpsDenominator = 10000

// TreasuryAccountID is the fixed recipient that accumulates platform fees.
var TreasuryAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Enums
type UserType string

const (
	UserTypeCreator UserType = "creator"
	UserTypeBuyer   UserType = "buyer"
	UserTypeAdmin   UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

// Role tags for the flat capability model. Every restricted operation is
// gated by one of these via a single HasRole predicate.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleArbitrator     Role = "arbitrator"
	RoleLicenseManager Role = "license_manager"
	RoleConfigurator   Role = "configurator"
)

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusCancelled ListingStatus = "cancelled"
	ListingStatusSold      ListingStatus = "sold"
)

type OfferStatus string

const (
	OfferStatusActive    OfferStatus = "active"
	OfferStatusCancelled OfferStatus = "cancelled"
	OfferStatusAccepted  OfferStatus = "accepted"
)

type DisputeStatus string

const (
	DisputeStatusPending  DisputeStatus = "pending"
	DisputeStatusApproved DisputeStatus = "approved"
	DisputeStatusRejected DisputeStatus = "rejected"
	DisputeStatusExecuted DisputeStatus = "executed"
)

// TokenStandard distinguishes unique from semi-fungible license tokens.
type TokenStandard string

const (
	TokenStandard721  TokenStandard = "721"
	TokenStandard1155 TokenStandard = "1155"
)

type TransactionType string

const (
	TransactionTypePrimarySale      TransactionType = "primary_sale"
	TransactionTypeSecondarySale    TransactionType = "secondary_sale"
	TransactionTypeRecurringPayment TransactionType = "recurring_payment"
	TransactionTypeOfferEscrow      TransactionType = "offer_escrow"
	TransactionTypeOfferRefund      TransactionType = "offer_refund"
	TransactionTypeWithdrawal       TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)
