// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the audit record of one money movement through the
// ledger: a sale distribution, a recurring payment, escrow funding or
// refund, or a withdrawal. Amounts are in the smallest currency unit.
type Transaction struct {
	BaseModel
	Type             TransactionType   `json:"type" gorm:"type:varchar(30);not null;index"`
	IPAssetID        *int64            `json:"ip_asset_id" gorm:"index"`
	LicenseID        *int64            `json:"license_id" gorm:"index"`
	PayerID          *uuid.UUID        `json:"payer_id" gorm:"type:uuid;index"`
	SellerID         *uuid.UUID        `json:"seller_id" gorm:"type:uuid;index"`
	Amount           int64             `json:"amount" gorm:"not null"`
	PlatformFee      int64             `json:"platform_fee" gorm:"not null;default:0"`
	Royalty          int64             `json:"royalty" gorm:"not null;default:0"`
	Shares           JSONB             `json:"shares" gorm:"type:jsonb"`
	PaymentReference string            `json:"payment_reference" gorm:"size:255"`
	Status           TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ProcessedAt      *time.Time        `json:"processed_at"`
}

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string     `json:"resource_id,omitempty" gorm:"size:64;index"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type AdminSettings struct {
	BaseModel
	Category    string    `json:"category" gorm:"size:50;not null;index"`
	Key         string    `json:"key" gorm:"size:100;not null;index"`
	Value       JSONB     `json:"value" gorm:"type:jsonb;not null"`
	DataType    string    `json:"data_type" gorm:"size:20;not null"`
	Description string    `json:"description" gorm:"type:text"`
	UpdatedBy   uuid.UUID `json:"updated_by" gorm:"type:uuid;not null"`
}
