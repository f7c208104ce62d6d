// internal/services/revenue_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/database"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

var (
	ErrSplitEmpty         = errors.New("at least one recipient is required")
	ErrSplitZeroRecipient = errors.New("recipient must not be the zero address")
	ErrSplitSumInvalid    = errors.New("shares must sum to exactly 10000 basis points")
	ErrNotSplitConfigurer = errors.New("caller is not the asset owner or a configurator")
	ErrZeroAmount         = errors.New("amount must be positive")
	ErrNothingToWithdraw  = errors.New("no balance to withdraw")
	ErrRoyaltyTooHigh     = errors.New("royalty exceeds 10000 basis points")
)

// RevenueService owns per-recipient withdrawable balances and the
// basis-point-exact distribution of sale proceeds. Conservation is the
// governing invariant: every distribution credits exactly the amount
// received, with rounding dust deterministically assigned to the last
// split recipient.
type RevenueService struct {
	db        *gorm.DB
	cfg       *config.Config
	authz     *AuthorizationService
	processor PaymentProcessor
	settings  *RuntimeSettings
}

type SplitEntry struct {
	RecipientID uuid.UUID `json:"recipient_id" validate:"required"`
	ShareBps    int       `json:"share_bps" validate:"required,bps"`
}

type ConfigureSplitRequest struct {
	IPAssetID int64        `json:"ip_asset_id" validate:"required"`
	Entries   []SplitEntry `json:"entries" validate:"required,dive"`
}

func NewRevenueService(db *gorm.DB, cfg *config.Config, authz *AuthorizationService, processor PaymentProcessor, settings *RuntimeSettings) *RevenueService {
	return &RevenueService{
		db:        db,
		cfg:       cfg,
		authz:     authz,
		processor: processor,
		settings:  settings,
	}
}

// ConfigureSplit replaces the asset's revenue split. Only the asset
// owner or a configurator may call; shares must sum to exactly 10,000.
func (s *RevenueService) ConfigureSplit(callerID uuid.UUID, req *ConfigureSplitRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var asset models.IPAsset
	if err := s.db.First(&asset, req.IPAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIPAssetNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if asset.OwnerID != callerID && !s.authz.HasRole(callerID, models.RoleConfigurator) {
		return ErrNotSplitConfigurer
	}

	if len(req.Entries) == 0 {
		return ErrSplitEmpty
	}

	sum := 0
	for _, e := range req.Entries {
		if e.RecipientID == uuid.Nil {
			return ErrSplitZeroRecipient
		}
		sum += e.ShareBps
	}
	if sum != models.BpsDenominator {
		return ErrSplitSumInvalid
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// Overwrite semantics: drop the old configuration entirely.
		if err := tx.Where("ip_asset_id = ?", req.IPAssetID).Delete(&models.RevenueShare{}).Error; err != nil {
			return fmt.Errorf("failed to clear revenue split: %w", err)
		}

		for i, e := range req.Entries {
			share := &models.RevenueShare{
				IPAssetID:   req.IPAssetID,
				Position:    i,
				RecipientID: e.RecipientID,
				ShareBps:    e.ShareBps,
			}
			if err := tx.Create(share).Error; err != nil {
				return fmt.Errorf("failed to store revenue share: %w", err)
			}
		}

		return nil
	})
}

func (s *RevenueService) GetSplit(ipAssetID int64) ([]models.RevenueShare, error) {
	var shares []models.RevenueShare
	if err := s.db.Where("ip_asset_id = ?", ipAssetID).
		Order("position ASC").
		Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch revenue split: %w", err)
	}
	return shares, nil
}

// DistributePayment verifies the attached payment and credits the
// proceeds. Primary sales deduct the platform fee into the treasury and
// split the remainder across the configured split (or credit the asset
// owner when none is configured). Secondary sales deduct the effective
// royalty into the split and credit the remainder to the seller.
func (s *RevenueService) DistributePayment(ipAssetID int64, amount int64, sellerID uuid.UUID, isPrimarySale bool, paymentRef string) (*models.Transaction, error) {
	var record *models.Transaction
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		r, err := s.DistributePaymentTx(tx, ipAssetID, amount, sellerID, isPrimarySale, paymentRef)
		record = r
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"ip_asset_id": ipAssetID,
		"amount":      amount,
		"primary":     isPrimarySale,
	}).Info("Payment distributed")

	return record, nil
}

// DistributePaymentTx runs the distribution inside the caller's
// transaction so a sale commits its transfer, classification, and
// credits as one unit. A verification or credit failure aborts the
// whole enclosing transaction.
func (s *RevenueService) DistributePaymentTx(tx *gorm.DB, ipAssetID int64, amount int64, sellerID uuid.UUID, isPrimarySale bool, paymentRef string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrZeroAmount
	}

	// Attached-value check: the captured charge must equal the declared
	// amount exactly.
	if err := s.processor.VerifyPayment(paymentRef, amount); err != nil {
		return nil, err
	}

	var asset models.IPAsset
	if err := tx.First(&asset, ipAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIPAssetNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var shares []models.RevenueShare
	if err := tx.Where("ip_asset_id = ?", ipAssetID).
		Order("position ASC").
		Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch revenue split: %w", err)
	}

	txType := models.TransactionTypeSecondarySale
	if isPrimarySale {
		txType = models.TransactionTypePrimarySale
	}

	record := &models.Transaction{
		Type:             txType,
		IPAssetID:        &ipAssetID,
		SellerID:         &sellerID,
		Amount:           amount,
		PaymentReference: paymentRef,
		Status:           models.TransactionStatusCompleted,
	}

	credited := map[string]interface{}{}

	if isPrimarySale {
		platformFee := utils.ApplyBps(amount, s.cfg.Marketplace.PlatformFeeBps)
		remainder := amount - platformFee
		record.PlatformFee = platformFee

		if platformFee > 0 {
			if err := creditBalanceTx(tx, models.TreasuryAccountID, platformFee); err != nil {
				return nil, err
			}
			credited["treasury"] = platformFee
		}

		if len(shares) > 0 {
			if err := s.creditSplitTx(tx, shares, remainder, credited); err != nil {
				return nil, err
			}
		} else if remainder > 0 {
			if err := creditBalanceTx(tx, asset.OwnerID, remainder); err != nil {
				return nil, err
			}
			credited[asset.OwnerID.String()] = remainder
		}
	} else {
		royaltyBps := s.effectiveRoyaltyBps(&asset)
		royalty := utils.ApplyBps(amount, royaltyBps)
		remainder := amount - royalty
		record.Royalty = royalty

		if royalty > 0 {
			if len(shares) > 0 {
				if err := s.creditSplitTx(tx, shares, royalty, credited); err != nil {
					return nil, err
				}
			} else {
				if err := creditBalanceTx(tx, asset.OwnerID, royalty); err != nil {
					return nil, err
				}
				credited[asset.OwnerID.String()] = royalty
			}
		}

		if remainder > 0 {
			if err := creditBalanceTx(tx, sellerID, remainder); err != nil {
				return nil, err
			}
			credited[sellerID.String()] = remainder
		}
	}

	now := time.Now()
	record.ProcessedAt = &now
	record.Shares = models.JSONB(credited)
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	return record, nil
}

// creditSplitTx divides amount across the split pro-rata by share,
// assigning rounding dust to the last recipient so the credited total
// equals amount exactly.
func (s *RevenueService) creditSplitTx(tx *gorm.DB, shares []models.RevenueShare, amount int64, credited map[string]interface{}) error {
	bps := make([]int, len(shares))
	for i, sh := range shares {
		bps[i] = sh.ShareBps
	}

	parts := utils.SplitByShares(amount, bps)
	for i, part := range parts {
		if part == 0 {
			continue
		}
		if err := creditBalanceTx(tx, shares[i].RecipientID, part); err != nil {
			return err
		}
		key := shares[i].RecipientID.String()
		if prev, ok := credited[key].(int64); ok {
			credited[key] = prev + part
		} else {
			credited[key] = part
		}
	}

	return nil
}

func creditBalanceTx(tx *gorm.DB, recipientID uuid.UUID, amount int64) error {
	var balance models.Balance
	err := tx.Where("recipient_id = ?", recipientID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = models.Balance{RecipientID: recipientID, Amount: amount}
		if err := tx.Create(&balance).Error; err != nil {
			return fmt.Errorf("failed to create balance: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if err := tx.Model(&balance).Update("amount", balance.Amount+amount).Error; err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (s *RevenueService) GetBalance(recipientID uuid.UUID) (int64, error) {
	var balance models.Balance
	err := s.db.Where("recipient_id = ?", recipientID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return balance.Amount, nil
}

func (s *RevenueService) GetTreasuryBalance() (int64, error) {
	return s.GetBalance(models.TreasuryAccountID)
}

// Withdraw zeroes the caller's balance together with a pending
// withdrawal record, then transfers the funds. The record is committed
// before the payout so the transfer intent survives a crash, and its id
// doubles as the processor idempotency key so a retried transfer cannot
// pay twice. A payout failure restores the balance and marks the record
// failed; a reentrant call observes a zero balance.
func (s *RevenueService) Withdraw(recipientID uuid.UUID) (int64, error) {
	var user models.User
	if err := s.db.First(&user, recipientID).Error; err != nil {
		return 0, fmt.Errorf("recipient not found: %w", err)
	}
	if user.PayoutAccount == "" {
		return 0, ErrMissingPayoutAccount
	}

	var withdrawn int64
	record := &models.Transaction{
		Type:   models.TransactionTypeWithdrawal,
		Status: models.TransactionStatusPending,
	}
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var balance models.Balance
		err := tx.Where("recipient_id = ?", recipientID).First(&balance).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && balance.Amount == 0) {
			return ErrNothingToWithdraw
		}
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		withdrawn = balance.Amount

		if err := tx.Model(&balance).Update("amount", int64(0)).Error; err != nil {
			return fmt.Errorf("failed to zero balance: %w", err)
		}

		record.PayerID = &recipientID
		record.Amount = withdrawn
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to record withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	idempotencyKey := fmt.Sprintf("withdraw-%d", record.ID)
	payoutRef, err := s.processor.Payout(user.PayoutAccount, withdrawn, idempotencyKey)
	if err != nil {
		restoreErr := database.WithTransaction(s.db, func(tx *gorm.DB) error {
			if err := creditBalanceTx(tx, recipientID, withdrawn); err != nil {
				return err
			}
			return tx.Model(record).Update("status", models.TransactionStatusFailed).Error
		})
		if restoreErr != nil {
			logrus.WithError(restoreErr).WithFields(logrus.Fields{
				"recipient_id":  recipientID,
				"withdrawal_id": record.ID,
			}).Error("Failed to restore balance after payout failure")
		}
		return 0, err
	}

	now := time.Now()
	if err := s.db.Model(record).Updates(map[string]interface{}{
		"status":            models.TransactionStatusCompleted,
		"payment_reference": payoutRef,
		"processed_at":      now,
	}).Error; err != nil {
		// The money moved; the pending record plus its idempotency key
		// keep the transfer reconcilable.
		logrus.WithError(err).WithField("withdrawal_id", record.ID).
			Warn("Failed to complete withdrawal record")
	}

	logrus.WithFields(logrus.Fields{
		"recipient_id": recipientID,
		"amount":       withdrawn,
	}).Info("Balance withdrawn")

	return withdrawn, nil
}

// SetDefaultRoyalty sets the ledger-wide royalty used when an asset has
// no override. Admin only; persisted so it survives restarts.
func (s *RevenueService) SetDefaultRoyalty(callerID uuid.UUID, bps int) error {
	if err := s.authz.RequireRole(callerID, models.RoleAdmin); err != nil {
		return err
	}
	if bps < 0 || bps > models.BpsDenominator {
		return ErrRoyaltyTooHigh
	}

	s.settings.setDefaultRoyaltyBps(bps)
	return storeSettingInt(s.db, "default_royalty_bps", bps,
		"Default secondary-sale royalty in basis points", callerID)
}

// LoadStoredDefaultRoyalty applies the persisted default royalty on
// startup, if an admin has set one.
func (s *RevenueService) LoadStoredDefaultRoyalty() {
	if bps, ok := loadSettingInt(s.db, "default_royalty_bps"); ok {
		if bps >= 0 && bps <= models.BpsDenominator {
			s.settings.setDefaultRoyaltyBps(bps)
		}
	}
}

// SetAssetRoyalty sets a per-asset royalty override. Asset owner or
// configurator only.
func (s *RevenueService) SetAssetRoyalty(callerID uuid.UUID, ipAssetID int64, bps int) error {
	if bps < 0 || bps > models.BpsDenominator {
		return ErrRoyaltyTooHigh
	}

	var asset models.IPAsset
	if err := s.db.First(&asset, ipAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIPAssetNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if asset.OwnerID != callerID && !s.authz.HasRole(callerID, models.RoleConfigurator) {
		return ErrNotSplitConfigurer
	}

	if err := s.db.Model(&asset).Update("royalty_bps", bps).Error; err != nil {
		return fmt.Errorf("failed to set asset royalty: %w", err)
	}
	return nil
}

// GetAssetRoyalty returns the per-asset override when set, else the
// ledger default.
func (s *RevenueService) GetAssetRoyalty(ipAssetID int64) (int, error) {
	var asset models.IPAsset
	if err := s.db.First(&asset, ipAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrIPAssetNotFound
		}
		return 0, fmt.Errorf("database error: %w", err)
	}
	return s.effectiveRoyaltyBps(&asset), nil
}

func (s *RevenueService) effectiveRoyaltyBps(asset *models.IPAsset) int {
	if asset.RoyaltyBps != nil {
		return *asset.RoyaltyBps
	}
	return s.settings.DefaultRoyaltyBps()
}
