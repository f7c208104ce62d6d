// internal/services/license_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/database"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

var (
	ErrLicenseNotFound         = errors.New("license not found")
	ErrZeroSupply              = errors.New("license supply must be positive")
	ErrExclusiveSupply         = errors.New("exclusive license supply must be exactly 1")
	ErrExclusiveAlreadyExists  = errors.New("an active exclusive license already exists for this IP asset")
	ErrPenaltyRateTooHigh      = errors.New("penalty rate exceeds the per-license maximum")
	ErrMaxMissedOutOfRange     = errors.New("max missed payments out of range")
	ErrLicensePerpetual        = errors.New("perpetual license can never expire")
	ErrLicenseNotYetExpired    = errors.New("license expiry time has not passed")
	ErrLicenseAlreadyExpired   = errors.New("license already marked expired")
	ErrLicenseAlreadyRevoked   = errors.New("license already revoked")
	ErrInsufficientMissedCount = errors.New("missed payment count below the license threshold")
)

// LicenseService owns the license lifecycle: minting, the one-shot
// expiry transition, and the two revocation paths. Every terminal
// transition decrements the asset's active-license count exactly once
// and clears the per-asset exclusivity flag when applicable.
type LicenseService struct {
	db       *gorm.DB
	assets   *IPAssetService
	authz    *AuthorizationService
	notifier *NotificationService
	settings *RuntimeSettings
	now      func() time.Time
}

type MintLicenseRequest struct {
	IPAssetID          int64      `json:"ip_asset_id" validate:"required"`
	HolderID           uuid.UUID  `json:"holder_id" validate:"required"`
	Supply             int64      `json:"supply"`
	PublicMetadataURI  string     `json:"public_metadata_uri,omitempty"`
	PrivateMetadataURI string     `json:"private_metadata_uri,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Terms              string     `json:"terms,omitempty"`
	IsExclusive        bool       `json:"is_exclusive"`
	PaymentInterval    int64      `json:"payment_interval"`
	MaxMissedPayments  int        `json:"max_missed_payments"`
	PenaltyRateBps     int        `json:"penalty_rate_bps"`
	BaseAmount         int64      `json:"base_amount"`
}

type BatchExpireResult struct {
	LicenseID int64  `json:"license_id"`
	Expired   bool   `json:"expired"`
	Error     string `json:"error,omitempty"`
}

func NewLicenseService(db *gorm.DB, assets *IPAssetService, authz *AuthorizationService, notifier *NotificationService, settings *RuntimeSettings) *LicenseService {
	return &LicenseService{
		db:       db,
		assets:   assets,
		authz:    authz,
		notifier: notifier,
		settings: settings,
		now:      time.Now,
	}
}

// MintLicense validates the request against the exclusivity and
// payment-term rules, applies defaults, and creates the license inside
// one transaction together with the asset count update.
func (s *LicenseService) MintLicense(req *MintLicenseRequest) (*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// The dispute probe doubles as the asset existence check.
	if _, err := s.assets.HasActiveDispute(req.IPAssetID); err != nil {
		return nil, err
	}

	if req.Supply <= 0 {
		return nil, ErrZeroSupply
	}

	if req.IsExclusive && req.Supply != 1 {
		return nil, ErrExclusiveSupply
	}

	if req.PenaltyRateBps > models.MaxPenaltyRateBps {
		return nil, ErrPenaltyRateTooHigh
	}

	if req.MaxMissedPayments < 0 || req.MaxMissedPayments > models.MaxMissedPaymentsLimit {
		return nil, ErrMaxMissedOutOfRange
	}

	// Defaults: zero means "use the ledger default".
	maxMissed := req.MaxMissedPayments
	if maxMissed == 0 {
		maxMissed = models.DefaultMaxMissedPayments
	}
	penaltyRate := req.PenaltyRateBps
	if penaltyRate == 0 {
		penaltyRate = s.settings.PenaltyRateBps()
	}

	license := &models.License{
		IPAssetID:          req.IPAssetID,
		HolderID:           req.HolderID,
		Supply:             req.Supply,
		ExpiresAt:          req.ExpiresAt,
		Terms:              req.Terms,
		IsExclusive:        req.IsExclusive,
		PaymentInterval:    req.PaymentInterval,
		MaxMissedPayments:  maxMissed,
		PenaltyRateBps:     penaltyRate,
		PublicMetadataURI:  req.PublicMetadataURI,
		PrivateMetadataURI: req.PrivateMetadataURI,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var asset models.IPAsset
		if err := tx.First(&asset, req.IPAssetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIPAssetNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if req.IsExclusive && asset.HasExclusiveLicense {
			return ErrExclusiveAlreadyExists
		}

		if err := tx.Create(license).Error; err != nil {
			return fmt.Errorf("failed to create license: %w", err)
		}

		updates := map[string]interface{}{
			"active_license_count": asset.ActiveLicenseCount + 1,
		}
		if req.IsExclusive {
			updates["has_exclusive_license"] = true
		}
		if err := tx.Model(&asset).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update IP asset: %w", err)
		}

		// Seed recurring payment tracking at mint time so the first
		// interval is measured from issuance.
		if license.IsRecurring() {
			rp := &models.RecurringPayment{
				LicenseID:     license.ID,
				LastPaymentAt: s.now(),
				HolderID:      req.HolderID,
				BaseAmount:    req.BaseAmount,
			}
			if err := tx.Create(rp).Error; err != nil {
				return fmt.Errorf("failed to seed recurring payment: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"license_id":  license.ID,
		"ip_asset_id": license.IPAssetID,
		"holder_id":   license.HolderID,
		"exclusive":   license.IsExclusive,
	}).Info("License minted")

	return license, nil
}

func (s *LicenseService) GetLicense(id int64) (*models.License, error) {
	var license models.License
	if err := s.db.Preload("IPAsset").Preload("Holder").First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

// ListLicensesByIPAsset returns the indexed license collection for one
// asset, newest first.
func (s *LicenseService) ListLicensesByIPAsset(ipAssetID int64, params utils.PaginationParams) ([]models.License, int64, error) {
	query := s.db.Model(&models.License{}).Where("ip_asset_id = ?", ipAssetID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "expires_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

// IsActiveLicense reports whether the license is neither revoked nor
// expired at the current time.
func (s *LicenseService) IsActiveLicense(id int64) (bool, error) {
	license, err := s.GetLicense(id)
	if err != nil {
		return false, err
	}
	return license.IsActive(s.now()), nil
}

// MarkExpired performs the one-shot expiry transition. Callable by
// anyone; fails for perpetual licenses, before the expiry time, and on
// repeat calls.
func (s *LicenseService) MarkExpired(licenseID int64) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.markExpiredTx(tx, licenseID)
	})
}

func (s *LicenseService) markExpiredTx(tx *gorm.DB, licenseID int64) error {
	var license models.License
	if err := tx.First(&license, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLicenseNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if license.ExpiresAt == nil {
		return ErrLicensePerpetual
	}

	if s.now().Before(*license.ExpiresAt) {
		return ErrLicenseNotYetExpired
	}

	if license.Expired {
		return ErrLicenseAlreadyExpired
	}

	if err := tx.Model(&license).Update("expired", true).Error; err != nil {
		return fmt.Errorf("failed to mark license expired: %w", err)
	}

	// A license that was already revoked no longer counts as active, so
	// the count was decremented by the revocation.
	if !license.Revoked {
		if err := s.finalizeTermination(tx, &license); err != nil {
			return err
		}
	}

	logrus.WithField("license_id", licenseID).Info("License marked expired")
	return nil
}

// BatchMarkExpired applies MarkExpired to each id. Per-id failures are
// recorded and skipped; the batch itself never fails.
func (s *LicenseService) BatchMarkExpired(ids []int64) []BatchExpireResult {
	results := make([]BatchExpireResult, 0, len(ids))
	for _, id := range ids {
		result := BatchExpireResult{LicenseID: id}
		if err := s.MarkExpired(id); err != nil {
			result.Error = err.Error()
		} else {
			result.Expired = true
		}
		results = append(results, result)
	}
	return results
}

// RevokeLicense permanently revokes a license. Restricted to the
// arbitrator capability; the reason is recorded for audit.
func (s *LicenseService) RevokeLicense(callerID uuid.UUID, licenseID int64, reason string) error {
	if err := s.authz.RequireRole(callerID, models.RoleArbitrator); err != nil {
		return err
	}

	if err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.revokeTx(tx, licenseID, reason)
	}); err != nil {
		return err
	}

	go s.notifyRevocation(licenseID, reason)
	return nil
}

// RevokeForMissedPayments is open to any caller so payment automation
// can drive it, but the supplied count must meet the license's
// threshold; the recomputed count is validated by the caller-facing
// marketplace operations before they invoke this.
func (s *LicenseService) RevokeForMissedPayments(licenseID int64, missedCount int) error {
	var license models.License
	if err := s.db.First(&license, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLicenseNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if missedCount < license.MaxMissedPayments {
		return ErrInsufficientMissedCount
	}

	reason := fmt.Sprintf("auto-revoked after %d missed payments", missedCount)
	if err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.revokeTx(tx, licenseID, reason)
	}); err != nil {
		return err
	}

	go s.notifyRevocation(licenseID, reason)
	return nil
}

func (s *LicenseService) revokeTx(tx *gorm.DB, licenseID int64, reason string) error {
	var license models.License
	if err := tx.First(&license, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLicenseNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if license.Revoked {
		return ErrLicenseAlreadyRevoked
	}

	updates := map[string]interface{}{
		"revoked":        true,
		"revoked_reason": reason,
	}
	if err := tx.Model(&license).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to revoke license: %w", err)
	}

	// Only decrement for a license that still counts toward the asset:
	// the persisted expired flag means MarkExpired already released the
	// slot. The derived (time-based) expiry is deliberately ignored here
	// so each license releases its slot exactly once.
	if !license.Expired {
		if err := s.finalizeTermination(tx, &license); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"license_id": licenseID,
		"reason":     reason,
	}).Info("License revoked")

	return nil
}

// finalizeTermination applies the shared terminal side effects: count
// decrement and exclusivity release.
func (s *LicenseService) finalizeTermination(tx *gorm.DB, license *models.License) error {
	if err := updateActiveLicenseCountTx(tx, license.IPAssetID, -1); err != nil {
		return err
	}

	if license.IsExclusive {
		if err := tx.Model(&models.IPAsset{}).
			Where("id = ?", license.IPAssetID).
			Update("has_exclusive_license", false).Error; err != nil {
			return fmt.Errorf("failed to clear exclusivity flag: %w", err)
		}
	}

	return nil
}

func (s *LicenseService) notifyRevocation(licenseID int64, reason string) {
	if s.notifier == nil {
		return
	}

	license, err := s.GetLicense(licenseID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to load license for revocation notice")
		return
	}

	if err := s.notifier.SendLicenseRevokedNotification(license, reason); err != nil {
		logrus.WithError(err).Warn("Failed to send revocation notice")
	}
}
