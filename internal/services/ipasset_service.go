// internal/services/ipasset_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/database"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

var (
	ErrIPAssetNotFound        = errors.New("IP asset not found")
	ErrLicenseCountUnderflow  = errors.New("active license count cannot go below zero")
	ErrAssetHasActiveLicenses = errors.New("cannot burn IP asset with active licenses")
	ErrAssetHasActiveDispute  = errors.New("cannot burn IP asset with an active dispute")
	ErrNotAssetOwner          = errors.New("caller is not the IP asset owner")
)

// IPAssetService owns the IP-level aggregate ledger: the active-license
// count and dispute flag that together gate burning an asset.
type IPAssetService struct {
	db    *gorm.DB
	authz *AuthorizationService
}

type CreateIPAssetRequest struct {
	Title       string                 `json:"title" validate:"required,min=3,max=255"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category,omitempty"`
	FileURLs    []string               `json:"file_urls,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func NewIPAssetService(db *gorm.DB, authz *AuthorizationService) *IPAssetService {
	return &IPAssetService{db: db, authz: authz}
}

func (s *IPAssetService) CreateIPAsset(ownerID uuid.UUID, req *CreateIPAssetRequest) (*models.IPAsset, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var owner models.User
	if err := s.db.First(&owner, ownerID).Error; err != nil {
		return nil, fmt.Errorf("owner not found: %w", err)
	}

	if owner.Status != models.UserStatusActive {
		return nil, errors.New("owner account is not active")
	}

	asset := &models.IPAsset{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		FileURLs:    req.FileURLs,
		Tags:        req.Tags,
		Metadata:    models.JSONB(req.Metadata),
	}

	if err := s.db.Create(asset).Error; err != nil {
		return nil, fmt.Errorf("failed to create IP asset: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"ip_asset_id": asset.ID,
		"owner_id":    ownerID,
	}).Info("IP asset created")

	return asset, nil
}

func (s *IPAssetService) GetIPAsset(id int64) (*models.IPAsset, error) {
	var asset models.IPAsset
	if err := s.db.Preload("Owner").First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIPAssetNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &asset, nil
}

func (s *IPAssetService) ListIPAssets(params utils.PaginationParams) ([]models.IPAsset, int64, error) {
	query := s.db.Model(&models.IPAsset{}).Preload("Owner")

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}

	if params.Search != "" {
		query = query.Where("title ILIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count IP assets: %w", err)
	}

	allowedSortFields := []string{"created_at", "title", "active_license_count"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var assets []models.IPAsset
	if err := query.Find(&assets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch IP assets: %w", err)
	}

	return assets, total, nil
}

// HasActiveDispute is the public dispute probe. It doubles as an
// existence check: an unknown asset id is an error, not false.
func (s *IPAssetService) HasActiveDispute(ipAssetID int64) (bool, error) {
	var asset models.IPAsset
	if err := s.db.Select("id", "has_active_dispute").First(&asset, ipAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrIPAssetNotFound
		}
		return false, fmt.Errorf("database error: %w", err)
	}
	return asset.HasActiveDispute, nil
}

// UpdateActiveLicenseCount applies delta to the asset's active-license
// count. Restricted to the license-manager capability; a negative delta
// that would drive the count below zero fails without mutation.
func (s *IPAssetService) UpdateActiveLicenseCount(callerID uuid.UUID, ipAssetID int64, delta int) error {
	if err := s.authz.RequireRole(callerID, models.RoleLicenseManager); err != nil {
		return err
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return updateActiveLicenseCountTx(tx, ipAssetID, delta)
	})
}

// updateActiveLicenseCountTx is the transaction-scoped count mutation
// shared with the license registry's state transitions.
func updateActiveLicenseCountTx(tx *gorm.DB, ipAssetID int64, delta int) error {
	var asset models.IPAsset
	if err := tx.First(&asset, ipAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIPAssetNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	newCount := asset.ActiveLicenseCount + delta
	if newCount < 0 {
		return ErrLicenseCountUnderflow
	}

	if err := tx.Model(&asset).Update("active_license_count", newCount).Error; err != nil {
		return fmt.Errorf("failed to update active license count: %w", err)
	}

	return nil
}

// SetDisputeStatus sets or clears the asset's dispute flag. Restricted
// to the arbitrator capability.
func (s *IPAssetService) SetDisputeStatus(callerID uuid.UUID, ipAssetID int64, hasDispute bool) error {
	if err := s.authz.RequireRole(callerID, models.RoleArbitrator); err != nil {
		return err
	}
	return setDisputeStatusTx(s.db, ipAssetID, hasDispute)
}

func setDisputeStatusTx(tx *gorm.DB, ipAssetID int64, hasDispute bool) error {
	result := tx.Model(&models.IPAsset{}).
		Where("id = ?", ipAssetID).
		Update("has_active_dispute", hasDispute)
	if result.Error != nil {
		return fmt.Errorf("failed to set dispute status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrIPAssetNotFound
	}
	return nil
}

// Burn removes the asset and its associated state. Only the owner may
// burn, and only once every license is terminal and no dispute is open.
func (s *IPAssetService) Burn(callerID uuid.UUID, ipAssetID int64) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var asset models.IPAsset
		if err := tx.First(&asset, ipAssetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIPAssetNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if asset.OwnerID != callerID {
			return ErrNotAssetOwner
		}

		if asset.ActiveLicenseCount > 0 {
			return ErrAssetHasActiveLicenses
		}

		if asset.HasActiveDispute {
			return ErrAssetHasActiveDispute
		}

		if err := tx.Where("ip_asset_id = ?", ipAssetID).Delete(&models.RevenueShare{}).Error; err != nil {
			return fmt.Errorf("failed to remove revenue split: %w", err)
		}

		if err := tx.Delete(&asset).Error; err != nil {
			return fmt.Errorf("failed to burn IP asset: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"ip_asset_id": ipAssetID,
			"owner_id":    callerID,
		}).Info("IP asset burned")

		return nil
	})
}
