// internal/services/settings.go
package services

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

// RuntimeSettings holds the admin-tunable marketplace defaults. Request
// handlers read these concurrently on every distribution and mint, so
// access goes through atomics; writes are persisted to admin_settings
// and reapplied at startup.
type RuntimeSettings struct {
	penaltyRateBps    atomic.Int64
	defaultRoyaltyBps atomic.Int64
}

func NewRuntimeSettings(cfg *config.Config) *RuntimeSettings {
	s := &RuntimeSettings{}
	s.penaltyRateBps.Store(int64(cfg.Marketplace.PenaltyRateBps))
	s.defaultRoyaltyBps.Store(int64(cfg.Marketplace.DefaultRoyaltyBps))
	return s
}

// PenaltyRateBps is the default late-payment penalty rate applied to
// licenses minted without an explicit rate.
func (s *RuntimeSettings) PenaltyRateBps() int {
	return int(s.penaltyRateBps.Load())
}

func (s *RuntimeSettings) setPenaltyRateBps(bps int) {
	s.penaltyRateBps.Store(int64(bps))
}

// DefaultRoyaltyBps is the secondary-sale royalty used when an asset
// has no per-asset override.
func (s *RuntimeSettings) DefaultRoyaltyBps() int {
	return int(s.defaultRoyaltyBps.Load())
}

func (s *RuntimeSettings) setDefaultRoyaltyBps(bps int) {
	s.defaultRoyaltyBps.Store(int64(bps))
}

const settingsCategoryPayments = "payments"

// storeSettingInt upserts one integer row under the payments category.
func storeSettingInt(db *gorm.DB, key string, value int, description string, updatedBy uuid.UUID) error {
	var setting models.AdminSettings
	err := db.Where("category = ? AND key = ?", settingsCategoryPayments, key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.AdminSettings{
			Category:    settingsCategoryPayments,
			Key:         key,
			Value:       models.JSONB{"value": value},
			DataType:    "int",
			Description: description,
			UpdatedBy:   updatedBy,
		}
		if err := db.Create(&setting).Error; err != nil {
			return fmt.Errorf("failed to store setting %s: %w", key, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	updates := map[string]interface{}{
		"value":      models.JSONB{"value": value},
		"updated_by": updatedBy,
	}
	if err := db.Model(&setting).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// loadSettingInt reads a persisted integer setting. JSONB numbers
// round-trip as float64.
func loadSettingInt(db *gorm.DB, key string) (int, bool) {
	var setting models.AdminSettings
	err := db.Where("category = ? AND key = ?", settingsCategoryPayments, key).First(&setting).Error
	if err != nil {
		return 0, false
	}

	v, ok := setting.Value["value"].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}
