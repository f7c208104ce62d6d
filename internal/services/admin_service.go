// internal/services/admin_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

var ErrSettingNotFound = errors.New("setting not found")

type AdminService struct {
	db                  *gorm.DB
	authz               *AuthorizationService
	notificationService *NotificationService
}

type AdminDashboardStats struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsers       int64 `json:"active_users"`
	NewUsersThisMonth int64 `json:"new_users_this_month"`
	TotalRevenue      int64 `json:"total_revenue"`
	MonthlyRevenue    int64 `json:"monthly_revenue"`
	TotalIPAssets     int64 `json:"total_ip_assets"`
	DisputedIPAssets  int64 `json:"disputed_ip_assets"`
	TotalLicenses     int64 `json:"total_licenses"`
	ActiveLicenses    int64 `json:"active_licenses"`
	PendingDisputes   int64 `json:"pending_disputes"`
	ActiveListings    int64 `json:"active_listings"`
	TotalTransactions int64 `json:"total_transactions"`
	TreasuryBalance   int64 `json:"treasury_balance"`
}

type AdminUserFilter struct {
	utils.PaginationParams
	UserType      *models.UserType   `json:"user_type,omitempty"`
	Status        *models.UserStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}

type AdminTransactionFilter struct {
	utils.PaginationParams
	TransactionType *models.TransactionType   `json:"transaction_type,omitempty"`
	Status          *models.TransactionStatus `json:"status,omitempty"`
	PayerID         *uuid.UUID                `json:"payer_id,omitempty"`
	SellerID        *uuid.UUID                `json:"seller_id,omitempty"`
	AmountMin       *int64                    `json:"amount_min,omitempty"`
	AmountMax       *int64                    `json:"amount_max,omitempty"`
	CreatedAfter    *time.Time                `json:"created_after,omitempty"`
	CreatedBefore   *time.Time                `json:"created_before,omitempty"`
}

func NewAdminService(db *gorm.DB, authz *AuthorizationService, notificationService *NotificationService) *AdminService {
	return &AdminService{
		db:                  db,
		authz:               authz,
		notificationService: notificationService,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats() (*AdminDashboardStats, error) {
	stats := &AdminDashboardStats{}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	s.db.Model(&models.User{}).Count(&stats.TotalUsers)
	s.db.Model(&models.User{}).Where("status = ?", models.UserStatusActive).Count(&stats.ActiveUsers)
	s.db.Model(&models.User{}).Where("created_at >= ?", monthStart).Count(&stats.NewUsersThisMonth)

	s.db.Model(&models.Transaction{}).
		Where("status = ?", models.TransactionStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.TotalRevenue)

	s.db.Model(&models.Transaction{}).
		Where("status = ? AND created_at >= ?", models.TransactionStatusCompleted, monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.MonthlyRevenue)

	s.db.Model(&models.IPAsset{}).Count(&stats.TotalIPAssets)
	s.db.Model(&models.IPAsset{}).Where("has_active_dispute = ?", true).Count(&stats.DisputedIPAssets)

	s.db.Model(&models.License{}).Count(&stats.TotalLicenses)
	s.db.Model(&models.License{}).
		Where("revoked = ? AND expired = ?", false, false).
		Count(&stats.ActiveLicenses)

	s.db.Model(&models.Dispute{}).
		Where("status = ?", models.DisputeStatusPending).Count(&stats.PendingDisputes)

	s.db.Model(&models.Listing{}).
		Where("status = ?", models.ListingStatusActive).Count(&stats.ActiveListings)

	s.db.Model(&models.Transaction{}).Count(&stats.TotalTransactions)

	var treasury models.Balance
	if err := s.db.Where("recipient_id = ?", models.TreasuryAccountID).First(&treasury).Error; err == nil {
		stats.TreasuryBalance = treasury.Amount
	}

	return stats, nil
}

// User Management
func (s *AdminService) GetUsers(filter AdminUserFilter) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})

	if filter.UserType != nil {
		query = query.Where("user_type = ?", *filter.UserType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	allowedSortFields := []string{"created_at", "username", "email"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}

func (s *AdminService) UpdateUserStatus(callerID, userID uuid.UUID, status models.UserStatus, reason string) error {
	if err := s.authz.RequireRole(callerID, models.RoleAdmin); err != nil {
		return err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("user not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	if err := s.db.Model(&user).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	s.logAction(&callerID, "user_status_change", "user", userID.String(), models.JSONB{
		"status": string(status),
		"reason": reason,
	})

	return nil
}

// Transactions
func (s *AdminService) GetTransactions(filter AdminTransactionFilter) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{})

	if filter.TransactionType != nil {
		query = query.Where("type = ?", *filter.TransactionType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PayerID != nil {
		query = query.Where("payer_id = ?", *filter.PayerID)
	}
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.AmountMin != nil {
		query = query.Where("amount >= ?", *filter.AmountMin)
	}
	if filter.AmountMax != nil {
		query = query.Where("amount <= ?", *filter.AmountMax)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}

// Settings
func (s *AdminService) GetSettings(category string) ([]models.AdminSettings, error) {
	query := s.db.Model(&models.AdminSettings{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var settings []models.AdminSettings
	if err := query.Order("category, key").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return settings, nil
}

func (s *AdminService) UpdateSetting(callerID uuid.UUID, category, key string, value models.JSONB) error {
	if err := s.authz.RequireRole(callerID, models.RoleAdmin); err != nil {
		return err
	}

	var setting models.AdminSettings
	if err := s.db.Where("category = ? AND key = ?", category, key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSettingNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	updates := map[string]interface{}{
		"value":      value,
		"updated_by": callerID,
	}
	if err := s.db.Model(&setting).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update setting: %w", err)
	}

	s.logAction(&callerID, "setting_update", "admin_settings", setting.ID.String(), models.JSONB{
		"category": category,
		"key":      key,
		"value":    value,
	})

	return nil
}

// Pause gate: all state-mutating entry points check this before
// dispatch.
func (s *AdminService) IsPaused() bool {
	var setting models.AdminSettings
	if err := s.db.Where("category = ? AND key = ?", "general", "paused").First(&setting).Error; err != nil {
		return false
	}

	if v, ok := setting.Value["value"].(bool); ok {
		return v
	}
	return false
}

func (s *AdminService) SetPaused(callerID uuid.UUID, paused bool) error {
	if err := s.authz.RequireRole(callerID, models.RoleAdmin); err != nil {
		return err
	}

	var setting models.AdminSettings
	err := s.db.Where("category = ? AND key = ?", "general", "paused").First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.AdminSettings{
			Category:    "general",
			Key:         "paused",
			Value:       models.JSONB{"value": paused},
			DataType:    "bool",
			Description: "Platform-wide pause gate on state-mutating operations",
			UpdatedBy:   callerID,
		}
		if err := s.db.Create(&setting).Error; err != nil {
			return fmt.Errorf("failed to store pause setting: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	} else {
		updates := map[string]interface{}{
			"value":      models.JSONB{"value": paused},
			"updated_by": callerID,
		}
		if err := s.db.Model(&setting).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update pause setting: %w", err)
		}
	}

	s.logAction(&callerID, "platform_pause", "admin_settings", "general/paused", models.JSONB{
		"paused": paused,
	})

	return nil
}

// Audit log
func (s *AdminService) GetAuditLogs(params utils.PaginationParams, action string) ([]models.AuditLog, int64, error) {
	query := s.db.Model(&models.AuditLog{}).Preload("User")
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	allowedSortFields := []string{"created_at", "action"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	return logs, total, nil
}

func (s *AdminService) logAction(userID *uuid.UUID, action, resourceType, resourceID string, values models.JSONB) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		NewValues:    values,
	}
	if err := s.db.Create(entry).Error; err != nil {
		// Audit failures never block the underlying operation.
		fmt.Printf("failed to write audit log: %v\n", err)
	}
}
