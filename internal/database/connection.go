// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	if err := Migrate(db); err != nil {
		return err
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// Migrate runs the schema auto-migration for every ledger entity. Split
// out from RunMigrations so tests can migrate an in-memory database
// without the Postgres-specific extension and index statements.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.RoleGrant{},
		&models.IPAsset{},
		&models.License{},
		&models.RecurringPayment{},
		&models.Listing{},
		&models.Offer{},
		&models.SaleRecord{},
		&models.RevenueShare{},
		&models.Balance{},
		&models.Dispute{},
		&models.Transaction{},
		&models.AuditLog{},
		&models.AdminSettings{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)",
		"CREATE INDEX IF NOT EXISTS idx_users_type_status ON users(user_type, status)",

		// IP asset indexes
		"CREATE INDEX IF NOT EXISTS idx_ip_assets_owner ON ip_assets(owner_id)",
		"CREATE INDEX IF NOT EXISTS idx_ip_assets_category ON ip_assets(category)",
		"CREATE INDEX IF NOT EXISTS idx_ip_assets_created_at ON ip_assets(created_at DESC)",

		// License indexes
		"CREATE INDEX IF NOT EXISTS idx_licenses_ip_asset ON licenses(ip_asset_id)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_holder ON licenses(holder_id)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_terminal ON licenses(revoked, expired)",

		// Marketplace indexes
		"CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status)",
		"CREATE INDEX IF NOT EXISTS idx_listings_seller ON listings(seller_id)",
		"CREATE INDEX IF NOT EXISTS idx_offers_status ON offers(status)",
		"CREATE INDEX IF NOT EXISTS idx_offers_buyer ON offers(buyer_id)",

		// Revenue indexes
		"CREATE INDEX IF NOT EXISTS idx_revenue_shares_asset ON revenue_shares(ip_asset_id, position)",

		// Dispute indexes
		"CREATE INDEX IF NOT EXISTS idx_disputes_license ON disputes(license_id)",
		"CREATE INDEX IF NOT EXISTS idx_disputes_status ON disputes(status)",

		// Transaction indexes
		"CREATE INDEX IF NOT EXISTS idx_transactions_type_status ON transactions(type, status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC)",

		// Audit indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_admin_settings_category ON admin_settings(category, key)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default admin user
	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@softlaw.market",
			UserType: models.UserTypeAdmin,
			Status:   models.UserStatusActive,
			ProfileData: models.JSONB{
				"first_name": "System",
				"last_name":  "Administrator",
			},
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		// The bootstrap admin holds every capability role.
		for _, role := range []models.Role{models.RoleAdmin, models.RoleArbitrator, models.RoleLicenseManager, models.RoleConfigurator} {
			grant := &models.RoleGrant{UserID: admin.ID, Role: role, GrantedBy: admin.ID}
			if err := db.Create(grant).Error; err != nil {
				return fmt.Errorf("failed to grant %s role: %w", role, err)
			}
		}

		log.Println("Default admin user created successfully")
	}

	// Create default platform settings
	defaultSettings := []models.AdminSettings{
		{
			Category:    "general",
			Key:         "platform_name",
			Value:       models.JSONB{"value": "Softlaw Market"},
			DataType:    "string",
			Description: "Platform name displayed to users",
		},
		{
			Category:    "general",
			Key:         "paused",
			Value:       models.JSONB{"value": false},
			DataType:    "boolean",
			Description: "Global pause gate for all state-mutating endpoints",
		},
		{
			Category:    "payments",
			Key:         "platform_fee_bps",
			Value:       models.JSONB{"value": 250},
			DataType:    "integer",
			Description: "Platform fee in basis points charged on primary sales",
		},
		{
			Category:    "payments",
			Key:         "default_royalty_bps",
			Value:       models.JSONB{"value": 500},
			DataType:    "integer",
			Description: "Default royalty in basis points on secondary sales",
		},
		{
			Category:    "payments",
			Key:         "penalty_rate_bps",
			Value:       models.JSONB{"value": 500},
			DataType:    "integer",
			Description: "Marketplace default late-payment penalty rate",
		},
		{
			Category:    "payments",
			Key:         "minimum_payout",
			Value:       models.JSONB{"value": 1000},
			DataType:    "integer",
			Description: "Minimum amount for withdrawal requests",
		},
	}

	for _, setting := range defaultSettings {
		var count int64
		db.Model(&models.AdminSettings{}).Where("category = ? AND key = ?", setting.Category, setting.Key).Count(&count)

		if count == 0 {
			var admin models.User
			if err := db.Where("user_type = ?", models.UserTypeAdmin).First(&admin).Error; err == nil {
				setting.UpdatedBy = admin.ID
				if err := db.Create(&setting).Error; err != nil {
					log.Printf("Warning: Failed to create setting %s.%s: %v", setting.Category, setting.Key, err)
				}
			}
		}
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
