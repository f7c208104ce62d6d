// internal/services/service_test_helpers_test.go
package services

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/database"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps every session on the same in-memory
	// database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Marketplace: config.MarketplaceConfig{
			PlatformFeeBps:      250,
			DefaultRoyaltyBps:   500,
			PenaltyRateBps:      500,
			MaxPenaltyRateBps:   1000,
			GracePeriodSeconds:  3 * 24 * 3600,
			DisputeDeadlineDays: 30,
		},
	}
}

var errProcessorDown = errors.New("payment processor unavailable")

// fakeProcessor is an in-memory PaymentProcessor. Charges are
// registered up front with charge(); refunds and payouts are recorded
// for assertions. failVerify simulates a transient processor outage on
// the exact-amount check.
type fakeProcessor struct {
	captured   map[string]int64
	refunds    map[string]int64
	payouts    map[string]int64
	failPayout bool
	failVerify error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		captured: make(map[string]int64),
		refunds:  make(map[string]int64),
		payouts:  make(map[string]int64),
	}
}

func (p *fakeProcessor) charge(ref string, amount int64) {
	p.captured[ref] = amount
}

func (p *fakeProcessor) VerifyPayment(ref string, amount int64) error {
	if p.failVerify != nil {
		return p.failVerify
	}
	got, ok := p.captured[ref]
	if !ok {
		return ErrPaymentNotCaptured
	}
	if got != amount {
		return fmt.Errorf("%w: captured %d, declared %d", ErrIncorrectPayment, got, amount)
	}
	return nil
}

func (p *fakeProcessor) VerifyPaymentAtLeast(ref string, amount int64) (int64, error) {
	got, ok := p.captured[ref]
	if !ok {
		return 0, ErrPaymentNotCaptured
	}
	if got < amount {
		return 0, fmt.Errorf("%w: captured %d, required %d", ErrInsufficientPayment, got, amount)
	}
	return got, nil
}

func (p *fakeProcessor) Refund(ref string, amount int64) error {
	p.refunds[ref] += amount
	return nil
}

func (p *fakeProcessor) Payout(destination string, amount int64, idempotencyKey string) (string, error) {
	if destination == "" {
		return "", ErrMissingPayoutAccount
	}
	if p.failPayout {
		return "", ErrPaymentTransferFailed
	}
	p.payouts[destination] += amount
	return "tr_" + destination, nil
}

// testClock is a manually advanced clock shared by every service in a
// test environment.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type testEnv struct {
	db        *gorm.DB
	cfg       *config.Config
	clock     *testClock
	processor *fakeProcessor
	settings  *RuntimeSettings
	authz     *AuthorizationService
	assets    *IPAssetService
	licenses  *LicenseService
	revenue   *RevenueService
	market    *MarketplaceService
	disputes  *DisputeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	cfg := testConfig()
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	processor := newFakeProcessor()
	settings := NewRuntimeSettings(cfg)

	authz := NewAuthorizationService(db)
	assets := NewIPAssetService(db, authz)
	licenses := NewLicenseService(db, assets, authz, nil, settings)
	revenue := NewRevenueService(db, cfg, authz, processor, settings)
	market := NewMarketplaceService(db, cfg, authz, processor, revenue, licenses, settings)
	disputes := NewDisputeService(db, cfg, assets, licenses, authz)

	licenses.now = clock.Now
	market.now = clock.Now
	disputes.now = clock.Now

	return &testEnv{
		db:        db,
		cfg:       cfg,
		clock:     clock,
		processor: processor,
		settings:  settings,
		authz:     authz,
		assets:    assets,
		licenses:  licenses,
		revenue:   revenue,
		market:    market,
		disputes:  disputes,
	}
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  "test-hash",
		UserType:      models.UserTypeCreator,
		Status:        models.UserStatusActive,
		PayoutAccount: "acct_" + username,
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func (e *testEnv) grantRole(t *testing.T, userID uuid.UUID, role models.Role) {
	t.Helper()

	grant := &models.RoleGrant{
		UserID:    userID,
		Role:      role,
		GrantedBy: userID,
	}
	if err := e.db.Create(grant).Error; err != nil {
		t.Fatalf("failed to grant role %s: %v", role, err)
	}
}

func (e *testEnv) createAsset(t *testing.T, owner *models.User) *models.IPAsset {
	t.Helper()

	asset, err := e.assets.CreateIPAsset(owner.ID, &CreateIPAssetRequest{
		Title:    "Test Asset " + uuid.NewString()[:8],
		Category: "music",
	})
	if err != nil {
		t.Fatalf("failed to create IP asset: %v", err)
	}
	return asset
}

func (e *testEnv) mintLicense(t *testing.T, req *MintLicenseRequest) *models.License {
	t.Helper()

	license, err := e.licenses.MintLicense(req)
	if err != nil {
		t.Fatalf("failed to mint license: %v", err)
	}
	return license
}

func (e *testEnv) assetCount(t *testing.T, assetID int64) int {
	t.Helper()

	asset, err := e.assets.GetIPAsset(assetID)
	if err != nil {
		t.Fatalf("failed to load asset: %v", err)
	}
	return asset.ActiveLicenseCount
}

func (e *testEnv) paginationDefaults() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20}
}

func (e *testEnv) balance(t *testing.T, recipientID uuid.UUID) int64 {
	t.Helper()

	amount, err := e.revenue.GetBalance(recipientID)
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	return amount
}
