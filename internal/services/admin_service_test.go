// internal/services/admin_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

func newAdminService(env *testEnv) *AdminService {
	return NewAdminService(env.db, env.authz, nil)
}

func TestPauseGateToggle(t *testing.T) {
	env := newTestEnv(t)
	adminSvc := newAdminService(env)
	admin := env.createUser(t, "admin")
	user := env.createUser(t, "user")
	env.grantRole(t, admin.ID, models.RoleAdmin)

	assert.False(t, adminSvc.IsPaused())

	assert.ErrorIs(t, adminSvc.SetPaused(user.ID, true), ErrRoleRequired)
	assert.False(t, adminSvc.IsPaused())

	require.NoError(t, adminSvc.SetPaused(admin.ID, true))
	assert.True(t, adminSvc.IsPaused())

	require.NoError(t, adminSvc.SetPaused(admin.ID, false))
	assert.False(t, adminSvc.IsPaused())

	// Every toggle leaves an audit trail.
	logs, total, err := adminSvc.GetAuditLogs(env.paginationDefaults(), "platform_pause")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)
}

func TestUpdateUserStatus(t *testing.T) {
	env := newTestEnv(t)
	adminSvc := newAdminService(env)
	admin := env.createUser(t, "admin")
	user := env.createUser(t, "user")
	env.grantRole(t, admin.ID, models.RoleAdmin)

	assert.ErrorIs(t, adminSvc.UpdateUserStatus(user.ID, user.ID, models.UserStatusBanned, "x"), ErrRoleRequired)

	require.NoError(t, adminSvc.UpdateUserStatus(admin.ID, user.ID, models.UserStatusSuspended, "spam"))

	var got models.User
	require.NoError(t, env.db.First(&got, user.ID).Error)
	assert.Equal(t, models.UserStatusSuspended, got.Status)
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	adminSvc := newAdminService(env)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	buyer := env.createUser(t, "buyer")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	listing := env.createListing(t, holder, license.ID, 1000)
	env.processor.charge("pi_sale", 1000)
	_, err := env.market.BuyListing(buyer.ID, listing.ID, "pi_sale")
	require.NoError(t, err)

	_, err = env.disputes.SubmitDispute(owner.ID, &SubmitDisputeRequest{
		LicenseID: license.ID,
		Reason:    "unauthorized use",
	})
	require.NoError(t, err)

	stats, err := adminSvc.GetDashboardStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalIPAssets)
	assert.Equal(t, int64(1), stats.DisputedIPAssets)
	assert.Equal(t, int64(1), stats.ActiveLicenses)
	assert.Equal(t, int64(1), stats.PendingDisputes)
	assert.Equal(t, int64(1000), stats.TotalRevenue)
	assert.Equal(t, int64(25), stats.TreasuryBalance)
	assert.Equal(t, int64(0), stats.ActiveListings)
}

func TestUpdateSettingRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	adminSvc := newAdminService(env)
	admin := env.createUser(t, "admin")
	user := env.createUser(t, "user")
	env.grantRole(t, admin.ID, models.RoleAdmin)

	require.NoError(t, env.db.Create(&models.AdminSettings{
		Category:  "general",
		Key:       "motd",
		Value:     models.JSONB{"value": "welcome"},
		DataType:  "string",
		UpdatedBy: admin.ID,
	}).Error)

	err := adminSvc.UpdateSetting(user.ID, "general", "motd", models.JSONB{"value": "hello"})
	assert.ErrorIs(t, err, ErrRoleRequired)

	err = adminSvc.UpdateSetting(admin.ID, "general", "missing", models.JSONB{"value": "x"})
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, adminSvc.UpdateSetting(admin.ID, "general", "motd", models.JSONB{"value": "hello"}))

	settings, err := adminSvc.GetSettings("general")
	require.NoError(t, err)
	require.Len(t, settings, 1)
	assert.Equal(t, "motd", settings[0].Key)
	assert.Equal(t, "hello", settings[0].Value["value"])
}
