// internal/services/revenue_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

func TestConfigureSplitValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	stranger := env.createUser(t, "stranger")
	collab := env.createUser(t, "collab")
	asset := env.createAsset(t, owner)

	err := env.revenue.ConfigureSplit(owner.ID, &ConfigureSplitRequest{
		IPAssetID: asset.ID,
		Entries: []SplitEntry{
			{RecipientID: owner.ID, ShareBps: 6000},
			{RecipientID: collab.ID, ShareBps: 3000},
		},
	})
	assert.ErrorIs(t, err, ErrSplitSumInvalid)

	err = env.revenue.ConfigureSplit(stranger.ID, &ConfigureSplitRequest{
		IPAssetID: asset.ID,
		Entries: []SplitEntry{
			{RecipientID: stranger.ID, ShareBps: 10000},
		},
	})
	assert.ErrorIs(t, err, ErrNotSplitConfigurer)

	err = env.revenue.ConfigureSplit(owner.ID, &ConfigureSplitRequest{
		IPAssetID: asset.ID,
		Entries:   []SplitEntry{},
	})
	assert.Error(t, err)
}

func TestConfigureSplitReplacesAtomically(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	collab := env.createUser(t, "collab")
	asset := env.createAsset(t, owner)

	err := env.revenue.ConfigureSplit(owner.ID, &ConfigureSplitRequest{
		IPAssetID: asset.ID,
		Entries: []SplitEntry{
			{RecipientID: owner.ID, ShareBps: 5000},
			{RecipientID: collab.ID, ShareBps: 5000},
		},
	})
	require.NoError(t, err)

	err = env.revenue.ConfigureSplit(owner.ID, &ConfigureSplitRequest{
		IPAssetID: asset.ID,
		Entries: []SplitEntry{
			{RecipientID: owner.ID, ShareBps: 10000},
		},
	})
	require.NoError(t, err)

	shares, err := env.revenue.GetSplit(asset.ID)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, owner.ID, shares[0].RecipientID)
	assert.Equal(t, 10000, shares[0].ShareBps)
}

func TestConfigureSplitConfiguratorRole(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	operator := env.createUser(t, "operator")
	asset := env.createAsset(t, owner)
	env.grantRole(t, operator.ID, models.RoleConfigurator)

	err := env.revenue.ConfigureSplit(operator.ID, &ConfigureSplitRequest{
		IPAssetID: asset.ID,
		Entries: []SplitEntry{
			{RecipientID: owner.ID, ShareBps: 10000},
		},
	})
	assert.NoError(t, err)
}

func TestDistributePrimarySaleWithSplit(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	collab := env.createUser(t, "collab")
	asset := env.createAsset(t, owner)

	require.NoError(t, env.revenue.ConfigureSplit(owner.ID, &ConfigureSplitRequest{
		IPAssetID: asset.ID,
		Entries: []SplitEntry{
			{RecipientID: owner.ID, ShareBps: 7000},
			{RecipientID: collab.ID, ShareBps: 3000},
		},
	}))

	env.processor.charge("pi_primary", 1000)
	record, err := env.revenue.DistributePayment(asset.ID, 1000, owner.ID, true, "pi_primary")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionTypePrimarySale, record.Type)
	assert.Equal(t, int64(25), record.PlatformFee)

	// Fee 25, remainder 975 split 70/30: 682 floored, dust to the
	// last recipient.
	assert.Equal(t, int64(25), env.balance(t, models.TreasuryAccountID))
	assert.Equal(t, int64(682), env.balance(t, owner.ID))
	assert.Equal(t, int64(293), env.balance(t, collab.ID))

	// Conservation: credits sum to the captured amount exactly.
	total := env.balance(t, models.TreasuryAccountID) + env.balance(t, owner.ID) + env.balance(t, collab.ID)
	assert.Equal(t, int64(1000), total)
}

func TestDistributePrimarySaleWithoutSplit(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	asset := env.createAsset(t, owner)

	env.processor.charge("pi_primary", 1000)
	_, err := env.revenue.DistributePayment(asset.ID, 1000, owner.ID, true, "pi_primary")
	require.NoError(t, err)

	// No split configured: the remainder goes to the asset owner.
	assert.Equal(t, int64(25), env.balance(t, models.TreasuryAccountID))
	assert.Equal(t, int64(975), env.balance(t, owner.ID))
}

func TestDistributeSecondarySaleDefaultRoyalty(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	seller := env.createUser(t, "seller")
	asset := env.createAsset(t, owner)

	env.processor.charge("pi_secondary", 1000)
	record, err := env.revenue.DistributePayment(asset.ID, 1000, seller.ID, false, "pi_secondary")
	require.NoError(t, err)

	// Default royalty 500 bps of 1000 is 50 to the owner; the seller
	// keeps the rest. No platform fee on secondary sales.
	assert.Equal(t, models.TransactionTypeSecondarySale, record.Type)
	assert.Equal(t, int64(50), record.Royalty)
	assert.Equal(t, int64(0), record.PlatformFee)
	assert.Equal(t, int64(50), env.balance(t, owner.ID))
	assert.Equal(t, int64(950), env.balance(t, seller.ID))
	assert.Equal(t, int64(0), env.balance(t, models.TreasuryAccountID))
}

func TestDistributeSecondarySaleRoyaltyOverride(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	seller := env.createUser(t, "seller")
	asset := env.createAsset(t, owner)

	require.NoError(t, env.revenue.SetAssetRoyalty(owner.ID, asset.ID, 1000))

	bps, err := env.revenue.GetAssetRoyalty(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, bps)

	env.processor.charge("pi_secondary", 1000)
	_, err = env.revenue.DistributePayment(asset.ID, 1000, seller.ID, false, "pi_secondary")
	require.NoError(t, err)

	assert.Equal(t, int64(100), env.balance(t, owner.ID))
	assert.Equal(t, int64(900), env.balance(t, seller.ID))
}

func TestDistributeRejectsMismatchedCapture(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	asset := env.createAsset(t, owner)

	env.processor.charge("pi_short", 900)
	_, err := env.revenue.DistributePayment(asset.ID, 1000, owner.ID, true, "pi_short")
	assert.ErrorIs(t, err, ErrIncorrectPayment)

	_, err = env.revenue.DistributePayment(asset.ID, 1000, owner.ID, true, "pi_missing")
	assert.ErrorIs(t, err, ErrPaymentNotCaptured)

	_, err = env.revenue.DistributePayment(asset.ID, 0, owner.ID, true, "pi_short")
	assert.ErrorIs(t, err, ErrZeroAmount)

	// Nothing was credited.
	assert.Equal(t, int64(0), env.balance(t, owner.ID))
	assert.Equal(t, int64(0), env.balance(t, models.TreasuryAccountID))
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	asset := env.createAsset(t, owner)

	env.processor.charge("pi_primary", 1000)
	_, err := env.revenue.DistributePayment(asset.ID, 1000, owner.ID, true, "pi_primary")
	require.NoError(t, err)

	withdrawn, err := env.revenue.Withdraw(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(975), withdrawn)
	assert.Equal(t, int64(0), env.balance(t, owner.ID))
	assert.Equal(t, int64(975), env.processor.payouts["acct_owner"])

	// The withdrawal left a completed ledger record carrying the
	// processor's transfer reference.
	var record models.Transaction
	require.NoError(t, env.db.Where("type = ?", models.TransactionTypeWithdrawal).First(&record).Error)
	assert.Equal(t, models.TransactionStatusCompleted, record.Status)
	assert.Equal(t, "tr_acct_owner", record.PaymentReference)

	// The balance is zeroed; a second withdrawal has nothing to move.
	_, err = env.revenue.Withdraw(owner.ID)
	assert.ErrorIs(t, err, ErrNothingToWithdraw)
}

func TestWithdrawPayoutFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	asset := env.createAsset(t, owner)

	env.processor.charge("pi_primary", 1000)
	_, err := env.revenue.DistributePayment(asset.ID, 1000, owner.ID, true, "pi_primary")
	require.NoError(t, err)

	env.processor.failPayout = true
	_, err = env.revenue.Withdraw(owner.ID)
	assert.ErrorIs(t, err, ErrPaymentTransferFailed)

	// The balance was restored after the failed transfer, and the
	// intent record was marked failed for reconciliation.
	assert.Equal(t, int64(975), env.balance(t, owner.ID))

	var record models.Transaction
	require.NoError(t, env.db.Where("type = ?", models.TransactionTypeWithdrawal).First(&record).Error)
	assert.Equal(t, models.TransactionStatusFailed, record.Status)

	env.processor.failPayout = false
	withdrawn, err := env.revenue.Withdraw(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(975), withdrawn)
}

func TestWithdrawWithoutPayoutAccount(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	asset := env.createAsset(t, owner)

	require.NoError(t, env.db.Model(owner).Update("payout_account", "").Error)

	env.processor.charge("pi_primary", 1000)
	_, err := env.revenue.DistributePayment(asset.ID, 1000, owner.ID, true, "pi_primary")
	require.NoError(t, err)

	_, err = env.revenue.Withdraw(owner.ID)
	assert.ErrorIs(t, err, ErrMissingPayoutAccount)
	assert.Equal(t, int64(975), env.balance(t, owner.ID))
}

func TestSetDefaultRoyalty(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin")
	seller := env.createUser(t, "seller")
	owner := env.createUser(t, "owner")
	env.grantRole(t, admin.ID, models.RoleAdmin)
	asset := env.createAsset(t, owner)

	assert.ErrorIs(t, env.revenue.SetDefaultRoyalty(seller.ID, 700), ErrRoleRequired)
	assert.ErrorIs(t, env.revenue.SetDefaultRoyalty(admin.ID, 10001), ErrRoyaltyTooHigh)

	require.NoError(t, env.revenue.SetDefaultRoyalty(admin.ID, 700))

	env.processor.charge("pi_secondary", 1000)
	_, err := env.revenue.DistributePayment(asset.ID, 1000, seller.ID, false, "pi_secondary")
	require.NoError(t, err)
	assert.Equal(t, int64(70), env.balance(t, owner.ID))

	var setting models.AdminSettings
	require.NoError(t, env.db.Where("category = ? AND key = ?", "payments", "default_royalty_bps").First(&setting).Error)
	assert.Equal(t, "int", setting.DataType)

	// The stored rate survives a restart.
	env.settings.setDefaultRoyaltyBps(500)
	env.revenue.LoadStoredDefaultRoyalty()
	assert.Equal(t, 700, env.settings.DefaultRoyaltyBps())
}

func TestSetAssetRoyaltyAuthorization(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	stranger := env.createUser(t, "stranger")
	asset := env.createAsset(t, owner)

	assert.ErrorIs(t, env.revenue.SetAssetRoyalty(stranger.ID, asset.ID, 1000), ErrNotSplitConfigurer)
	assert.ErrorIs(t, env.revenue.SetAssetRoyalty(owner.ID, asset.ID, 10001), ErrRoyaltyTooHigh)
}
