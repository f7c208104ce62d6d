// internal/services/marketplace_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

func (e *testEnv) createListing(t *testing.T, seller *models.User, licenseID, price int64) *models.Listing {
	t.Helper()

	listing, err := e.market.CreateListing(seller.ID, &CreateListingRequest{
		LicenseID:     licenseID,
		Quantity:      1,
		Price:         price,
		TokenStandard: models.TokenStandard721,
	})
	if err != nil {
		t.Fatalf("failed to create listing: %v", err)
	}
	return listing
}

func TestCreateListingChecks(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	stranger := env.createUser(t, "stranger")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	_, err := env.market.CreateListing(stranger.ID, &CreateListingRequest{
		LicenseID:     license.ID,
		Quantity:      1,
		Price:         1000,
		TokenStandard: models.TokenStandard721,
	})
	assert.ErrorIs(t, err, ErrNotLicenseHolder)

	arbitrator := env.createUser(t, "arbitrator")
	env.grantRole(t, arbitrator.ID, models.RoleArbitrator)
	require.NoError(t, env.licenses.RevokeLicense(arbitrator.ID, license.ID, "infringement"))

	_, err = env.market.CreateListing(holder.ID, &CreateListingRequest{
		LicenseID:     license.ID,
		Quantity:      1,
		Price:         1000,
		TokenStandard: models.TokenStandard721,
	})
	assert.ErrorIs(t, err, ErrLicenseNotTradable)
}

func TestBuyListingStickyClassification(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	buyer1 := env.createUser(t, "buyer1")
	buyer2 := env.createUser(t, "buyer2")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	// First sale: primary. Platform fee 250 bps of 1000 hits the
	// treasury, the remainder goes to the asset owner.
	listing := env.createListing(t, holder, license.ID, 1000)
	env.processor.charge("pi_sale1", 1000)
	record, err := env.market.BuyListing(buyer1.ID, listing.ID, "pi_sale1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypePrimarySale, record.Type)
	assert.Equal(t, int64(25), env.balance(t, models.TreasuryAccountID))
	assert.Equal(t, int64(975), env.balance(t, owner.ID))

	got, err := env.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, buyer1.ID, got.HolderID)

	sold, err := env.market.GetListing(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, sold.Status)

	// Resale: secondary. Royalty to the owner, remainder to the
	// reseller, no platform fee.
	listing2 := env.createListing(t, buyer1, license.ID, 2000)
	env.processor.charge("pi_sale2", 2000)
	record, err = env.market.BuyListing(buyer2.ID, listing2.ID, "pi_sale2")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeSecondarySale, record.Type)
	assert.Equal(t, int64(975+100), env.balance(t, owner.ID))
	assert.Equal(t, int64(1900), env.balance(t, buyer1.ID))

	var saleRecords int64
	require.NoError(t, env.db.Model(&models.SaleRecord{}).Where("license_id = ?", license.ID).Count(&saleRecords).Error)
	assert.Equal(t, int64(1), saleRecords)
}

func TestBuyListingCapturesOverpayment(t *testing.T) {
	env := newTestEnv(t)
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

	// The full captured amount is distributed, not just the price.
	env.processor.charge("pi_over", 1200)
	record, err := env.market.BuyListing(buyer.ID, listing.ID, "pi_over")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), record.Amount)
	assert.Equal(t, int64(30), env.balance(t, models.TreasuryAccountID))
	assert.Equal(t, int64(1170), env.balance(t, owner.ID))
}

func TestBuyListingRejectsUnderpaymentAndInactive(t *testing.T) {
	env := newTestEnv(t)
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

	env.processor.charge("pi_short", 900)
	_, err := env.market.BuyListing(buyer.ID, listing.ID, "pi_short")
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	require.NoError(t, env.market.CancelListing(holder.ID, listing.ID))

	env.processor.charge("pi_exact", 1000)
	_, err = env.market.BuyListing(buyer.ID, listing.ID, "pi_exact")
	assert.ErrorIs(t, err, ErrListingNotActive)
}

func TestCancelListingAuthorization(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	stranger := env.createUser(t, "stranger")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})
	listing := env.createListing(t, holder, license.ID, 1000)

	assert.ErrorIs(t, env.market.CancelListing(stranger.ID, listing.ID), ErrNotListingSeller)
	require.NoError(t, env.market.CancelListing(holder.ID, listing.ID))
	assert.ErrorIs(t, env.market.CancelListing(holder.ID, listing.ID), ErrListingNotActive)
}

func TestStaleListingAfterTransfer(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	buyer := env.createUser(t, "buyer")
	late := env.createUser(t, "late")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	// Two listings for the same license; the second goes stale once the
	// first sells.
	listing1 := env.createListing(t, holder, license.ID, 1000)
	listing2 := env.createListing(t, holder, license.ID, 1100)

	env.processor.charge("pi_sale", 1000)
	_, err := env.market.BuyListing(buyer.ID, listing1.ID, "pi_sale")
	require.NoError(t, err)

	env.processor.charge("pi_late", 1100)
	_, err = env.market.BuyListing(late.ID, listing2.ID, "pi_late")
	assert.ErrorIs(t, err, ErrNotLicenseHolder)
}

func TestOfferEscrowLifecycle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	buyer := env.createUser(t, "buyer")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	// Escrow requires an exact capture.
	env.processor.charge("pi_wrong", 900)
	_, err := env.market.CreateOffer(buyer.ID, &CreateOfferRequest{
		LicenseID:  license.ID,
		Amount:     1000,
		PaymentRef: "pi_wrong",
	})
	assert.ErrorIs(t, err, ErrIncorrectPayment)

	env.processor.charge("pi_escrow", 1000)
	offer, err := env.market.CreateOffer(buyer.ID, &CreateOfferRequest{
		LicenseID:  license.ID,
		Amount:     1000,
		PaymentRef: "pi_escrow",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusActive, offer.Status)
	assert.Equal(t, "pi_escrow", offer.EscrowRef)

	// Only the buyer may cancel; the full escrow is refunded.
	assert.ErrorIs(t, env.market.CancelOffer(holder.ID, offer.ID), ErrNotOfferBuyer)
	require.NoError(t, env.market.CancelOffer(buyer.ID, offer.ID))
	assert.Equal(t, int64(1000), env.processor.refunds["pi_escrow"])
	assert.ErrorIs(t, env.market.CancelOffer(buyer.ID, offer.ID), ErrOfferNotActive)

	_, err = env.market.AcceptOffer(holder.ID, offer.ID)
	assert.ErrorIs(t, err, ErrOfferNotActive)
}

func TestAcceptOfferDistributes(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	buyer := env.createUser(t, "buyer")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	env.processor.charge("pi_escrow", 1000)
	offer, err := env.market.CreateOffer(buyer.ID, &CreateOfferRequest{
		LicenseID:  license.ID,
		Amount:     1000,
		PaymentRef: "pi_escrow",
	})
	require.NoError(t, err)

	_, err = env.market.AcceptOffer(buyer.ID, offer.ID)
	assert.ErrorIs(t, err, ErrNotLicenseHolder)

	record, err := env.market.AcceptOffer(holder.ID, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypePrimarySale, record.Type)

	got, err := env.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, got.HolderID)
	assert.Equal(t, int64(25), env.balance(t, models.TreasuryAccountID))
	assert.Equal(t, int64(975), env.balance(t, owner.ID))
}

func TestExpiredOfferUnacceptableButCancellable(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	buyer := env.createUser(t, "buyer")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	expiry := env.clock.Now().Add(24 * time.Hour)
	env.processor.charge("pi_escrow", 1000)
	offer, err := env.market.CreateOffer(buyer.ID, &CreateOfferRequest{
		LicenseID:  license.ID,
		Amount:     1000,
		PaymentRef: "pi_escrow",
		ExpiresAt:  &expiry,
	})
	require.NoError(t, err)

	env.clock.Advance(48 * time.Hour)

	_, err = env.market.AcceptOffer(holder.ID, offer.ID)
	assert.ErrorIs(t, err, ErrOfferExpired)

	// Expiry never releases the escrow by itself; the buyer cancels to
	// get the funds back.
	require.NoError(t, env.market.CancelOffer(buyer.ID, offer.ID))
	assert.Equal(t, int64(1000), env.processor.refunds["pi_escrow"])
}

func mintRecurring(t *testing.T, env *testEnv, assetID int64, holder *models.User, base int64) *models.License {
	t.Helper()
	return env.mintLicense(t, &MintLicenseRequest{
		IPAssetID:       assetID,
		HolderID:        holder.ID,
		Supply:          1,
		PaymentInterval: SecondsPerMonth,
		BaseAmount:      base,
	})
}

func TestMissedPaymentsWindow(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	asset := env.createAsset(t, owner)
	license := mintRecurring(t, env, asset.ID, holder, 100000)

	// Inside interval plus grace nothing is missed.
	env.clock.Advance(32 * 24 * time.Hour)
	missed, err := env.market.GetMissedPayments(license.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, missed)

	penalty, err := env.market.CalculatePenalty(license.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), penalty)

	// Two days beyond the grace window: one missed payment, penalty
	// pro-rated over a 30-day month.
	env.clock.Advance(3 * 24 * time.Hour)
	missed, err = env.market.GetMissedPayments(license.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, missed)

	// 500 bps x 100000 x 172800s beyond grace / (2592000 x 10000).
	penalty, err = env.market.CalculatePenalty(license.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(333), penalty)

	due, err := env.market.GetTotalPaymentDue(license.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), due.BaseAmount)
	assert.Equal(t, int64(333), due.Penalty)
	assert.Equal(t, int64(100333), due.Total)
}

func TestMissedPaymentsOneTimeLicense(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	_, err := env.market.GetMissedPayments(license.ID)
	assert.ErrorIs(t, err, ErrLicenseNotRecurring)
}

func TestMakeRecurringPaymentSettles(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	asset := env.createAsset(t, owner)
	license := mintRecurring(t, env, asset.ID, holder, 100000)

	env.clock.Advance(34 * 24 * time.Hour)

	// One day beyond the grace window: base plus penalty is 100166.
	env.processor.charge("pi_short", 100000)
	_, err := env.market.MakeRecurringPayment(license.ID, "pi_short")
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	env.processor.charge("pi_due", 100166)
	record, err := env.market.MakeRecurringPayment(license.ID, "pi_due")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRecurringPayment, record.Type)
	require.NotNil(t, record.PayerID)
	assert.Equal(t, holder.ID, *record.PayerID)

	// Never sold, so the installment distributes as primary: fee to the
	// treasury, remainder to the owner.
	assert.Equal(t, int64(2504), env.balance(t, models.TreasuryAccountID))
	assert.Equal(t, int64(97662), env.balance(t, owner.ID))

	// The clock resets: nothing due anymore.
	missed, err := env.market.GetMissedPayments(license.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, missed)

	penalty, err := env.market.CalculatePenalty(license.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), penalty)
}

func TestRecurringPaymentAfterSaleIsSecondary(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	buyer := env.createUser(t, "buyer")
	asset := env.createAsset(t, owner)
	license := mintRecurring(t, env, asset.ID, holder, 100000)

	listing := env.createListing(t, holder, license.ID, 1000)
	env.processor.charge("pi_sale", 1000)
	_, err := env.market.BuyListing(buyer.ID, listing.ID, "pi_sale")
	require.NoError(t, err)

	ownerBefore := env.balance(t, owner.ID)

	env.clock.Advance(10 * 24 * time.Hour)
	env.processor.charge("pi_rent", 100000)
	record, err := env.market.MakeRecurringPayment(license.ID, "pi_rent")
	require.NoError(t, err)

	// The license has sold, so the installment follows the secondary
	// path: royalty to the owner, remainder to the owner as well since
	// the owner is the distribution seller for recurring payments.
	assert.Equal(t, models.TransactionTypeRecurringPayment, record.Type)
	assert.Equal(t, int64(0), record.PlatformFee)
	assert.Equal(t, int64(5000), record.Royalty)
	assert.Equal(t, ownerBefore+100000, env.balance(t, owner.ID))

	// The schedule follows the transfer.
	require.NotNil(t, record.PayerID)
	assert.Equal(t, buyer.ID, *record.PayerID)
}

func TestRecurringAutoRevocation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	asset := env.createAsset(t, owner)
	license := mintRecurring(t, env, asset.ID, holder, 100000)

	require.Equal(t, 1, env.assetCount(t, asset.ID))

	// Three missed installments: elapsed clears 3 intervals plus grace.
	env.clock.Advance(97 * 24 * time.Hour)
	missed, err := env.market.GetMissedPayments(license.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, missed, 3)

	env.processor.charge("pi_late", 200000)
	_, err = env.market.MakeRecurringPayment(license.ID, "pi_late")
	assert.ErrorIs(t, err, ErrRevokedMissedPayment)

	got, err := env.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	assert.Equal(t, 0, env.assetCount(t, asset.ID))

	// The attached funds went back to the payer, nothing was credited.
	assert.Equal(t, int64(200000), env.processor.refunds["pi_late"])
	assert.Equal(t, int64(0), env.balance(t, owner.ID))
}

func TestSetPenaltyRate(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin")
	user := env.createUser(t, "user")
	env.grantRole(t, admin.ID, models.RoleAdmin)

	assert.ErrorIs(t, env.market.SetPenaltyRate(user.ID, 600), ErrRoleRequired)
	assert.ErrorIs(t, env.market.SetPenaltyRate(admin.ID, 1001), ErrPenaltyRateAboveCap)

	require.NoError(t, env.market.SetPenaltyRate(admin.ID, 600))
	assert.Equal(t, 600, env.settings.PenaltyRateBps())

	var setting models.AdminSettings
	require.NoError(t, env.db.Where("category = ? AND key = ?", "payments", "penalty_rate_bps").First(&setting).Error)
	assert.Equal(t, "int", setting.DataType)

	// New mints without an explicit rate pick up the updated default.
	owner := env.createUser(t, "owner")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  owner.ID,
		Supply:    1,
	})
	assert.Equal(t, 600, license.PenaltyRateBps)

	// The stored rate survives a restart.
	env.settings.setPenaltyRateBps(500)
	env.market.LoadStoredPenaltyRate()
	assert.Equal(t, 600, env.settings.PenaltyRateBps())
}

func TestBuyListingDistributionFailureLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t)
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
	env.processor.failVerify = errProcessorDown

	_, err := env.market.BuyListing(buyer.ID, listing.ID, "pi_sale")
	require.ErrorIs(t, err, errProcessorDown)

	// The failed sale left nothing behind: no transfer, no sold mark, no
	// sticky classification, no credits.
	got, err := env.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, holder.ID, got.HolderID)

	gotListing, err := env.market.GetListing(listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, gotListing.Status)

	var stamped int64
	require.NoError(t, env.db.Model(&models.SaleRecord{}).
		Where("license_id = ?", license.ID).Count(&stamped).Error)
	assert.Equal(t, int64(0), stamped)
	assert.Equal(t, int64(0), env.balance(t, owner.ID))
	assert.Equal(t, int64(0), env.balance(t, models.TreasuryAccountID))

	// Once the processor recovers the same sale settles as primary.
	env.processor.failVerify = nil
	record, err := env.market.BuyListing(buyer.ID, listing.ID, "pi_sale")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypePrimarySale, record.Type)
	assert.Equal(t, int64(25), env.balance(t, models.TreasuryAccountID))
}

func TestAcceptOfferDistributionFailureKeepsOffer(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	buyer := env.createUser(t, "buyer")
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  owner.ID,
		Supply:    1,
	})

	env.processor.charge("pi_offer", 1000)
	offer, err := env.market.CreateOffer(buyer.ID, &CreateOfferRequest{
		LicenseID:  license.ID,
		Amount:     1000,
		PaymentRef: "pi_offer",
	})
	require.NoError(t, err)

	env.processor.failVerify = errProcessorDown
	_, err = env.market.AcceptOffer(owner.ID, offer.ID)
	require.ErrorIs(t, err, errProcessorDown)

	// The offer is still active and the license never moved.
	gotOffer, err := env.market.GetOffer(offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusActive, gotOffer.Status)

	got, err := env.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.HolderID)

	env.processor.failVerify = nil
	record, err := env.market.AcceptOffer(owner.ID, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypePrimarySale, record.Type)
}

func TestRecurringPaymentDistributionFailureKeepsClock(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	asset := env.createAsset(t, owner)
	license := mintRecurring(t, env, asset.ID, holder, 100000)

	minted := env.clock.Now()
	env.clock.Advance(20 * 24 * time.Hour)

	env.processor.charge("pi_install", 100000)
	env.processor.failVerify = errProcessorDown

	_, err := env.market.MakeRecurringPayment(license.ID, "pi_install")
	require.ErrorIs(t, err, errProcessorDown)

	// The payment clock did not advance for a payment that never
	// settled, and nothing was credited.
	var rp models.RecurringPayment
	require.NoError(t, env.db.Where("license_id = ?", license.ID).First(&rp).Error)
	assert.True(t, rp.LastPaymentAt.Equal(minted))
	assert.Equal(t, int64(0), env.balance(t, owner.ID))

	env.processor.failVerify = nil
	_, err = env.market.MakeRecurringPayment(license.ID, "pi_install")
	require.NoError(t, err)

	require.NoError(t, env.db.Where("license_id = ?", license.ID).First(&rp).Error)
	assert.True(t, rp.LastPaymentAt.Equal(env.clock.Now()))
}
