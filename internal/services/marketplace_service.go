// internal/services/marketplace_service.go
package services

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/database"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

// SecondsPerMonth is the 30-day month used to pro-rate late penalties.
const SecondsPerMonth = 30 * 24 * 3600

var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingNotActive     = errors.New("listing is not active")
	ErrNotListingSeller     = errors.New("caller is not the listing seller")
	ErrOfferNotFound        = errors.New("offer not found")
	ErrOfferNotActive       = errors.New("offer is not active")
	ErrOfferExpired         = errors.New("offer has expired")
	ErrNotOfferBuyer        = errors.New("caller is not the offer buyer")
	ErrNotLicenseHolder     = errors.New("caller is not the current license holder")
	ErrLicenseNotTradable   = errors.New("license is not active")
	ErrLicenseNotRecurring  = errors.New("license has no recurring payment schedule")
	ErrPenaltyRateAboveCap  = errors.New("penalty rate exceeds the marketplace cap")
	ErrRevokedMissedPayment = errors.New("license revoked for missed payments; attached funds refunded")
)

// MarketplaceService owns trading and the recurring-payment schedule:
// listings, escrowed offers, the sticky primary/secondary sale
// classification, and the grace-period and penalty math that drives
// auto-revocation.
type MarketplaceService struct {
	db        *gorm.DB
	cfg       *config.Config
	authz     *AuthorizationService
	processor PaymentProcessor
	revenue   *RevenueService
	licenses  *LicenseService
	settings  *RuntimeSettings
	now       func() time.Time
}

type CreateListingRequest struct {
	LicenseID     int64                `json:"license_id" validate:"required"`
	Quantity      int64                `json:"quantity" validate:"required,min=1"`
	Price         int64                `json:"price" validate:"required,min=1"`
	TokenStandard models.TokenStandard `json:"token_standard" validate:"required,oneof=721 1155"`
}

type CreateOfferRequest struct {
	LicenseID  int64      `json:"license_id" validate:"required"`
	Amount     int64      `json:"amount" validate:"required,min=1"`
	PaymentRef string     `json:"payment_ref" validate:"required"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// PaymentDue is the read-only breakdown of what a recurring payment
// costs right now.
type PaymentDue struct {
	BaseAmount int64 `json:"base_amount"`
	Penalty    int64 `json:"penalty"`
	Total      int64 `json:"total"`
}

func NewMarketplaceService(db *gorm.DB, cfg *config.Config, authz *AuthorizationService, processor PaymentProcessor, revenue *RevenueService, licenses *LicenseService, settings *RuntimeSettings) *MarketplaceService {
	return &MarketplaceService{
		db:        db,
		cfg:       cfg,
		authz:     authz,
		processor: processor,
		revenue:   revenue,
		licenses:  licenses,
		settings:  settings,
		now:       time.Now,
	}
}

// CreateListing lists a license for sale. The seller must be the
// current holder and the license must be active.
func (s *MarketplaceService) CreateListing(sellerID uuid.UUID, req *CreateListingRequest) (*models.Listing, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	license, err := s.licenses.GetLicense(req.LicenseID)
	if err != nil {
		return nil, err
	}

	if license.HolderID != sellerID {
		return nil, ErrNotLicenseHolder
	}

	if !license.IsActive(s.now()) {
		return nil, ErrLicenseNotTradable
	}

	listing := &models.Listing{
		SellerID:      sellerID,
		LicenseID:     req.LicenseID,
		Quantity:      req.Quantity,
		Price:         req.Price,
		TokenStandard: req.TokenStandard,
		Status:        models.ListingStatusActive,
	}

	if err := s.db.Create(listing).Error; err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"listing_id": listing.ID,
		"license_id": listing.LicenseID,
		"price":      listing.Price,
	}).Info("Listing created")

	return listing, nil
}

func (s *MarketplaceService) GetListing(id int64) (*models.Listing, error) {
	var listing models.Listing
	if err := s.db.Preload("License").Preload("Seller").First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &listing, nil
}

func (s *MarketplaceService) ListListings(params utils.PaginationParams, status models.ListingStatus) ([]models.Listing, int64, error) {
	query := s.db.Model(&models.Listing{}).Preload("License")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	allowedSortFields := []string{"created_at", "price"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var listings []models.Listing
	if err := query.Find(&listings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	return listings, total, nil
}

// CancelListing is terminal. Seller only, active listings only.
func (s *MarketplaceService) CancelListing(callerID uuid.UUID, listingID int64) error {
	var listing models.Listing
	if err := s.db.First(&listing, listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrListingNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if listing.SellerID != callerID {
		return ErrNotListingSeller
	}

	if listing.Status != models.ListingStatusActive {
		return ErrListingNotActive
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":       models.ListingStatusCancelled,
		"cancelled_at": now,
	}
	if err := s.db.Model(&listing).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to cancel listing: %w", err)
	}

	return nil
}

// BuyListing accepts an attached payment of at least the listing price,
// marks the listing sold before any external transfer, moves the
// license to the buyer, and forwards the full captured amount to the
// revenue ledger under the sticky primary/secondary classification.
func (s *MarketplaceService) BuyListing(buyerID uuid.UUID, listingID int64, paymentRef string) (*models.Transaction, error) {
	var listing models.Listing
	if err := s.db.Preload("License").First(&listing, listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if listing.Status != models.ListingStatusActive {
		return nil, ErrListingNotActive
	}

	license := listing.License
	if license.HolderID != listing.SellerID {
		// Seller lost the license since listing; the listing is stale.
		return nil, ErrNotLicenseHolder
	}
	if !license.IsActive(s.now()) {
		return nil, ErrLicenseNotTradable
	}

	captured, err := s.processor.VerifyPaymentAtLeast(paymentRef, listing.Price)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var record *models.Transaction
	var isPrimary bool
	// Classification stamp, status change, holder transfer, and the
	// distribution credits commit as one unit: a failure in any step
	// leaves no trace of the sale.
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		isPrimary, err = s.classifySaleTx(tx, license.ID)
		if err != nil {
			return err
		}

		// The inactive mark goes first so the distribution boundary never
		// sees a live listing.
		updates := map[string]interface{}{
			"status":  models.ListingStatusSold,
			"sold_at": now,
		}
		if err := tx.Model(&models.Listing{}).
			Where("id = ? AND status = ?", listingID, models.ListingStatusActive).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark listing sold: %w", err)
		}

		if err := s.transferLicenseTx(tx, license.ID, buyerID); err != nil {
			return err
		}

		record, err = s.revenue.DistributePaymentTx(tx, license.IPAssetID, captured, listing.SellerID, isPrimary, paymentRef)
		if err != nil {
			return err
		}

		if err := tx.Model(record).Updates(map[string]interface{}{
			"license_id": listing.LicenseID,
			"payer_id":   buyerID,
		}).Error; err != nil {
			return fmt.Errorf("failed to annotate sale transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	record.LicenseID = &listing.LicenseID
	record.PayerID = &buyerID

	logrus.WithFields(logrus.Fields{
		"listing_id": listingID,
		"license_id": license.ID,
		"buyer_id":   buyerID,
		"amount":     captured,
		"primary":    isPrimary,
	}).Info("Listing sold")

	return record, nil
}

// CreateOffer escrows the attached funds against a license. The escrow
// is only ever released by an explicit cancel or accept.
func (s *MarketplaceService) CreateOffer(buyerID uuid.UUID, req *CreateOfferRequest) (*models.Offer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := s.licenses.GetLicense(req.LicenseID); err != nil {
		return nil, err
	}

	// Escrow: the attached charge must match the offer amount exactly.
	if err := s.processor.VerifyPayment(req.PaymentRef, req.Amount); err != nil {
		return nil, err
	}

	offer := &models.Offer{
		BuyerID:   buyerID,
		LicenseID: req.LicenseID,
		Amount:    req.Amount,
		EscrowRef: req.PaymentRef,
		ExpiresAt: req.ExpiresAt,
		Status:    models.OfferStatusActive,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(offer).Error; err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}

		now := s.now()
		record := &models.Transaction{
			Type:             models.TransactionTypeOfferEscrow,
			LicenseID:        &req.LicenseID,
			PayerID:          &buyerID,
			Amount:           req.Amount,
			PaymentReference: req.PaymentRef,
			Status:           models.TransactionStatusCompleted,
			ProcessedAt:      &now,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to record escrow: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"offer_id":   offer.ID,
		"license_id": offer.LicenseID,
		"amount":     offer.Amount,
	}).Info("Offer created")

	return offer, nil
}

func (s *MarketplaceService) GetOffer(id int64) (*models.Offer, error) {
	var offer models.Offer
	if err := s.db.Preload("License").Preload("Buyer").First(&offer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &offer, nil
}

// CancelOffer refunds the full escrow to the buyer. Buyer only. Expiry
// never blocks a cancel: a lapsed offer still needs one to get its
// funds back.
func (s *MarketplaceService) CancelOffer(callerID uuid.UUID, offerID int64) error {
	var offer models.Offer
	if err := s.db.First(&offer, offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOfferNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if offer.BuyerID != callerID {
		return ErrNotOfferBuyer
	}

	if offer.Status != models.OfferStatusActive {
		return ErrOfferNotActive
	}

	now := s.now()
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":       models.OfferStatusCancelled,
			"cancelled_at": now,
		}
		if err := tx.Model(&offer).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to cancel offer: %w", err)
		}

		record := &models.Transaction{
			Type:             models.TransactionTypeOfferRefund,
			LicenseID:        &offer.LicenseID,
			PayerID:          &offer.BuyerID,
			Amount:           offer.Amount,
			PaymentReference: offer.EscrowRef,
			Status:           models.TransactionStatusCompleted,
			ProcessedAt:      &now,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to record refund: %w", err)
		}

		// The irreversible transfer goes last, after every database
		// write; a refund failure rolls the cancellation back.
		return s.processor.Refund(offer.EscrowRef, offer.Amount)
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"offer_id": offerID,
		"amount":   offer.Amount,
	}).Info("Offer cancelled, escrow refunded")

	return nil
}

// AcceptOffer sells the license to the offer's buyer for the escrowed
// amount. Caller must be the current holder; expired offers are
// refused.
func (s *MarketplaceService) AcceptOffer(callerID uuid.UUID, offerID int64) (*models.Transaction, error) {
	var offer models.Offer
	if err := s.db.Preload("License").First(&offer, offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if offer.Status != models.OfferStatusActive {
		return nil, ErrOfferNotActive
	}

	now := s.now()
	if offer.ExpiresAt != nil && now.After(*offer.ExpiresAt) {
		return nil, ErrOfferExpired
	}

	license := offer.License
	if license.HolderID != callerID {
		return nil, ErrNotLicenseHolder
	}
	if !license.IsActive(now) {
		return nil, ErrLicenseNotTradable
	}

	var record *models.Transaction
	// Same atomic unit as BuyListing: acceptance, transfer,
	// classification, and credits commit together.
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		isPrimary, err := s.classifySaleTx(tx, license.ID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":      models.OfferStatusAccepted,
			"accepted_at": now,
		}
		if err := tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offerID, models.OfferStatusActive).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark offer accepted: %w", err)
		}

		if err := s.transferLicenseTx(tx, license.ID, offer.BuyerID); err != nil {
			return err
		}

		record, err = s.revenue.DistributePaymentTx(tx, license.IPAssetID, offer.Amount, callerID, isPrimary, offer.EscrowRef)
		if err != nil {
			return err
		}

		if err := tx.Model(record).Updates(map[string]interface{}{
			"license_id": offer.LicenseID,
			"payer_id":   offer.BuyerID,
		}).Error; err != nil {
			return fmt.Errorf("failed to annotate sale transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	record.LicenseID = &offer.LicenseID
	record.PayerID = &offer.BuyerID

	logrus.WithFields(logrus.Fields{
		"offer_id":   offerID,
		"license_id": license.ID,
		"amount":     offer.Amount,
	}).Info("Offer accepted")

	return record, nil
}

// classifySaleTx reports whether the next sale of this license is a
// primary sale and stamps the sticky sold-before record. The record is
// insert-only: once a license is marked sold it never reverts. The
// stamp rides the sale's transaction so a failed sale leaves none.
func (s *MarketplaceService) classifySaleTx(tx *gorm.DB, licenseID int64) (bool, error) {
	var record models.SaleRecord
	err := tx.Where("license_id = ?", licenseID).First(&record).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("database error: %w", err)
	}

	record = models.SaleRecord{LicenseID: licenseID, FirstSoldAt: s.now()}
	if err := tx.Create(&record).Error; err != nil {
		return false, fmt.Errorf("failed to record first sale: %w", err)
	}
	return true, nil
}

// transferLicenseTx moves holdership to the buyer, keeping the
// recurring-payment schedule pointed at whoever now owes it.
func (s *MarketplaceService) transferLicenseTx(tx *gorm.DB, licenseID int64, buyerID uuid.UUID) error {
	if err := tx.Model(&models.License{}).
		Where("id = ?", licenseID).
		Update("holder_id", buyerID).Error; err != nil {
		return fmt.Errorf("failed to transfer license: %w", err)
	}

	if err := tx.Model(&models.RecurringPayment{}).
		Where("license_id = ?", licenseID).
		Update("holder_id", buyerID).Error; err != nil {
		return fmt.Errorf("failed to reassign recurring payment: %w", err)
	}

	return nil
}

// GetMissedPayments derives the missed-payment count from elapsed time.
// One-time licenses never miss; counting starts only once the grace
// period after the first unpaid due date has lapsed.
func (s *MarketplaceService) GetMissedPayments(licenseID int64) (int, error) {
	license, rp, err := s.loadRecurring(licenseID)
	if err != nil {
		return 0, err
	}
	return s.missedPayments(license, rp, s.now()), nil
}

func (s *MarketplaceService) missedPayments(license *models.License, rp *models.RecurringPayment, now time.Time) int {
	if !license.IsRecurring() {
		return 0
	}

	grace := int64(s.cfg.Marketplace.GracePeriodSeconds)
	elapsed := int64(now.Sub(rp.LastPaymentAt) / time.Second)
	if elapsed <= license.PaymentInterval+grace {
		return 0
	}
	return int((elapsed - grace) / license.PaymentInterval)
}

// CalculatePenalty pro-rates the late fee over a 30-day month:
// penaltyRateBps x base x secondsBeyondGrace / (SecondsPerMonth x
// 10000). Zero within the grace window and for one-time licenses.
func (s *MarketplaceService) CalculatePenalty(licenseID int64) (int64, error) {
	license, rp, err := s.loadRecurring(licenseID)
	if err != nil {
		return 0, err
	}
	return s.penalty(license, rp, s.now()), nil
}

func (s *MarketplaceService) penalty(license *models.License, rp *models.RecurringPayment, now time.Time) int64 {
	if !license.IsRecurring() {
		return 0
	}

	grace := int64(s.cfg.Marketplace.GracePeriodSeconds)
	graceEnd := rp.LastPaymentAt.Add(time.Duration(license.PaymentInterval+grace) * time.Second)
	if !now.After(graceEnd) {
		return 0
	}
	late := int64(now.Sub(graceEnd) / time.Second)

	// Full-precision product before the floor divide so large bases
	// cannot overflow the intermediate.
	num := new(big.Int).SetInt64(int64(license.PenaltyRateBps))
	num.Mul(num, big.NewInt(rp.BaseAmount))
	num.Mul(num, big.NewInt(late))
	den := big.NewInt(int64(SecondsPerMonth) * int64(models.BpsDenominator))
	return new(big.Int).Quo(num, den).Int64()
}

// GetTotalPaymentDue is the read-only breakdown of base, penalty, and
// total for the next recurring payment.
func (s *MarketplaceService) GetTotalPaymentDue(licenseID int64) (*PaymentDue, error) {
	license, rp, err := s.loadRecurring(licenseID)
	if err != nil {
		return nil, err
	}

	penalty := s.penalty(license, rp, s.now())
	return &PaymentDue{
		BaseAmount: rp.BaseAmount,
		Penalty:    penalty,
		Total:      rp.BaseAmount + penalty,
	}, nil
}

// MakeRecurringPayment settles the next installment. If the holder has
// already crossed the missed-payment threshold the license is revoked
// instead, the attached funds are refunded, and the call reports
// failure. Otherwise the attached value must cover base plus penalty;
// the full captured amount is distributed.
func (s *MarketplaceService) MakeRecurringPayment(licenseID int64, paymentRef string) (*models.Transaction, error) {
	license, rp, err := s.loadRecurring(licenseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !license.IsActive(now) {
		return nil, ErrLicenseNotTradable
	}

	missed := s.missedPayments(license, rp, now)
	if missed >= license.MaxMissedPayments {
		if err := s.licenses.RevokeForMissedPayments(licenseID, missed); err != nil {
			return nil, err
		}
		if captured, err := s.processor.VerifyPaymentAtLeast(paymentRef, 1); err == nil {
			if err := s.processor.Refund(paymentRef, captured); err != nil {
				logrus.WithError(err).WithField("payment_ref", paymentRef).
					Error("Failed to refund payment on auto-revocation")
			}
		}
		return nil, ErrRevokedMissedPayment
	}

	penalty := s.penalty(license, rp, now)
	due := rp.BaseAmount + penalty

	captured, err := s.processor.VerifyPaymentAtLeast(paymentRef, due)
	if err != nil {
		return nil, err
	}

	var record *models.Transaction
	// The payment clock only advances when the distribution settles:
	// both commit in one transaction so a failed distribution cannot
	// reset the missed-payment window for free.
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Model(&models.RecurringPayment{}).
			Where("license_id = ?", licenseID).
			Update("last_payment_at", now).Error; err != nil {
			return fmt.Errorf("failed to update payment time: %w", err)
		}

		// The classification probe is read-only here: recurring payments
		// follow the sticky flag but only sales set it.
		sold, err := s.soldBefore(tx, licenseID)
		if err != nil {
			return err
		}

		var asset models.IPAsset
		if err := tx.First(&asset, license.IPAssetID).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		record, err = s.revenue.DistributePaymentTx(tx, license.IPAssetID, captured, asset.OwnerID, !sold, paymentRef)
		if err != nil {
			return err
		}

		if err := tx.Model(record).Updates(map[string]interface{}{
			"type":       models.TransactionTypeRecurringPayment,
			"license_id": licenseID,
			"payer_id":   rp.HolderID,
		}).Error; err != nil {
			return fmt.Errorf("failed to annotate recurring payment transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	record.Type = models.TransactionTypeRecurringPayment
	record.LicenseID = &licenseID
	record.PayerID = &rp.HolderID

	logrus.WithFields(logrus.Fields{
		"license_id": licenseID,
		"amount":     captured,
		"penalty":    penalty,
	}).Info("Recurring payment settled")

	return record, nil
}

func (s *MarketplaceService) soldBefore(tx *gorm.DB, licenseID int64) (bool, error) {
	var count int64
	if err := tx.Model(&models.SaleRecord{}).
		Where("license_id = ?", licenseID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

// SetPenaltyRate updates the marketplace default penalty rate applied
// to newly minted licenses. Admin only; capped well below the
// per-license maximum.
func (s *MarketplaceService) SetPenaltyRate(callerID uuid.UUID, bps int) error {
	if err := s.authz.RequireRole(callerID, models.RoleAdmin); err != nil {
		return err
	}

	if bps < 0 || bps > s.cfg.Marketplace.MaxPenaltyRateBps {
		return ErrPenaltyRateAboveCap
	}

	s.settings.setPenaltyRateBps(bps)
	return storeSettingInt(s.db, "penalty_rate_bps", bps,
		"Default late-payment penalty rate in basis points", callerID)
}

// LoadStoredPenaltyRate applies the persisted default penalty rate on
// startup, if an admin has set one.
func (s *MarketplaceService) LoadStoredPenaltyRate() {
	if bps, ok := loadSettingInt(s.db, "penalty_rate_bps"); ok {
		if bps >= 0 && bps <= s.cfg.Marketplace.MaxPenaltyRateBps {
			s.settings.setPenaltyRateBps(bps)
		}
	}
}

func (s *MarketplaceService) loadRecurring(licenseID int64) (*models.License, *models.RecurringPayment, error) {
	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, nil, err
	}

	if !license.IsRecurring() {
		return nil, nil, ErrLicenseNotRecurring
	}

	var rp models.RecurringPayment
	if err := s.db.Where("license_id = ?", licenseID).First(&rp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrLicenseNotRecurring
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	return license, &rp, nil
}
