// internal/services/dispute_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/database"
	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

var (
	ErrDisputeNotFound        = errors.New("dispute not found")
	ErrDisputeReasonRequired  = errors.New("dispute reason must not be empty")
	ErrDisputedLicenseInert   = errors.New("disputed license is not active")
	ErrDisputeAlreadyResolved = errors.New("dispute already resolved")
	ErrDisputePastDeadline    = errors.New("dispute resolution deadline has passed")
	ErrDisputeNotApproved     = errors.New("dispute is not in the approved state")
)

// DisputeService drives the arbitration state machine: Pending moves to
// Approved or Rejected within the resolution deadline, and an Approved
// dispute is separately executed to revoke the license. Rejection and
// execution both clear the asset's dispute flag.
type DisputeService struct {
	db       *gorm.DB
	cfg      *config.Config
	assets   *IPAssetService
	licenses *LicenseService
	authz    *AuthorizationService
	now      func() time.Time
}

type SubmitDisputeRequest struct {
	LicenseID   int64  `json:"license_id" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
	EvidenceURI string `json:"evidence_uri,omitempty"`
}

func NewDisputeService(db *gorm.DB, cfg *config.Config, assets *IPAssetService, licenses *LicenseService, authz *AuthorizationService) *DisputeService {
	return &DisputeService{
		db:       db,
		cfg:      cfg,
		assets:   assets,
		licenses: licenses,
		authz:    authz,
		now:      time.Now,
	}
}

// SubmitDispute opens a dispute against an active license, flags the
// underlying asset, and caches the IP owner at submission time.
func (s *DisputeService) SubmitDispute(submitterID uuid.UUID, req *SubmitDisputeRequest) (*models.Dispute, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if req.Reason == "" {
		return nil, ErrDisputeReasonRequired
	}

	license, err := s.licenses.GetLicense(req.LicenseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !license.IsActive(now) {
		return nil, ErrDisputedLicenseInert
	}

	var asset models.IPAsset
	if err := s.db.First(&asset, license.IPAssetID).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	dispute := &models.Dispute{
		LicenseID:   req.LicenseID,
		SubmitterID: submitterID,
		IPOwnerID:   asset.OwnerID,
		Reason:      req.Reason,
		EvidenceURI: req.EvidenceURI,
		Status:      models.DisputeStatusPending,
		SubmittedAt: now,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(dispute).Error; err != nil {
			return fmt.Errorf("failed to create dispute: %w", err)
		}
		return setDisputeStatusTx(tx, license.IPAssetID, true)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"dispute_id": dispute.ID,
		"license_id": dispute.LicenseID,
		"submitter":  submitterID,
	}).Info("Dispute submitted")

	return dispute, nil
}

func (s *DisputeService) GetDispute(id int64) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := s.db.Preload("License").Preload("Submitter").First(&dispute, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &dispute, nil
}

func (s *DisputeService) ListDisputes(params utils.PaginationParams, status models.DisputeStatus) ([]models.Dispute, int64, error) {
	query := s.db.Model(&models.Dispute{}).Preload("License")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}

	allowedSortFields := []string{"created_at", "submitted_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var disputes []models.Dispute
	if err := query.Find(&disputes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch disputes: %w", err)
	}

	return disputes, total, nil
}

// IsResolvable reports whether the dispute is still pending and inside
// its resolution window.
func (s *DisputeService) IsResolvable(disputeID int64) (bool, error) {
	var dispute models.Dispute
	if err := s.db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrDisputeNotFound
		}
		return false, fmt.Errorf("database error: %w", err)
	}

	if dispute.Status != models.DisputeStatusPending {
		return false, nil
	}

	deadline := dispute.SubmittedAt.AddDate(0, 0, s.cfg.Marketplace.DisputeDeadlineDays)
	return !s.now().After(deadline), nil
}

// ResolveDispute moves a pending dispute to Approved or Rejected.
// Arbitrator only; fails after the resolution deadline. A rejection
// clears the asset's dispute flag immediately since no execution
// follows.
func (s *DisputeService) ResolveDispute(callerID uuid.UUID, disputeID int64, approved bool, reason string) error {
	if err := s.authz.RequireRole(callerID, models.RoleArbitrator); err != nil {
		return err
	}

	var dispute models.Dispute
	if err := s.db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDisputeNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if dispute.Status != models.DisputeStatusPending {
		return ErrDisputeAlreadyResolved
	}

	now := s.now()
	deadline := dispute.SubmittedAt.AddDate(0, 0, s.cfg.Marketplace.DisputeDeadlineDays)
	if now.After(deadline) {
		return ErrDisputePastDeadline
	}

	status := models.DisputeStatusRejected
	if approved {
		status = models.DisputeStatusApproved
	}

	var license models.License
	if err := s.db.First(&license, dispute.LicenseID).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":            status,
			"resolved_at":       now,
			"resolver_id":       callerID,
			"resolution_reason": reason,
		}
		if err := tx.Model(&dispute).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to resolve dispute: %w", err)
		}

		if !approved {
			return setDisputeStatusTx(tx, license.IPAssetID, false)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"dispute_id": disputeID,
		"approved":   approved,
		"resolver":   callerID,
	}).Info("Dispute resolved")

	return nil
}

// ExecuteRevocation carries out an approved dispute: revokes the
// license, marks the dispute Executed, and clears the asset's dispute
// flag. Arbitrator only.
func (s *DisputeService) ExecuteRevocation(callerID uuid.UUID, disputeID int64) error {
	if err := s.authz.RequireRole(callerID, models.RoleArbitrator); err != nil {
		return err
	}

	var dispute models.Dispute
	if err := s.db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDisputeNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if dispute.Status != models.DisputeStatusApproved {
		return ErrDisputeNotApproved
	}

	var license models.License
	if err := s.db.First(&license, dispute.LicenseID).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	reason := fmt.Sprintf("dispute %d upheld: %s", dispute.ID, dispute.Reason)
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.licenses.revokeTx(tx, dispute.LicenseID, reason); err != nil {
			// An already-terminated license does not block execution; the
			// dispute still needs its terminal state.
			if !errors.Is(err, ErrLicenseAlreadyRevoked) {
				return err
			}
		}

		if err := tx.Model(&dispute).Update("status", models.DisputeStatusExecuted).Error; err != nil {
			return fmt.Errorf("failed to mark dispute executed: %w", err)
		}

		return setDisputeStatusTx(tx, license.IPAssetID, false)
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"dispute_id": disputeID,
		"license_id": dispute.LicenseID,
	}).Info("Dispute revocation executed")

	return nil
}
