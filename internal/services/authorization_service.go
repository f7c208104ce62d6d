// internal/services/authorization_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

var (
	ErrRoleRequired   = errors.New("caller does not hold the required role")
	ErrRoleNotGranted = errors.New("role not granted")
)

// AuthorizationService implements the flat capability model: a small set
// of role tags mapped to authorized accounts, with a single predicate.
// Only admins may grant or revoke roles.
type AuthorizationService struct {
	db *gorm.DB
}

func NewAuthorizationService(db *gorm.DB) *AuthorizationService {
	return &AuthorizationService{db: db}
}

func (s *AuthorizationService) HasRole(userID uuid.UUID, role models.Role) bool {
	var count int64
	s.db.Model(&models.RoleGrant{}).
		Where("user_id = ? AND role = ?", userID, role).
		Count(&count)
	return count > 0
}

// RequireRole is the authorization gate used by every restricted
// operation. It returns ErrRoleRequired so handlers can map it to 403.
func (s *AuthorizationService) RequireRole(userID uuid.UUID, role models.Role) error {
	if !s.HasRole(userID, role) {
		return fmt.Errorf("%w: %s", ErrRoleRequired, role)
	}
	return nil
}

func (s *AuthorizationService) GrantRole(granterID, userID uuid.UUID, role models.Role) error {
	if err := s.RequireRole(granterID, models.RoleAdmin); err != nil {
		return err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("user not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	// Granting an already-held role is a no-op.
	if s.HasRole(userID, role) {
		return nil
	}

	grant := &models.RoleGrant{
		UserID:    userID,
		Role:      role,
		GrantedBy: granterID,
	}
	if err := s.db.Create(grant).Error; err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}

	return nil
}

func (s *AuthorizationService) RevokeRole(revokerID, userID uuid.UUID, role models.Role) error {
	if err := s.RequireRole(revokerID, models.RoleAdmin); err != nil {
		return err
	}

	result := s.db.Where("user_id = ? AND role = ?", userID, role).
		Delete(&models.RoleGrant{})
	if result.Error != nil {
		return fmt.Errorf("failed to revoke role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRoleNotGranted
	}

	return nil
}

func (s *AuthorizationService) ListRoles(userID uuid.UUID) ([]models.Role, error) {
	var grants []models.RoleGrant
	if err := s.db.Where("user_id = ?", userID).Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch role grants: %w", err)
	}

	roles := make([]models.Role, 0, len(grants))
	for _, g := range grants {
		roles = append(roles, g.Role)
	}
	return roles, nil
}
