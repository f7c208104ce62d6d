// internal/handlers/license.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nomadbitcoin/softlaw-market/internal/services"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// POST /licenses
func (h *LicenseHandler) MintLicense(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.MintLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	license, err := h.licenseService.MintLicense(&req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIPAssetNotFound):
			utils.NotFoundResponse(c, "IP asset")
		case errors.Is(err, services.ErrExclusiveAlreadyExists):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.CreatedResponse(c, gin.H{
		"license": license,
	})
}

// GET /licenses/:id
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	license, err := h.licenseService.GetLicense(id)
	if err != nil {
		if errors.Is(err, services.ErrLicenseNotFound) {
			utils.NotFoundResponse(c, "license")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license": license,
	})
}

// GET /licenses/:id/active
func (h *LicenseHandler) GetLicenseStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	active, err := h.licenseService.IsActiveLicense(id)
	if err != nil {
		if errors.Is(err, services.ErrLicenseNotFound) {
			utils.NotFoundResponse(c, "license")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license_id": id,
		"active":     active,
	})
}

// PUT /licenses/:id/expire
func (h *LicenseHandler) MarkExpired(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	if err := h.licenseService.MarkExpired(id); err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrLicensePerpetual),
			errors.Is(err, services.ErrLicenseNotYetExpired),
			errors.Is(err, services.ErrLicenseAlreadyExpired):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "License marked expired",
	})
}

// POST /licenses/batch-expire
func (h *LicenseHandler) BatchMarkExpired(c *gin.Context) {
	var req struct {
		LicenseIDs []int64 `json:"license_ids" validate:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	results := h.licenseService.BatchMarkExpired(req.LicenseIDs)

	utils.SuccessResponse(c, gin.H{
		"results": results,
	})
}

// PUT /licenses/:id/revoke
func (h *LicenseHandler) RevokeLicense(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.licenseService.RevokeLicense(userID, id, req.Reason); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrLicenseAlreadyRevoked):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "License revoked",
	})
}

// PUT /licenses/:id/revoke-missed
//
// Open to any authenticated caller; the service checks the missed count
// against the license threshold.
func (h *LicenseHandler) RevokeForMissedPayments(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	var req struct {
		MissedCount int `json:"missed_count" validate:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.licenseService.RevokeForMissedPayments(id, req.MissedCount); err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrInsufficientMissedCount),
			errors.Is(err, services.ErrLicenseAlreadyRevoked):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "License revoked for missed payments",
	})
}
