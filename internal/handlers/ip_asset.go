// internal/handlers/ip_asset.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nomadbitcoin/softlaw-market/internal/services"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

type IPAssetHandler struct {
	assetService   *services.IPAssetService
	licenseService *services.LicenseService
	storageService *services.StorageService
}

func NewIPAssetHandler(assetService *services.IPAssetService, licenseService *services.LicenseService, storageService *services.StorageService) *IPAssetHandler {
	return &IPAssetHandler{
		assetService:   assetService,
		licenseService: licenseService,
		storageService: storageService,
	}
}

// POST /ip-assets
func (h *IPAssetHandler) CreateIPAsset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateIPAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	asset, err := h.assetService.CreateIPAsset(userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"ip_asset": asset,
	})
}

// GET /ip-assets
func (h *IPAssetHandler) GetIPAssets(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	assets, total, err := h.assetService.ListIPAssets(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(assets, total, params))
}

// GET /ip-assets/:id
func (h *IPAssetHandler) GetIPAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	asset, err := h.assetService.GetIPAsset(id)
	if err != nil {
		if errors.Is(err, services.ErrIPAssetNotFound) {
			utils.NotFoundResponse(c, "IP asset")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"ip_asset": asset,
	})
}

// GET /ip-assets/:id/licenses
func (h *IPAssetHandler) GetIPAssetLicenses(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	params := utils.GetPaginationParams(c)
	licenses, total, err := h.licenseService.ListLicensesByIPAsset(id, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(licenses, total, params))
}

// GET /ip-assets/:id/dispute-status
func (h *IPAssetHandler) GetDisputeStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	hasDispute, err := h.assetService.HasActiveDispute(id)
	if err != nil {
		if errors.Is(err, services.ErrIPAssetNotFound) {
			utils.NotFoundResponse(c, "IP asset")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"ip_asset_id":        id,
		"has_active_dispute": hasDispute,
	})
}

// PUT /ip-assets/:id/license-count
func (h *IPAssetHandler) UpdateLicenseCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	var req struct {
		Delta int `json:"delta" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.assetService.UpdateActiveLicenseCount(userID, id, req.Delta); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrIPAssetNotFound):
			utils.NotFoundResponse(c, "IP asset")
		case errors.Is(err, services.ErrLicenseCountUnderflow):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "License count updated",
	})
}

// DELETE /ip-assets/:id
func (h *IPAssetHandler) BurnIPAsset(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	if err := h.assetService.Burn(userID, id); err != nil {
		switch {
		case errors.Is(err, services.ErrIPAssetNotFound):
			utils.NotFoundResponse(c, "IP asset")
		case errors.Is(err, services.ErrNotAssetOwner):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrAssetHasActiveLicenses), errors.Is(err, services.ErrAssetHasActiveDispute):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "IP asset burned",
	})
}

// POST /ip-assets/upload
func (h *IPAssetHandler) UploadFiles(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, "Invalid multipart form", err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		utils.BadRequestResponse(c, "No files provided", nil)
		return
	}

	options := h.storageService.GetDefaultUploadOptions("ip_assets")

	results := make([]*services.UploadResult, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			utils.BadRequestResponse(c, "Failed to read file", err.Error())
			return
		}

		result, err := h.storageService.UploadFile(file, header, options)
		file.Close()
		if err != nil {
			utils.BadRequestResponse(c, err.Error(), nil)
			return
		}
		results = append(results, result)
	}

	utils.SuccessResponse(c, gin.H{
		"files": results,
	})
}
