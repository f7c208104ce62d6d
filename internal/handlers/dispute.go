// internal/handlers/dispute.go
package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/services"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	storageService *services.StorageService
}

func NewDisputeHandler(disputeService *services.DisputeService, storageService *services.StorageService) *DisputeHandler {
	return &DisputeHandler{
		disputeService: disputeService,
		storageService: storageService,
	}
}

// POST /disputes
func (h *DisputeHandler) SubmitDispute(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.SubmitDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	dispute, err := h.disputeService.SubmitDispute(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrDisputedLicenseInert):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.CreatedResponse(c, gin.H{
		"dispute": dispute,
	})
}

// GET /disputes
func (h *DisputeHandler) GetDisputes(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.DisputeStatus(c.Query("status"))

	disputes, total, err := h.disputeService.ListDisputes(params, status)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(disputes, total, params))
}

// GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	dispute, err := h.disputeService.GetDispute(id)
	if err != nil {
		if errors.Is(err, services.ErrDisputeNotFound) {
			utils.NotFoundResponse(c, "dispute")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"dispute": dispute,
	})
}

// GET /disputes/:id/resolvable
func (h *DisputeHandler) GetResolvable(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	resolvable, err := h.disputeService.IsResolvable(id)
	if err != nil {
		if errors.Is(err, services.ErrDisputeNotFound) {
			utils.NotFoundResponse(c, "dispute")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"resolvable": resolvable,
	})
}

// PUT /disputes/:id/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	var req struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.disputeService.ResolveDispute(userID, id, req.Approved, req.Reason); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrDisputeNotFound):
			utils.NotFoundResponse(c, "dispute")
		case errors.Is(err, services.ErrDisputeAlreadyResolved), errors.Is(err, services.ErrDisputePastDeadline):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Dispute resolved",
	})
}

// POST /disputes/:id/execute
func (h *DisputeHandler) ExecuteRevocation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	if err := h.disputeService.ExecuteRevocation(userID, id); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrDisputeNotFound):
			utils.NotFoundResponse(c, "dispute")
		case errors.Is(err, services.ErrDisputeNotApproved):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Revocation executed",
	})
}

// POST /disputes/evidence
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", err.Error())
		return
	}
	defer file.Close()

	// Hash before upload so the dispute record can pin the evidence.
	data, err := io.ReadAll(file)
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read file", err.Error())
		return
	}
	digest := utils.HashBytes(data)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	options := h.storageService.GetDefaultUploadOptions("evidence")
	result, err := h.storageService.UploadFile(file, header, options)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"evidence": result,
		"sha256":   digest,
	})
}

// GET /disputes/evidence/:key
func (h *DisputeHandler) GetEvidenceURL(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	key := c.Param("key")
	if key == "" {
		utils.BadRequestResponse(c, "key is required", nil)
		return
	}

	url, err := h.storageService.GeneratePresignedURL("evidence/"+key, 15*time.Minute)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"url": url,
	})
}
