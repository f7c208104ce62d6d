// internal/handlers/revenue.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nomadbitcoin/softlaw-market/internal/services"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

type RevenueHandler struct {
	revenueService *services.RevenueService
}

func NewRevenueHandler(revenueService *services.RevenueService) *RevenueHandler {
	return &RevenueHandler{
		revenueService: revenueService,
	}
}

// PUT /revenue/splits
func (h *RevenueHandler) ConfigureSplit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.ConfigureSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.revenueService.ConfigureSplit(userID, &req); err != nil {
		switch {
		case errors.Is(err, services.ErrIPAssetNotFound):
			utils.NotFoundResponse(c, "IP asset")
		case errors.Is(err, services.ErrNotSplitConfigurer):
			utils.ForbiddenResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Revenue split configured",
	})
}

// GET /revenue/splits/:id
func (h *RevenueHandler) GetSplit(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	shares, err := h.revenueService.GetSplit(id)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"ip_asset_id": id,
		"shares":      shares,
	})
}

// GET /revenue/balance
func (h *RevenueHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	balance, err := h.revenueService.GetBalance(userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"balance": balance,
	})
}

// POST /revenue/withdraw
func (h *RevenueHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	amount, err := h.revenueService.Withdraw(userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNothingToWithdraw):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, services.ErrMissingPayoutAccount):
			utils.BadRequestResponse(c, err.Error(), nil)
		case errors.Is(err, services.ErrPaymentTransferFailed):
			utils.ErrorResponse(c, 502, "PAYOUT_FAILED", err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"withdrawn": amount,
	})
}

// GET /revenue/royalty/:id
func (h *RevenueHandler) GetAssetRoyalty(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	bps, err := h.revenueService.GetAssetRoyalty(id)
	if err != nil {
		if errors.Is(err, services.ErrIPAssetNotFound) {
			utils.NotFoundResponse(c, "IP asset")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"ip_asset_id": id,
		"royalty_bps": bps,
	})
}

// PUT /revenue/royalty/:id
func (h *RevenueHandler) SetAssetRoyalty(c *gin.Context) {
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
		RoyaltyBps int `json:"royalty_bps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.revenueService.SetAssetRoyalty(userID, id, req.RoyaltyBps); err != nil {
		switch {
		case errors.Is(err, services.ErrIPAssetNotFound):
			utils.NotFoundResponse(c, "IP asset")
		case errors.Is(err, services.ErrNotSplitConfigurer):
			utils.ForbiddenResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Royalty updated",
	})
}

// PUT /revenue/royalty
func (h *RevenueHandler) SetDefaultRoyalty(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		RoyaltyBps int `json:"royalty_bps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.revenueService.SetDefaultRoyalty(userID, req.RoyaltyBps); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Default royalty updated",
	})
}
