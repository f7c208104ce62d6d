// internal/handlers/marketplace.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/services"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

type MarketplaceHandler struct {
	marketService *services.MarketplaceService
}

func NewMarketplaceHandler(marketService *services.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{
		marketService: marketService,
	}
}

// POST /market/listings
func (h *MarketplaceHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	listing, err := h.marketService.CreateListing(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrNotLicenseHolder):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrLicenseNotTradable):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.CreatedResponse(c, gin.H{
		"listing": listing,
	})
}

// GET /market/listings
func (h *MarketplaceHandler) GetListings(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.ListingStatus(c.Query("status"))

	listings, total, err := h.marketService.ListListings(params, status)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(listings, total, params))
}

// GET /market/listings/:id
func (h *MarketplaceHandler) GetListing(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	listing, err := h.marketService.GetListing(id)
	if err != nil {
		if errors.Is(err, services.ErrListingNotFound) {
			utils.NotFoundResponse(c, "listing")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"listing": listing,
	})
}

// PUT /market/listings/:id/cancel
func (h *MarketplaceHandler) CancelListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	if err := h.marketService.CancelListing(userID, id); err != nil {
		switch {
		case errors.Is(err, services.ErrListingNotFound):
			utils.NotFoundResponse(c, "listing")
		case errors.Is(err, services.ErrNotListingSeller):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrListingNotActive):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Listing cancelled",
	})
}

// POST /market/listings/:id/buy
func (h *MarketplaceHandler) BuyListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	var req struct {
		PaymentRef string `json:"payment_ref" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	record, err := h.marketService.BuyListing(userID, id, req.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrListingNotFound):
			utils.NotFoundResponse(c, "listing")
		case errors.Is(err, services.ErrListingNotActive), errors.Is(err, services.ErrLicenseNotTradable):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, services.ErrInsufficientPayment), errors.Is(err, services.ErrPaymentNotCaptured):
			utils.ErrorResponse(c, 402, "PAYMENT_REQUIRED", err.Error(), nil)
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": record,
	})
}

// POST /market/offers
func (h *MarketplaceHandler) CreateOffer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	offer, err := h.marketService.CreateOffer(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrIncorrectPayment), errors.Is(err, services.ErrPaymentNotCaptured):
			utils.ErrorResponse(c, 402, "PAYMENT_REQUIRED", err.Error(), nil)
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.CreatedResponse(c, gin.H{
		"offer": offer,
	})
}

// PUT /market/offers/:id/cancel
func (h *MarketplaceHandler) CancelOffer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid offer ID", nil)
		return
	}

	if err := h.marketService.CancelOffer(userID, id); err != nil {
		switch {
		case errors.Is(err, services.ErrOfferNotFound):
			utils.NotFoundResponse(c, "offer")
		case errors.Is(err, services.ErrNotOfferBuyer):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrOfferNotActive):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Offer cancelled, escrow refunded",
	})
}

// PUT /market/offers/:id/accept
func (h *MarketplaceHandler) AcceptOffer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid offer ID", nil)
		return
	}

	record, err := h.marketService.AcceptOffer(userID, id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOfferNotFound):
			utils.NotFoundResponse(c, "offer")
		case errors.Is(err, services.ErrNotLicenseHolder):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrOfferNotActive),
			errors.Is(err, services.ErrOfferExpired),
			errors.Is(err, services.ErrLicenseNotTradable):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": record,
	})
}

// GET /market/licenses/:id/missed-payments
func (h *MarketplaceHandler) GetMissedPayments(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	missed, err := h.marketService.GetMissedPayments(id)
	if err != nil {
		if errors.Is(err, services.ErrLicenseNotRecurring) {
			// One-time licenses never miss payments.
			utils.SuccessResponse(c, gin.H{"license_id": id, "missed_payments": 0})
			return
		}
		if errors.Is(err, services.ErrLicenseNotFound) {
			utils.NotFoundResponse(c, "license")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license_id":      id,
		"missed_payments": missed,
	})
}

// GET /market/licenses/:id/payment-due
func (h *MarketplaceHandler) GetPaymentDue(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	due, err := h.marketService.GetTotalPaymentDue(id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrLicenseNotRecurring):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license_id":  id,
		"payment_due": due,
	})
}

// POST /market/licenses/:id/pay
func (h *MarketplaceHandler) MakeRecurringPayment(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	var req struct {
		PaymentRef string `json:"payment_ref" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	record, err := h.marketService.MakeRecurringPayment(id, req.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrRevokedMissedPayment):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, services.ErrLicenseNotRecurring), errors.Is(err, services.ErrLicenseNotTradable):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, services.ErrInsufficientPayment), errors.Is(err, services.ErrPaymentNotCaptured):
			utils.ErrorResponse(c, 402, "PAYMENT_REQUIRED", err.Error(), nil)
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": record,
	})
}

// PUT /market/penalty-rate
func (h *MarketplaceHandler) SetPenaltyRate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		PenaltyRateBps int `json:"penalty_rate_bps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.marketService.SetPenaltyRate(userID, req.PenaltyRateBps); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrPenaltyRateAboveCap):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Penalty rate updated",
	})
}
