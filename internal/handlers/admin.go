// internal/handlers/admin.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
	"github.com/nomadbitcoin/softlaw-market/internal/services"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	authzService *services.AuthorizationService
}

func NewAdminHandler(adminService *services.AdminService, authzService *services.AuthorizationService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		authzService: authzService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	filter := services.AdminUserFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if userType := c.Query("user_type"); userType != "" {
		t := models.UserType(userType)
		filter.UserType = &t
	}
	if status := c.Query("status"); status != "" {
		s := models.UserStatus(status)
		filter.Status = &s
	}

	users, total, err := h.adminService.GetUsers(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, filter.PaginationParams))
}

// PUT /admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" validate:"required"`
		Reason string            `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.adminService.UpdateUserStatus(callerID, userID, req.Status, req.Reason); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "User status updated",
	})
}

// POST /admin/roles
func (h *AdminHandler) GrantRole(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		UserID uuid.UUID   `json:"user_id" validate:"required"`
		Role   models.Role `json:"role" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.authzService.GrantRole(callerID, req.UserID, req.Role); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Role granted",
	})
}

// DELETE /admin/roles
func (h *AdminHandler) RevokeRole(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		UserID uuid.UUID   `json:"user_id" validate:"required"`
		Role   models.Role `json:"role" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.authzService.RevokeRole(callerID, req.UserID, req.Role); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Role revoked",
	})
}

// GET /admin/users/:id/roles
func (h *AdminHandler) GetUserRoles(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	roles, err := h.authzService.ListRoles(userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user_id": userID,
		"roles":   roles,
	})
}

// GET /admin/transactions
func (h *AdminHandler) GetTransactions(c *gin.Context) {
	filter := services.AdminTransactionFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if txType := c.Query("type"); txType != "" {
		t := models.TransactionType(txType)
		filter.TransactionType = &t
	}
	if status := c.Query("status"); status != "" {
		s := models.TransactionStatus(status)
		filter.Status = &s
	}

	transactions, total, err := h.adminService.GetTransactions(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(transactions, total, filter.PaginationParams))
}

// GET /admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.adminService.GetSettings(c.Query("category"))
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"settings": settings,
	})
}

// PUT /admin/settings
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		Category string       `json:"category" validate:"required"`
		Key      string       `json:"key" validate:"required"`
		Value    models.JSONB `json:"value" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.adminService.UpdateSetting(callerID, req.Category, req.Key, req.Value); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrSettingNotFound):
			utils.NotFoundResponse(c, "setting")
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Setting updated",
	})
}

// PUT /admin/pause
func (h *AdminHandler) SetPaused(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		Paused bool `json:"paused"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if err := h.adminService.SetPaused(callerID, req.Paused); err != nil {
		switch {
		case errors.Is(err, services.ErrRoleRequired), errors.Is(err, services.ErrRoleNotGranted):
			utils.ForbiddenResponse(c, err.Error())
		default:
			utils.InternalErrorResponse(c, err.Error())
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"paused": req.Paused,
	})
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	logs, total, err := h.adminService.GetAuditLogs(params, c.Query("action"))
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, params))
}
