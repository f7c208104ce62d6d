// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nomadbitcoin/softlaw-market/internal/config"
	"github.com/nomadbitcoin/softlaw-market/internal/handlers"
	"github.com/nomadbitcoin/softlaw-market/internal/middleware"
	"github.com/nomadbitcoin/softlaw-market/internal/services"
	"github.com/nomadbitcoin/softlaw-market/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, _ := services.NewStorageService(cfg)
	authorizationService := services.NewAuthorizationService(db)
	paymentProcessor := services.NewStripeProcessor(cfg)

	runtimeSettings := services.NewRuntimeSettings(cfg)

	authService := services.NewAuthService(db, cfg, notificationService)
	assetService := services.NewIPAssetService(db, authorizationService)
	licenseService := services.NewLicenseService(db, assetService, authorizationService, notificationService, runtimeSettings)
	revenueService := services.NewRevenueService(db, cfg, authorizationService, paymentProcessor, runtimeSettings)
	marketService := services.NewMarketplaceService(db, cfg, authorizationService, paymentProcessor, revenueService, licenseService, runtimeSettings)
	disputeService := services.NewDisputeService(db, cfg, assetService, licenseService, authorizationService)
	adminService := services.NewAdminService(db, authorizationService, notificationService)

	marketService.LoadStoredPenaltyRate()
	revenueService.LoadStoredDefaultRoyalty()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	ipAssetHandler := handlers.NewIPAssetHandler(assetService, licenseService, storageService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	marketHandler := handlers.NewMarketplaceHandler(marketService)
	revenueHandler := handlers.NewRevenueHandler(revenueService)
	disputeHandler := handlers.NewDisputeHandler(disputeService, storageService)
	adminHandler := handlers.NewAdminHandler(adminService, authorizationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))
	r.Use(middleware.PauseGate(adminService))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/verify-email/:token", authHandler.VerifyEmail)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
			auth.PUT("/payout-account", middleware.AuthRequired(), authHandler.SetPayoutAccount)
		}

		// IP Assets routes
		ipAssets := v1.Group("/ip-assets")
		{
			ipAssets.GET("", middleware.OptionalAuth(), ipAssetHandler.GetIPAssets)
			ipAssets.GET("/:id", middleware.OptionalAuth(), ipAssetHandler.GetIPAsset)
			ipAssets.GET("/:id/licenses", ipAssetHandler.GetIPAssetLicenses)
			ipAssets.GET("/:id/dispute-status", ipAssetHandler.GetDisputeStatus)

			// Authenticated routes
			protected := ipAssets.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", ipAssetHandler.CreateIPAsset)
				protected.DELETE("/:id", ipAssetHandler.BurnIPAsset)
				protected.PUT("/:id/license-count", ipAssetHandler.UpdateLicenseCount)
				protected.POST("/upload", middleware.UploadRateLimit(), ipAssetHandler.UploadFiles)
			}
		}

		// License routes
		licenses := v1.Group("/licenses")
		{
			licenses.GET("/:id", licenseHandler.GetLicense)
			licenses.GET("/:id/active", licenseHandler.GetLicenseStatus)

			protected := licenses.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", licenseHandler.MintLicense)
				protected.PUT("/:id/expire", licenseHandler.MarkExpired)
				protected.POST("/batch-expire", licenseHandler.BatchMarkExpired)
				protected.PUT("/:id/revoke", licenseHandler.RevokeLicense)
				protected.PUT("/:id/revoke-missed", licenseHandler.RevokeForMissedPayments)
			}
		}

		// Marketplace routes
		market := v1.Group("/market")
		{
			market.GET("/listings", middleware.OptionalAuth(), marketHandler.GetListings)
			market.GET("/listings/:id", marketHandler.GetListing)
			market.GET("/licenses/:id/missed-payments", marketHandler.GetMissedPayments)
			market.GET("/licenses/:id/payment-due", marketHandler.GetPaymentDue)

			protected := market.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/listings", marketHandler.CreateListing)
				protected.PUT("/listings/:id/cancel", marketHandler.CancelListing)
				protected.POST("/listings/:id/buy", middleware.PaymentRateLimit(), marketHandler.BuyListing)
				protected.POST("/offers", middleware.PaymentRateLimit(), marketHandler.CreateOffer)
				protected.PUT("/offers/:id/cancel", marketHandler.CancelOffer)
				protected.PUT("/offers/:id/accept", marketHandler.AcceptOffer)
				protected.POST("/licenses/:id/pay", middleware.PaymentRateLimit(), marketHandler.MakeRecurringPayment)
				protected.PUT("/penalty-rate", marketHandler.SetPenaltyRate)
			}
		}

		// Revenue routes
		revenue := v1.Group("/revenue")
		{
			revenue.GET("/splits/:id", revenueHandler.GetSplit)
			revenue.GET("/royalty/:id", revenueHandler.GetAssetRoyalty)

			protected := revenue.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.PUT("/splits", revenueHandler.ConfigureSplit)
				protected.GET("/balance", revenueHandler.GetBalance)
				protected.POST("/withdraw", revenueHandler.Withdraw)
				protected.PUT("/royalty", revenueHandler.SetDefaultRoyalty)
				protected.PUT("/royalty/:id", revenueHandler.SetAssetRoyalty)
			}
		}

		// Dispute routes
		disputes := v1.Group("/disputes")
		disputes.Use(middleware.AuthRequired())
		{
			disputes.POST("", disputeHandler.SubmitDispute)
			disputes.GET("", disputeHandler.GetDisputes)
			disputes.GET("/:id", disputeHandler.GetDispute)
			disputes.GET("/:id/resolvable", disputeHandler.GetResolvable)
			disputes.PUT("/:id/resolve", disputeHandler.ResolveDispute)
			disputes.POST("/:id/execute", disputeHandler.ExecuteRevocation)
			disputes.POST("/evidence", middleware.UploadRateLimit(), disputeHandler.UploadEvidence)
			disputes.GET("/evidence/:key", disputeHandler.GetEvidenceURL)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			dashboard := admin.Group("/dashboard")
			{
				dashboard.GET("/stats", adminHandler.GetDashboardStats)
			}

			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.PUT("/:id/status", adminHandler.UpdateUserStatus)
				adminUsers.GET("/:id/roles", adminHandler.GetUserRoles)
			}

			adminRoles := admin.Group("/roles")
			{
				adminRoles.POST("", adminHandler.GrantRole)
				adminRoles.DELETE("", adminHandler.RevokeRole)
			}

			adminTransactions := admin.Group("/transactions")
			{
				adminTransactions.GET("", adminHandler.GetTransactions)
			}

			adminSettings := admin.Group("/settings")
			{
				adminSettings.GET("", adminHandler.GetSettings)
				adminSettings.PUT("", adminHandler.UpdateSetting)
			}

			admin.PUT("/pause", adminHandler.SetPaused)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
