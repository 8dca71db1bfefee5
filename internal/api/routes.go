package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"eventFlow/internal/ai"
	"eventFlow/internal/analytics"
	"eventFlow/internal/api/middleware"
	"eventFlow/internal/auth"
	"eventFlow/internal/config"
	"eventFlow/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	aiClient ai.Client,
) {
	tracker := analytics.NewTracker(redisClient, logger)

	authHandler := NewAuthHandler(db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		time.Duration(cfg.Auth.LoginLockTTLMinutes)*time.Minute,
		cfg.Auth.CookieDomain,
	)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOrigins)
	eventHandler := NewEventHandler(db, asynqClient, storageClient, tracker, logger, cfg.API.MaxEvents)
	registrationHandler := NewRegistrationHandler(db)
	leadHandler := NewLeadHandler(db)
	expenseHandler := NewExpenseHandler(db)
	campaignHandler := NewCampaignHandler(db, asynqClient, logger)
	templateHandler := NewTemplateHandler(db)
	assetHandler := NewAssetHandler(db, storageClient, logger, redisClient,
		cfg.API.ClamdAddr, cfg.API.MaxUploadSizeMB, cfg.API.MaxAssets, cfg.API.MaxUploadsPerDay)
	aiHandler := NewAIHandler(aiClient, logger)
	publicHandler := NewPublicHandler(db, asynqClient, tracker, logger, cfg.API.PublicBaseURL)
	internalHandler := NewInternalHandler(db, logger)

	authMiddleware := middleware.AuthMiddleware(authService)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	// 公开落地页，无鉴权。
	public := router.Group("/p/:slug")
	{
		public.GET("", publicHandler.ShowPage)
		public.POST("/register", publicHandler.Register)
		public.POST("/click", publicHandler.TrackClick)
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		// 业务路由在密码改完之前一律拒绝。
		protected := v1.Group("")
		protected.Use(authMiddleware, passwordGate)
		{
			eventGroup := protected.Group("/events")
			{
				eventGroup.POST("", eventHandler.CreateEvent)
				eventGroup.GET("", eventHandler.ListEvents)
				eventGroup.GET("/:id", eventHandler.GetEvent)
				eventGroup.PUT("/:id", eventHandler.UpdateEvent)
				eventGroup.DELETE("/:id", eventHandler.DeleteEvent)
				eventGroup.PUT("/:id/content", eventHandler.UpdateContent)
				eventGroup.POST("/:id/publish", eventHandler.PublishEvent)
				eventGroup.PUT("/:id/status", eventHandler.UpdateStatus)
				eventGroup.POST("/:id/duplicate", eventHandler.DuplicateEvent)
				eventGroup.GET("/:id/stats", eventHandler.GetEventStats)
				eventGroup.POST("/:id/preview", eventHandler.RequestPreview)

				eventGroup.GET("/:id/registrations", registrationHandler.ListRegistrations)
				eventGroup.GET("/:id/registrations/export", registrationHandler.ExportRegistrations)

				eventGroup.POST("/:id/expenses", expenseHandler.CreateExpense)
				eventGroup.GET("/:id/expenses", expenseHandler.ListExpenses)
				eventGroup.DELETE("/:id/expenses/:expenseID", expenseHandler.DeleteExpense)

				eventGroup.POST("/:id/campaigns", campaignHandler.CreateCampaign)
				eventGroup.GET("/:id/campaigns", campaignHandler.ListCampaigns)
			}

			protected.POST("/checkin/:token", registrationHandler.CheckInByToken)

			leadGroup := protected.Group("/leads")
			{
				leadGroup.POST("", leadHandler.CreateLead)
				leadGroup.GET("", leadHandler.ListLeads)
				leadGroup.PUT("/:id", leadHandler.UpdateLead)
				leadGroup.DELETE("/:id", leadHandler.DeleteLead)
			}

			templateGroup := protected.Group("/templates")
			{
				templateGroup.POST("", templateHandler.CreateTemplate)
				templateGroup.POST("/from-event", templateHandler.CreateTemplateFromEvent)
				templateGroup.GET("", templateHandler.ListTemplates)
				templateGroup.GET("/:id", templateHandler.GetTemplate)
				templateGroup.DELETE("/:id", templateHandler.DeleteTemplate)
			}

			assetGroup := protected.Group("/assets")
			{
				assetGroup.POST("/upload", assetHandler.UploadAsset)
				assetGroup.GET("", assetHandler.ListAssets)
				assetGroup.GET("/view", assetHandler.GetAssetURL)
				assetGroup.DELETE("", assetHandler.DeleteAsset)
			}

			aiGroup := protected.Group("/ai")
			{
				aiGroup.POST("/generate-block-content", aiHandler.GenerateBlockContent)
				aiGroup.POST("/generate-image", aiHandler.GenerateImage)
				aiGroup.POST("/edit-image", aiHandler.EditImage)
			}
		}

		internalGroup := v1.Group("/internal")
		internalGroup.Use(middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
		{
			internalGroup.GET("/events/:id/preview", internalHandler.PreviewHTML)
		}
	}
}
