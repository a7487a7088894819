package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/config"
	"github.com/licito/backend/handler"
	"github.com/licito/backend/middleware"
	"github.com/licito/backend/policy"
)

func newRouter(cfg *config.Config, svc *services, limiter middleware.Limiter) *gin.Engine {
	authHandler := handler.NewAuthHandler(svc.users, &cfg.Auth)
	userHandler := handler.NewUserHandler(svc.users)
	contractHandler := handler.NewContractHandler(svc.contracts)
	checklistHandler := handler.NewChecklistHandler(svc.checklist)
	noticeHandler := handler.NewNoticeHandler(svc.notices)
	notificationHandler := handler.NewNotificationHandler(svc.notify)
	chatHandler := handler.NewChatHandler(svc.chats, svc.assistant)
	reportHandler := handler.NewReportHandler(svc.reports)

	router := gin.New() // Use New() instead of Default() to avoid default middleware

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.NoCache())
	router.Use(middleware.RateLimit(limiter))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth), middleware.ActiveUser(svc.users))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		users := protected.Group("/users", middleware.Require(policy.ManageUsers))
		users.GET("", userHandler.List)
		users.GET("/stats", userHandler.Stats)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.PATCH("/:id/toggle-active", userHandler.ToggleActive)
		users.PUT("/:id/password", userHandler.ChangePassword)
		users.DELETE("/:id", userHandler.Delete)

		view := middleware.Require(policy.ViewContracts)
		manage := middleware.Require(policy.ManageContracts)
		protected.GET("/contracts", view, contractHandler.List)
		protected.GET("/contracts/stats", view, contractHandler.Stats)
		protected.GET("/contracts/:id", view, contractHandler.Get)
		protected.POST("/contracts", manage, contractHandler.Create)
		protected.PUT("/contracts/:id", manage, contractHandler.Update)
		protected.DELETE("/contracts/:id", manage, contractHandler.Delete)

		checklist := middleware.Require(policy.ViewChecklist)
		protected.GET("/contracts/:id/checklist", checklist, checklistHandler.List)
		protected.GET("/contracts/:id/checklist/:type", checklist, checklistHandler.List)
		protected.GET("/contracts/:id/checklist/:type/report", middleware.Require(policy.ExportReport), reportHandler.Export)
		protected.GET("/contracts/:id/progress", checklist, checklistHandler.Progress)
		protected.GET("/contracts/:id/clarifications", checklist, checklistHandler.Pending)

		protected.PUT("/checklist/items/:id/status", middleware.Require(policy.UpdateChecklist), checklistHandler.UpdateStatus)
		protected.POST("/checklist/items/:id/observations", middleware.Require(policy.UpdateChecklist), checklistHandler.AddObservation)
		protected.POST("/checklist/items/:id/clarifications", middleware.Require(policy.RequestClarification), checklistHandler.RequestClarification)
		protected.POST("/clarifications/:id/answer", middleware.Require(policy.AnswerClarification), checklistHandler.AnswerClarification)

		protected.POST("/contracts/:id/notices", middleware.Require(policy.SendNotice), noticeHandler.Send)
		protected.GET("/contracts/:id/notices", view, noticeHandler.List)

		notify := protected.Group("/notifications", middleware.Require(policy.NotifyResponsibles))
		notify.POST("/contract", notificationHandler.NotifyContract)
		notify.POST("/whatsapp", notificationHandler.SendWhatsApp)

		assistant := protected.Group("/", middleware.Require(policy.UseAssistant))
		assistant.POST("/chat", chatHandler.Stream)
		assistant.POST("/chat/save", chatHandler.Save)
		assistant.POST("/chats", chatHandler.Create)
		assistant.GET("/chats", chatHandler.List)
		assistant.GET("/chats/:id/messages", chatHandler.Messages)
	}

	return router
}
