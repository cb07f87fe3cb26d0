package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/tradetalk/internal/metrics"
	"github.com/quocanhngo/tradetalk/internal/middleware"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/service"
	"github.com/quocanhngo/tradetalk/internal/ws"
	"github.com/quocanhngo/tradetalk/pkg/auth"
	"github.com/quocanhngo/tradetalk/pkg/storage"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterDeps are the collaborators the HTTP surface is built from
type RouterDeps struct {
	ChatService   *service.ChatService
	AuthService   *service.AuthService
	Hub           *ws.Hub
	Authenticator *auth.Authenticator
	Storage       storage.Storage // nil disables uploads
	CORSOrigins   []string
}

// NewRouter wires every route onto a gin engine
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.Default()

	// swagger.json is generated by `swag init` into ./docs
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	// Global middleware
	router.Use(middleware.CORSMiddleware(deps.CORSOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "tradetalk-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", metrics.Handler())

	chatHandler := NewChatHandler(deps.ChatService)
	authHandler := NewAuthHandler(deps.AuthService)
	uploadHandler := NewUploadHandler(deps.Storage)
	notificationHandler := NewNotificationHandler(deps.Hub)
	wsHandler := NewWSHandler(deps.Hub, deps.ChatService, deps.Authenticator)

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(deps.Authenticator))
	{
		// Session & devices
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/me", authHandler.GetProfile)
		api.POST("/devices", authHandler.RegisterDevice)

		// Conversations
		api.POST("/conversations", chatHandler.CreateConversation)
		api.GET("/conversations", chatHandler.ListConversations)
		api.GET("/conversations/:id", chatHandler.GetConversation)
		api.DELETE("/conversations/:id", chatHandler.DeactivateConversation)
		api.GET("/conversations/:id/messages", chatHandler.GetMessages)
		api.POST("/listings/:listingId/contact", chatHandler.ContactListing)

		// Messages
		api.POST("/messages", chatHandler.SendMessage)
		api.POST("/messages/read", chatHandler.MarkAsRead)
		api.PATCH("/messages/:id", chatHandler.EditMessage)
		api.DELETE("/messages/:id", chatHandler.DeleteMessage)
		api.POST("/typing", chatHandler.Typing)
		api.GET("/unread-count", chatHandler.UnreadCount)
		api.POST("/attachments", uploadHandler.UploadAttachment)

		// Admin
		admin := api.Group("/admin", middleware.RequireRole(model.UserRoleAdmin))
		admin.POST("/notifications", notificationHandler.NotifyRole)
	}

	// WebSocket endpoint (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	return router
}
