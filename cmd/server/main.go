package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"opendebate/backend/internal/auth"
	"opendebate/backend/internal/config"
	"opendebate/backend/internal/database"
	"opendebate/backend/internal/discussion"
	"opendebate/backend/internal/handler"
	"opendebate/backend/internal/hub"
	"opendebate/backend/internal/invite"
	"opendebate/backend/internal/notification"
	"opendebate/backend/internal/pairing"
	"opendebate/backend/internal/ws"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "opendebate/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           OpenDebate API
// @version         1.0
// @description     This is the API for the OpenDebate service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	eventHub := hub.NewHub()
	if config.AppConfig.RedisURL != "" {
		if err := eventHub.AttachRedis(config.AppConfig.RedisURL); err != nil {
			log.Fatalf("Failed to attach Redis bridge: %v", err)
		}
		defer eventHub.DetachRedis()
	}

	discussionService := discussion.NewService(database.DB, eventHub)
	notificationService := notification.NewService(database.DB, eventHub)
	pairingService := pairing.NewService(
		database.DB,
		eventHub,
		discussionService,
		notificationService,
		time.Duration(config.AppConfig.PairingExpirySeconds)*time.Second,
	)
	inviteService := invite.NewService(database.DB, discussionService, notificationService)
	handler.Init(pairingService, discussionService, notificationService, inviteService)

	stopPassive := make(chan struct{})
	defer close(stopPassive)
	pairingService.StartPassiveLoop(stopPassive)

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Websocket routes (token also accepted as a query parameter)
	gateway := ws.NewGateway(eventHub, pairingService, discussionService)
	wsRoutes := router.Group("/ws")
	wsRoutes.Use(auth.AuthMiddleware())
	{
		wsRoutes.GET("/pairing", gateway.PairingEndpoint())
		wsRoutes.GET("/discussions", gateway.DiscussionEndpoint())
		wsRoutes.GET("/notifications", gateway.NotificationEndpoint())
	}

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.RegisterUser)
			authRoutes.POST("/login", handler.LoginUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", handler.GetMe)
		}

		// Debate routes. Browsing works without a token; a valid token
		// enriches the response with the caller's stance.
		debateRoutes := apiV1.Group("/debates")
		{
			debateRoutes.GET("", auth.OptionalAuthMiddleware(), handler.GetDebates)
			debateRoutes.GET("/:id", auth.OptionalAuthMiddleware(), handler.GetDebateByID)
			debateRoutes.POST("/:id/stance", auth.AuthMiddleware(), handler.SetStance)
			debateRoutes.POST("/:id/pairing/passive", auth.AuthMiddleware(), handler.RequestPassivePairing)
		}

		// Discussion routes (protected)
		discussionRoutes := apiV1.Group("/discussions")
		discussionRoutes.Use(auth.AuthMiddleware())
		{
			discussionRoutes.GET("", handler.GetDiscussions)
			discussionRoutes.GET("/unread_count", handler.GetUnreadCount)
			discussionRoutes.GET("/:id", handler.GetDiscussionByID)
			discussionRoutes.GET("/:id/messages", handler.GetDiscussionMessages)
			discussionRoutes.POST("/:id/archive", handler.SetDiscussionArchived)
		}

		// Invite routes. Viewing a single invite is public so the link
		// can be previewed before logging in.
		inviteRoutes := apiV1.Group("/invites")
		{
			inviteRoutes.GET("/:code", handler.GetInvite)
			inviteRoutes.GET("", auth.AuthMiddleware(), handler.GetInvites)
			inviteRoutes.POST("", auth.AuthMiddleware(), handler.CreateInvite)
			inviteRoutes.POST("/:code/accept", auth.AuthMiddleware(), handler.AcceptInvite)
			inviteRoutes.DELETE("/:code", auth.AuthMiddleware(), handler.DeleteInvite)
		}

		// Message routes (protected)
		messageRoutes := apiV1.Group("/messages")
		messageRoutes.Use(auth.AuthMiddleware())
		{
			messageRoutes.DELETE("/:id", handler.DeleteMessage)
		}

		// Notification routes (protected)
		notificationRoutes := apiV1.Group("/notifications")
		notificationRoutes.Use(auth.AuthMiddleware())
		{
			notificationRoutes.GET("", handler.GetNotifications)
			notificationRoutes.GET("/unread-count", handler.GetUnreadNotificationCount)
			notificationRoutes.POST("/:id/read", handler.MarkNotificationRead)
		}

		// Admin routes (protected by auth and admin check)
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminDebateRoutes := adminRoutes.Group("/debates")
			{
				adminDebateRoutes.POST("", handler.CreateDebate)
				adminDebateRoutes.PUT("/:id", handler.UpdateDebate)
				adminDebateRoutes.DELETE("/:id", handler.DeleteDebate)
			}
		}
	}

	addr := ":" + config.AppConfig.Port
	fmt.Printf("Server is running on %s\n", addr)
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(addr))
}
