package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"linkup/backend/internal/auth"
	"linkup/backend/internal/config"
	"linkup/backend/internal/conversation"
	"linkup/backend/internal/database"
	"linkup/backend/internal/handler"
	"linkup/backend/internal/realtime"
	"linkup/backend/internal/relationship"
	"linkup/backend/internal/store"
	"linkup/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Swagger imports
	_ "linkup/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           LinkUp API
// @version         1.0
// @description     This is the API for the LinkUp chat service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// The session registry lives in redis so any instance can resolve a
	// user's active connection.
	redisOpts, err := redis.ParseURL(config.AppConfig.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)

	st := store.NewGormStore(database.DB)
	registry := realtime.NewRedisRegistry(rdb)
	relay := realtime.NewRedisRelay(rdb)
	gateway := realtime.NewGateway(registry, relay, logger)

	relationshipService := relationship.NewService(st, gateway, logger)
	conversationService := conversation.NewService(st)

	userHandler := handler.NewUserHandler(st)
	relationshipHandler := handler.NewRelationshipHandler(relationshipService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	wsHandler := realtime.NewWSHandler(gateway, st, relationshipService, jwt.ParseToken, logger)

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Realtime channel (authenticates during the handshake)
	router.GET("/ws", wsHandler.Handle)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", userHandler.RegisterUser)
			authRoutes.POST("/login", userHandler.LoginUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("", userHandler.SearchUsers)
			userRoutes.GET("/me", userHandler.GetMe)
		}

		// Relationship routes (protected)
		contactRoutes := apiV1.Group("/contacts")
		contactRoutes.Use(auth.AuthMiddleware())
		{
			contactRoutes.GET("", relationshipHandler.GetContacts)
			contactRoutes.PUT("", relationshipHandler.CreateContact)
			contactRoutes.PATCH("/:id", relationshipHandler.UpdateContact)
			contactRoutes.POST("/block", relationshipHandler.BlockContact)
			contactRoutes.DELETE("/:id", relationshipHandler.DeleteContact)
		}

		// Conversation routes (protected)
		conversationRoutes := apiV1.Group("/conversations")
		conversationRoutes.Use(auth.AuthMiddleware())
		{
			conversationRoutes.GET("", conversationHandler.GetConversations)
			conversationRoutes.PUT("", conversationHandler.CreateConversation)
			conversationRoutes.GET("/:id", conversationHandler.GetConversation)
			conversationRoutes.POST("/:id/messages", conversationHandler.SendMessage)
			conversationRoutes.POST("/:id/seen", conversationHandler.MarkSeen)
		}
	}

	addr := ":" + config.AppConfig.Port
	fmt.Println("Server is running on " + addr)
	fmt.Println("Swagger UI is available at http://localhost" + addr + "/swagger/index.html")
	log.Fatal(router.Run(addr))
}
