package server

import (
	"context"
	"strings"
	"time"

	"campusconnect.id/communityhub/internal/config"
	"campusconnect.id/communityhub/internal/handler"
	"campusconnect.id/communityhub/internal/identity"
	"campusconnect.id/communityhub/internal/middleware"
	"campusconnect.id/communityhub/internal/repository"
	"campusconnect.id/communityhub/internal/service"
	"campusconnect.id/communityhub/internal/ws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	hub         *ws.Hub
	provisioner service.ProvisionService
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	ids := identity.NewStore(db)
	profileRepo := repository.NewProfileRepository(db)
	roleRepo := repository.NewRoleGrantRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	hub := ws.NewHub(cfg.SubscriberBuffer)

	authSvc := service.NewAuthService(ids, profileRepo, roleRepo, cfg.LoginDomain, cfg.JWTSecret, cfg.JWTTTL)
	authHandler := handler.NewAuthHandler(authSvc)

	presenceSvc := service.NewPresenceService(profileRepo, hub, cfg.StoreTimeout)
	chatSvc := service.NewChatService(messageRepo, hub, redisClient, cfg.PublishRateLimit, cfg.HistoryLimit, cfg.StoreTimeout)
	chatHandler := handler.NewChatHandler(chatSvc, presenceSvc, hub)

	profileSvc := service.NewProfileService(profileRepo)
	profileHandler := handler.NewProfileHandler(profileSvc)

	provisionSvc := service.NewProvisionService(ids, profileRepo, roleRepo, cfg.LoginDomain, cfg.StoreTimeout, cfg.BulkParallelism)
	adminHandler := handler.NewAdminHandler(provisionSvc, profileSvc)

	router := gin.New()

	setupCORS(router, cfg)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(roleRepo, cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// Protected routes (apply auth middleware explicitly)
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Admin routes
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/users", adminHandler.CreateUser)
			adminGroup.POST("/users/bulk", adminHandler.BulkCreateUsers)
			adminGroup.POST("/users/import", adminHandler.ImportUsers)
			adminGroup.GET("/users", adminHandler.GetAllUsers)
		}

		// Chat routes
		protected.GET("/messages", chatHandler.GetHistory)
		protected.POST("/messages", chatHandler.SendMessage)
		protected.GET("/ws", chatHandler.Subscribe)

		// Directory / presence read
		protected.GET("/profiles", profileHandler.GetDirectory)
	}

	return &Server{
		engine:      router,
		hub:         hub,
		provisioner: provisionSvc,
	}
}

// SeedInitialAdmin provisions the first administrator when the setup
// credentials are configured and no admin grant exists yet.
func (s *Server) SeedInitialAdmin(ctx context.Context, cfg *config.Config) error {
	if cfg.SetupAdminUsername == "" || cfg.SetupAdminPassword == "" {
		return nil
	}
	return s.provisioner.SetupInitialAdmin(ctx, cfg.SetupAdminUsername, cfg.SetupAdminPassword)
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func setupCORS(router *gin.Engine, cfg *config.Config) {
	var origins []string
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
