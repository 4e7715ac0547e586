package main

import (
	"context"
	"log"
	"time"

	"campusconnect.id/communityhub/internal/config"
	"campusconnect.id/communityhub/internal/identity"
	"campusconnect.id/communityhub/internal/model"
	"campusconnect.id/communityhub/internal/server"
	"campusconnect.id/communityhub/pkg/database"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect()
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis unavailable, rate limiting disabled: %v", err)
			redisClient = nil
		}
		cancel()
	}

	srv := server.NewServer(cfg, db, redisClient)

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := srv.SeedInitialAdmin(seedCtx, cfg); err != nil {
		log.Fatalf("failed to seed initial admin: %v", err)
	}
	cancel()

	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&identity.Identity{},
		&model.Profile{},
		&model.RoleGrant{},
		&model.Message{},
	)
}
