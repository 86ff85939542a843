package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"blog/core"
)

func main() {
	cfg := core.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	gin.SetMode(cfg.GinMode)
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	checks := map[string]core.HealthCheck{"postgres": db.Ping}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var store sessions.Store
	if cfg.SessionStore == "redis" {
		store = core.NewRedisStore(redisClient, []byte(cfg.SessionKey))
	} else {
		store = sessions.NewCookieStore([]byte(cfg.SessionKey))
	}

	directory := core.NewUserDirectory(core.NewPgUserRepository(db), core.NewPasswordHasher(cfg.BcryptCost))
	router, err := core.NewRouter(cfg, store, core.Services{
		Directory: directory,
		Auth:      core.NewRepositoryAuthService(directory),
		Posts:     core.NewPgPostRepository(db),
		Throttle:  core.NewLoginThrottle(cfg, redisClient),
		Checks:    checks,
	})
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting blog on %s (session store: %s)", addr, cfg.SessionStore)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
