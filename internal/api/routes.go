package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobtrack/internal/api/middleware"
	"jobtrack/internal/auth"
)

// LoginProtection carries the redis-backed login abuse knobs.
type LoginProtection struct {
	RateLimitPerHour int
	LockThreshold    int
	LockTTL          time.Duration
}

// RegisterRoutes wires all API routes under /v1.
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	protection LoginProtection,
	cookieDomain string,
) {
	authHandler := NewAuthHandler(db, authService, redisClient, logger, protection.RateLimitPerHour, protection.LockThreshold, protection.LockTTL, cookieDomain)
	jobHandler := NewJobHandler(db)
	noteHandler := NewNoteHandler(db)
	statsHandler := NewStatsHandler(db)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		jobGroup := v1.Group("/jobs")
		jobGroup.Use(authMiddleware)
		{
			jobGroup.GET("", jobHandler.ListJobs)
			jobGroup.POST("", jobHandler.CreateJob)
			jobGroup.GET("/:id", jobHandler.GetJob)
			jobGroup.PATCH("/:id", jobHandler.UpdateJob)
			jobGroup.DELETE("/:id", jobHandler.DeleteJob)
		}

		noteGroup := v1.Group("/notes")
		noteGroup.Use(authMiddleware)
		{
			noteGroup.POST("", noteHandler.CreateNote)
		}

		statsGroup := v1.Group("/stats")
		statsGroup.Use(authMiddleware)
		{
			statsGroup.GET("", statsHandler.GetStats)
		}
	}
}
