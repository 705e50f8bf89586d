package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-agent/internal/config"
	"github.com/stemsi/exstem-agent/internal/handler"
	"github.com/stemsi/exstem-agent/internal/middleware"
	"github.com/stemsi/exstem-agent/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// The agent listens on loopback only, but the exam UI still sends an
	// Origin header. If AllowedOrigins is set in config, restrict to
	// that list; otherwise allow all (*) so dev works without extra
	// config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 0. Public Group (No Token) ────────────────────────────────────
	// The kiosk shell polls this to decide whether navigation stays
	// locked; it never holds an attempt token.
	router.GET("/api/v1/attempt/active", handlers.Attempt.Active)

	// ─── 1. Attempt Group (Attempt Token) ──────────────────────────────
	attemptAPI := router.Group("/api/v1/attempt")
	attemptAPI.Use(middleware.RequireAttemptToken(cfg.AttemptTokenSecret))
	{
		attemptAPI.POST("/begin", handlers.Attempt.Begin)
		attemptAPI.GET("/state", handlers.Attempt.State)
		attemptAPI.POST("/answers", handlers.Attempt.Answer)
		attemptAPI.DELETE("/answers/:key", handlers.Attempt.ClearAnswer)
		attemptAPI.POST("/review/:key", handlers.Attempt.ToggleReview)
		attemptAPI.POST("/navigate", handlers.Attempt.Navigate)
		attemptAPI.POST("/submit", handlers.Attempt.Submit)
		attemptAPI.POST("/submit/retry", handlers.Attempt.Retry)
	}

	// ─── 2. WebSocket Group (Attempt Token via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAttemptToken(cfg.AttemptTokenSecret))
	{
		ws.GET("/attempt/stream", handlers.WS.AttemptStream)
	}

	return router
}
