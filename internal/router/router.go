// Package router composes the Ingest Gateway's HTTP surface (spec §6):
// one Setup function wiring collaborators through an explicit context
// struct into handlers into routes, with no package-level globals.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/lore-anchor/protect/internal/app"
	"github.com/lore-anchor/protect/internal/auth"
	"github.com/lore-anchor/protect/internal/database"
	"github.com/lore-anchor/protect/internal/handlers"
	"github.com/lore-anchor/protect/internal/middleware"
)

// Setup builds the gin.Engine serving the Ingest Gateway.
func Setup(db *database.DB, appCtx *app.Context) *gin.Engine {
	imageHandler := handlers.NewImageHandler(appCtx)
	taskHandler := handlers.NewTaskHandler(appCtx)
	authMiddleware := auth.Middleware(appCtx.Verifier)

	r := setupBaseRouter(appCtx)

	r.GET("/health", healthCheck(db, appCtx))

	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware)
	{
		uploadLimiter := middleware.RateLimit(appCtx.Config.UploadRatePerMin)
		readLimiter := middleware.RateLimit(appCtx.Config.ReadRatePerMin)

		images := v1.Group("/images")
		{
			images.POST("/upload", uploadLimiter, imageHandler.Upload)
			images.GET("/", readLimiter, imageHandler.List)
			images.GET("/:image_id", readLimiter, imageHandler.Get)
			images.DELETE("/:image_id", readLimiter, imageHandler.Delete)
			images.POST("/:image_id/downloaded", readLimiter, imageHandler.TrackDownload)
		}

		tasks := v1.Group("/tasks")
		{
			tasks.GET("/:image_id/status", readLimiter, taskHandler.Status)
			tasks.POST("/:image_id/retry", uploadLimiter, taskHandler.Retry)
		}
	}

	return r
}

func setupBaseRouter(appCtx *app.Context) *gin.Engine {
	r := gin.New()

	r.Use(otelgin.Middleware("lore-anchor-gateway"))
	r.Use(middleware.Observability())
	r.Use(middleware.SecurityHeaders())

	// Trusted proxies: nil means no X-Forwarded-For trust unless the
	// deployment explicitly configures its load balancer's CIDR ranges.
	r.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = appCtx.Config.AllowedOrigins
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Authorization", "Accept", "User-Agent",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	return r
}

// healthCheck reports database health and, best-effort, queue depth
// (spec §4.6 "queue depth exposed on health").
func healthCheck(db *database.DB, appCtx *app.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now().Unix(),
			})
			return
		}

		resp := gin.H{"status": "ok", "timestamp": time.Now().Unix()}
		if depth, err := appCtx.Queue.Len(c.Request.Context()); err == nil {
			resp["queue_depth"] = depth
		}
		c.JSON(http.StatusOK, resp)
	}
}
