package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/clipcut-backend/internal/handlers"
)

type RouterConfig struct {
	AppName       string
	VideosHandler *handlers.VideosHandler
	ClipsHandler  *handlers.ClipsHandler
	JobsHandler   *handlers.JobsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.AppName))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Videos
		api.POST("/videos", cfg.VideosHandler.Upload)
		api.POST("/videos/process-upload", cfg.VideosHandler.ProcessUpload)
		api.POST("/videos/youtube", cfg.VideosHandler.DownloadFromYouTube)
		api.POST("/videos/process-youtube", cfg.VideosHandler.ProcessFromYouTube)
		api.GET("/videos", cfg.VideosHandler.List)
		api.GET("/videos/:id", cfg.VideosHandler.Get)
		api.GET("/videos/:id/heatmap", cfg.VideosHandler.Heatmap)
		api.DELETE("/videos/:id", cfg.VideosHandler.Delete)
		api.POST("/videos/:id/reprocess", cfg.VideosHandler.Reprocess)
		api.POST("/videos/:id/ingest", cfg.VideosHandler.StartIngest)
		api.POST("/videos/:id/analyze", cfg.VideosHandler.StartAnalysis)
		api.POST("/videos/:id/generate-clips", cfg.VideosHandler.GenerateClips)
		// Clips
		api.GET("/videos/:id/clips", cfg.ClipsHandler.ListByVideo)
		api.GET("/clips/:id/download", cfg.ClipsHandler.Download)
		// Jobs
		api.GET("/jobs/:id", cfg.JobsHandler.Get)
		api.GET("/videos/:id/jobs", cfg.JobsHandler.ListByVideo)
		api.POST("/jobs/:id/cancel", cfg.JobsHandler.Cancel)
	}

	return router
}
