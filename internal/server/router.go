package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/harshaverse/karmic/internal/handlers"
)

type RouterConfig struct {
	AssetHandler *handlers.AssetHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

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
		api.GET("/health", handlers.HealthCheck)
		api.GET("/status", cfg.AssetHandler.Status)
		api.POST("/upload_model", cfg.AssetHandler.UploadModel)
		api.POST("/optimize_mesh", cfg.AssetHandler.OptimizeMesh)
		api.GET("/download_glb/:asset_id", cfg.AssetHandler.DownloadGLB)
		api.DELETE("/cleanup", cfg.AssetHandler.CleanupAll)
		api.DELETE("/cleanup/:asset_id", cfg.AssetHandler.Cleanup)
	}

	return router
}
