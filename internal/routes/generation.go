package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/handlers"
	"github.com/pushp314/shiplog-backend/internal/middleware"
)

func RegisterGenerationRoutes(r *gin.RouterGroup) {
	generations := r.Group("/generations")
	generations.Use(middleware.AuthMiddleware())

	generations.POST("", middleware.GenerateRateLimit(), handlers.StartGeneration)
	generations.GET("", handlers.ListGenerations)
	generations.GET("/:id", handlers.GetGeneration)
	generations.POST("/:id/publish", handlers.PublishGeneration)
}
