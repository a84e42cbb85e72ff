package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/handlers"
	"github.com/pushp314/shiplog-backend/internal/middleware"
)

func RegisterAdminRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())

	// Changelog management
	admin.GET("/changelog", handlers.AdminListChangelogs)
	admin.GET("/changelog/:id", handlers.AdminGetChangelog)
	admin.PUT("/changelog/:id", handlers.AdminUpdateChangelog)
	admin.DELETE("/changelog/:id", handlers.AdminDeleteChangelog)

	// Generation cleanup
	admin.DELETE("/generations/:id", handlers.AdminDeleteGeneration)
}
