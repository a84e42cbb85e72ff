package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/handlers"
	"github.com/pushp314/shiplog-backend/internal/middleware"
)

func RegisterRepositoryRoutes(r *gin.RouterGroup) {
	repos := r.Group("/repositories")
	repos.Use(middleware.AuthMiddleware())

	repos.GET("", handlers.ListRepositories)
	repos.GET("/:owner/:repo/branches", handlers.ListBranches)
}
