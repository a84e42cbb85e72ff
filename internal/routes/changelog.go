package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/handlers"
)

// SetupChangelogRoutes configures the public changelog routes consumed by
// the changelog website
func SetupChangelogRoutes(r *gin.RouterGroup) {
	r.GET("/changelog", handlers.ListChangelog)
	r.GET("/changelog/:id", handlers.GetChangelog)
}
