package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/handlers"
	"github.com/pushp314/shiplog-backend/internal/middleware"
)

func RegisterAuthRoutes(r gin.IRouter) {
	r.POST("/register", handlers.Register)
	r.POST("/login", handlers.Login)
	r.POST("/logout", middleware.AuthMiddleware(), handlers.Logout)
	r.GET("/me", middleware.AuthMiddleware(), handlers.Me)

	// OAuth
	r.GET("/github/login", handlers.GithubLogin)
	r.GET("/github/callback", handlers.GithubCallback)
}
