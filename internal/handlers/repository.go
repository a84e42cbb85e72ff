package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/services"
	"github.com/pushp314/shiplog-backend/pkg/logger"
)

// ListRepositories returns the repositories visible to the caller's GitHub
// token (their linked identity, or the service account fallback).
func ListRepositories(c *gin.Context) {
	userId := c.MustGet("userId").(string)

	repos, err := GitHub.ListRepositories(c.Request.Context(), githubTokenFor(userId))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to list repositories")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch repositories from GitHub"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"repositories": repos})
}

// ListBranches returns the branches of one repository
func ListBranches(c *gin.Context) {
	userId := c.MustGet("userId").(string)
	owner := c.Param("owner")
	repo := c.Param("repo")

	branches, err := GitHub.ListBranches(c.Request.Context(), githubTokenFor(userId), owner, repo)
	if err != nil {
		if errors.Is(err, services.ErrRepoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Repository not found"})
			return
		}
		logger.Warn().Err(err).Str("repo", owner+"/"+repo).Msg("Failed to list branches")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch branches from GitHub"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"branches": branches})
}
