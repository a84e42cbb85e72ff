package handlers

import (
	"github.com/pushp314/shiplog-backend/internal/config"
	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/internal/services"
)

// Collaborators are constructed once in main and injected here so handler
// funcs stay package-level in gin's style while tests can swap in fakes.
var (
	Generations *services.GenerationService
	GitHub      *services.GitHubClient
)

// InitServices wires the handler package to its collaborators
func InitServices(gen *services.GenerationService, gh *services.GitHubClient) {
	Generations = gen
	GitHub = gh
}

// githubTokenFor returns the user's linked GitHub token, falling back to the
// service account token when the user has no GitHub identity.
func githubTokenFor(userID string) string {
	var user models.User
	if err := database.DB.Select("github_token").First(&user, "id = ?", userID).Error; err == nil && user.GithubToken != "" {
		return user.GithubToken
	}
	return config.AppConfig.GithubToken
}
