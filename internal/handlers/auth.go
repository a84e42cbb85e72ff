package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/config"
	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/pkg/logger"
	"github.com/pushp314/shiplog-backend/pkg/utils"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var githubOAuthConfig *oauth2.Config

// InitOAuthConfig builds the GitHub OAuth config from app config.
// The `repo` scope lets the backend fetch commit history for the user's
// private repositories.
func InitOAuthConfig() {
	githubOAuthConfig = &oauth2.Config{
		ClientID:     config.AppConfig.GithubClientID,
		ClientSecret: config.AppConfig.GithubClientSecret,
		RedirectURL:  config.AppConfig.GithubCallbackURL,
		Scopes:       []string{"read:user", "user:email", "repo"},
		Endpoint:     github.Endpoint,
	}
}

// --- Local Auth ---

type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Username string `json:"username" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		ID:       utils.GenerateID(),
		Name:     input.Name,
		Email:    input.Email,
		Username: input.Username,
		Password: string(hashedPassword),
	}

	if result := database.DB.Create(&user); result.Error != nil {
		logger.Warn().Err(result.Error).Str("email", input.Email).Msg("Registration failed: unique violation")
		c.JSON(http.StatusConflict, gin.H{"error": "User with this email or username already exists"})
		return
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	logger.Info().Str("user_id", user.ID).Msg("User registered successfully")

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  user,
	})
}

func Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if result := database.DB.Where("email = ?", input.Email).First(&user); result.Error != nil {
		logger.Warn().Str("email", input.Email).Msg("Login failed: user not found")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		logger.Warn().Str("email", input.Email).Msg("Login failed: wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout revokes the current token until its natural expiry
func Logout(c *gin.Context) {
	claims := c.MustGet("claims").(*utils.Claims)

	ttl := 7 * 24 * time.Hour
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		database.BlacklistToken(claims.GetJTI(), ttl)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user's profile
func Me(c *gin.Context) {
	userId := c.MustGet("userId").(string)

	var user models.User
	if err := database.DB.First(&user, "id = ?", userId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// --- GitHub OAuth ---

func GithubLogin(c *gin.Context) {
	url := githubOAuthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOnline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

func GithubCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	oauthToken, err := githubOAuthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.Warn().Err(err).Msg("GitHub OAuth exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "OAuth exchange failed"})
		return
	}

	ghUser, err := fetchGithubUser(oauthToken.AccessToken)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch GitHub profile")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch GitHub profile"})
		return
	}

	// Find by GitHub login first, then by email, else create
	var user models.User
	err = database.DB.Where("github_login = ?", ghUser.Login).First(&user).Error
	if err != nil && ghUser.Email != "" {
		err = database.DB.Where("email = ?", ghUser.Email).First(&user).Error
	}

	if err != nil {
		email := ghUser.Email
		if email == "" {
			email = ghUser.Login + "@users.noreply.github.com"
		}
		user = models.User{
			ID:          utils.GenerateID(),
			Name:        ghUser.Name,
			Email:       email,
			Username:    ghUser.Login,
			Image:       ghUser.AvatarURL,
			GithubLogin: ghUser.Login,
			GithubToken: oauthToken.AccessToken,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			logger.Error().Err(err).Msg("Failed to create user from GitHub profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
	} else {
		// Refresh the stored token so commit fetches keep working
		database.DB.Model(&user).Updates(map[string]interface{}{
			"github_login": ghUser.Login,
			"github_token": oauthToken.AccessToken,
		})
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	logger.Info().Str("user_id", user.ID).Str("github_login", ghUser.Login).Msg("GitHub login")

	c.Redirect(http.StatusTemporaryRedirect, config.AppConfig.FrontendURL+"/auth/callback?token="+token)
}

type githubProfile struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func fetchGithubUser(accessToken string) (*githubProfile, error) {
	req, err := http.NewRequest("GET", config.AppConfig.GithubAPIBaseURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var profile githubProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
