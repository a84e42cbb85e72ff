package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/internal/services"
	"github.com/pushp314/shiplog-backend/pkg/logger"
	"github.com/pushp314/shiplog-backend/pkg/utils"
)

type StartGenerationInput struct {
	Repository string                   `json:"repository" binding:"required"` // "owner/name"
	Branch     string                   `json:"branch"`
	StartDate  string                   `json:"startDate" binding:"required"`
	EndDate    string                   `json:"endDate" binding:"required"`
	Options    models.GenerationOptions `json:"options"`
}

// StartGeneration accepts a generation request, returns the initial record
// immediately (202) and leaves the pipeline running in the background.
// Clients poll GetGeneration until status leaves "processing".
func StartGeneration(c *gin.Context) {
	userId := c.MustGet("userId").(string)

	var input StartGenerationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner, name, ok := splitRepository(input.Repository)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Repository must be in owner/name format"})
		return
	}

	start, err := parseDate(input.StartDate, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid startDate: use YYYY-MM-DD or RFC3339"})
		return
	}
	end, err := parseDate(input.EndDate, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid endDate: use YYYY-MM-DD or RFC3339"})
		return
	}

	record, err := Generations.StartGeneration(userId, services.GenerationRequest{
		RepoOwner: owner,
		RepoName:  name,
		Branch:    input.Branch,
		StartDate: start,
		EndDate:   end,
		Token:     githubTokenFor(userId),
		Options:   input.Options,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDateRange), errors.Is(err, services.ErrMissingRepository):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error().Err(err).Msg("Failed to start generation")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start generation"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"generation": record})
}

// GetGeneration returns the current snapshot of a generation record
func GetGeneration(c *gin.Context) {
	id := c.Param("id")
	if !utils.IsUUID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
		return
	}

	record, err := Generations.GetGeneration(id)
	if err != nil {
		if errors.Is(err, services.ErrGenerationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch generation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generation": record})
}

// ListGenerations returns the caller's recent generations
func ListGenerations(c *gin.Context) {
	userId := c.MustGet("userId").(string)

	records, err := Generations.ListGenerations(userId, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch generations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"generations": records})
}

// PublishGeneration assembles a completed generation into a changelog
// document. 409 when the generation has not completed yet.
func PublishGeneration(c *gin.Context) {
	userId := c.MustGet("userId").(string)
	id := c.Param("id")

	var custom services.ChangelogCustomizations
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&custom); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	doc, err := services.AssembleChangelog(database.DB, id, userId, &custom)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGenerationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
		case errors.Is(err, services.ErrGenerationNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "Generation is not completed yet"})
		default:
			logger.Error().Err(err).Str("generation_id", id).Msg("Failed to assemble changelog")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create changelog"})
		}
		return
	}

	invalidateChangelogCache()

	c.JSON(http.StatusCreated, gin.H{"changelogId": doc.ID, "changelog": doc})
}

func splitRepository(full string) (owner, name string, ok bool) {
	parts := strings.Split(strings.TrimSpace(full), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the
// whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}
