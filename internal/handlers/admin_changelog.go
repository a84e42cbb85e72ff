package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"gorm.io/gorm"
)

var validChangelogStatuses = map[models.ChangelogStatus]bool{
	models.ChangelogDraft:     true,
	models.ChangelogReview:    true,
	models.ChangelogPublished: true,
	models.ChangelogArchived:  true,
}

// AdminListChangelogs returns all documents regardless of status
func AdminListChangelogs(c *gin.Context) {
	var docs []models.ChangelogDocument
	if err := database.DB.Order("created_at DESC").Find(&docs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch changelogs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changelogs": docs})
}

// AdminGetChangelog returns one document (any status) with its tree
func AdminGetChangelog(c *gin.Context) {
	var doc models.ChangelogDocument
	err := database.DB.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		Preload("Sections.Changes", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		First(&doc, "id = ?", c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Changelog not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changelog": doc})
}

// AdminUpdateChangelog updates document metadata and status. Moving to
// `published` stamps publishedAt; leaving it clears the stamp.
func AdminUpdateChangelog(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Title       string                 `json:"title"`
		Description string                 `json:"description"`
		Version     string                 `json:"version"`
		Status      models.ChangelogStatus `json:"status"`
		Tags        []string               `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != "" && !validChangelogStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var doc models.ChangelogDocument
		if err := tx.First(&doc, "id = ?", id).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Title != "" {
			updates["title"] = req.Title
		}
		if req.Description != "" {
			updates["description"] = req.Description
		}
		if req.Version != "" {
			updates["version"] = req.Version
		}
		if req.Tags != nil {
			updates["tags"] = pq.StringArray(req.Tags)
		}
		if req.Status != "" && req.Status != doc.Status {
			updates["status"] = req.Status
			if req.Status == models.ChangelogPublished {
				now := time.Now()
				updates["published_at"] = &now
			} else {
				updates["published_at"] = nil
			}
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&doc).Updates(updates).Error
	})

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Changelog not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update changelog"})
		return
	}

	invalidateChangelogCache()

	c.JSON(http.StatusOK, gin.H{"message": "Changelog updated"})
}

// AdminDeleteChangelog deletes a document and its sections/changes
func AdminDeleteChangelog(c *gin.Context) {
	id := c.Param("id")

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var sectionIDs []string
		if err := tx.Model(&models.ChangelogSection{}).Where("changelog_id = ?", id).Pluck("id", &sectionIDs).Error; err != nil {
			return err
		}
		if len(sectionIDs) > 0 {
			if err := tx.Delete(&models.ChangelogChange{}, "section_id IN ?", sectionIDs).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.ChangelogSection{}, "changelog_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ChangelogDocument{}, "id = ?", id).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete"})
		return
	}

	invalidateChangelogCache()

	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

// AdminDeleteGeneration removes a generation record. Documents assembled
// from it are independent copies and are left untouched.
func AdminDeleteGeneration(c *gin.Context) {
	if err := database.DB.Delete(&models.GenerationRecord{}, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}
