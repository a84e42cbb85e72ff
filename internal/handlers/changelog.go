package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"gorm.io/gorm"
)

const changelogCacheKey = "changelog:published:page1"

// ListChangelog returns published changelog documents, newest first.
// The first page is cached in Redis; mutations invalidate it.
func ListChangelog(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	if page == 1 && limit == 20 {
		var cached []models.ChangelogDocument
		if hit, err := database.CacheGet(changelogCacheKey, &cached); err == nil && hit {
			c.JSON(http.StatusOK, gin.H{"changelogs": cached, "page": page})
			return
		}
	}

	var docs []models.ChangelogDocument
	err := database.DB.
		Where("status = ?", models.ChangelogPublished).
		Order("published_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch changelog"})
		return
	}

	if page == 1 && limit == 20 {
		database.CacheSet(changelogCacheKey, docs, 5*time.Minute)
	}

	c.JSON(http.StatusOK, gin.H{"changelogs": docs, "page": page})
}

// GetChangelog returns one published document with its sections and changes.
// The param matches either the document id or its slug.
func GetChangelog(c *gin.Context) {
	ref := c.Param("id")

	var doc models.ChangelogDocument
	err := database.DB.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		Preload("Sections.Changes", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		First(&doc, "(id = ? OR slug = ?) AND status = ?", ref, ref, models.ChangelogPublished).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Changelog not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changelog": doc})
}

func invalidateChangelogCache() {
	database.CacheInvalidate("changelog:published:*")
}
