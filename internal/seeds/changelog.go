package seeds

import (
	"log"
	"time"

	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/pkg/utils"
)

// SeedChangelog creates a sample published document so the public site has
// something to render on a fresh install.
func SeedChangelog(createdBy string) error {
	var count int64
	database.DB.Model(&models.ChangelogDocument{}).Count(&count)
	if count > 0 {
		log.Println("Changelog documents exist, skipping seed")
		return nil
	}

	now := time.Now()
	doc := models.ChangelogDocument{
		ID:          utils.GenerateID(),
		Version:     "0.1.0",
		Title:       "Hello, Shiplog",
		Slug:        utils.GenerateSlug("0.1.0 Hello, Shiplog"),
		Description: "First release of the Shiplog changelog platform.",
		RepoOwner:   "shiplog",
		RepoName:    "shiplog",
		Branch:      "main",
		PeriodStart: now.AddDate(0, 0, -7),
		PeriodEnd:   now,
		Status:      models.ChangelogPublished,
		Tags:        []string{"release"},
		PublishedAt: &now,
		CreatedBy:   createdBy,
	}

	section := models.ChangelogSection{
		ID:          utils.GenerateID(),
		ChangelogID: doc.ID,
		Title:       "Features",
		Order:       0,
	}
	section.Changes = []models.ChangelogChange{
		{
			ID:          utils.GenerateID(),
			SectionID:   section.ID,
			Description: "AI-generated changelogs from your commit history",
			Type:        models.ChangeTypeFeature,
			Impact:      models.ImpactMinor,
			CommitSHAs:  []string{},
			Order:       0,
		},
	}
	doc.Sections = []models.ChangelogSection{section}

	if err := database.DB.Create(&doc).Error; err != nil {
		return err
	}

	log.Println("Seeded sample changelog document")
	return nil
}
