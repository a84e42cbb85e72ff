package services

import (
	"errors"

	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/pkg/utils"
	"gorm.io/gorm"
)

var ErrGenerationNotReady = errors.New("generation is not completed")

// ChangelogCustomizations are caller overrides applied during assembly.
// Empty fields leave the generated values in place.
type ChangelogCustomizations struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Tags        []string `json:"tags"`
}

// AssembleChangelog converts a completed generation into a persisted
// ChangelogDocument. Every row gets a fresh id; the write is a single
// transaction, so readers never observe a partial document.
func AssembleChangelog(db *gorm.DB, generationID, userID string, custom *ChangelogCustomizations) (*models.ChangelogDocument, error) {
	var record models.GenerationRecord
	if err := db.First(&record, "id = ?", generationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGenerationNotFound
		}
		return nil, err
	}
	if record.Status != models.GenerationCompleted || record.GeneratedContent == nil {
		return nil, ErrGenerationNotReady
	}

	content := record.GeneratedContent
	generationRef := record.ID

	doc := models.ChangelogDocument{
		ID:             utils.GenerateID(),
		Version:        content.Version,
		Title:          content.Title,
		Description:    content.Summary,
		RepoOwner:      record.RepoOwner,
		RepoName:       record.RepoName,
		Branch:         record.Branch,
		PeriodStart:    record.StartDate,
		PeriodEnd:      record.EndDate,
		Status:         models.ChangelogDraft,
		Tags:           []string{},
		AIGenerationID: &generationRef,
		CreatedBy:      userID,
	}

	if custom != nil {
		if custom.Title != "" {
			doc.Title = custom.Title
		}
		if custom.Description != "" {
			doc.Description = custom.Description
		}
		if custom.Version != "" {
			doc.Version = custom.Version
		}
		if len(custom.Tags) > 0 {
			doc.Tags = custom.Tags
		}
	}

	// Slug is derived once at assembly and stays stable across title edits
	doc.Slug = utils.GenerateSlug(doc.Version + " " + doc.Title)

	for si, section := range content.Sections {
		sec := models.ChangelogSection{
			ID:          utils.GenerateID(),
			ChangelogID: doc.ID,
			Title:       section.Title,
			Order:       si,
		}
		for ci, change := range section.Changes {
			shas := change.CommitSHAs
			if shas == nil {
				shas = []string{}
			}
			sec.Changes = append(sec.Changes, models.ChangelogChange{
				ID:          utils.GenerateID(),
				SectionID:   sec.ID,
				Description: change.Description,
				Type:        change.Type,
				Impact:      normalizeImpact(change.Impact, change.Type, change.Breaking),
				Breaking:    change.Breaking,
				CommitSHAs:  shas,
				Order:       ci,
			})
		}
		doc.Sections = append(doc.Sections, sec)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}

	return &doc, nil
}
