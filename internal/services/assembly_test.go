package services

import (
	"testing"
	"time"

	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func createCompletedGeneration(t *testing.T, db *gorm.DB) *models.GenerationRecord {
	t.Helper()
	record := models.GenerationRecord{
		ID:             utils.GenerateID(),
		UserID:         "user1",
		RepoOwner:      "acme",
		RepoName:       "widgets",
		Branch:         "main",
		StartDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
		Status:         models.GenerationCompleted,
		Progress:       100,
		CommitAnalyses: threeAnalyses(),
		GeneratedContent: &models.GeneratedChangelog{
			Version: "1.4.0",
			Title:   "Exports and fixes",
			Summary: "One feature, two fixes.",
			Sections: []models.GeneratedSection{
				{Title: "Features", Changes: []models.GeneratedChange{
					{Description: "Added export", Type: models.ChangeTypeFeature, CommitSHAs: []string{"aaa1111"}},
				}},
				{Title: "Bug Fixes", Changes: []models.GeneratedChange{
					{Description: "Fixed crash", Type: models.ChangeTypeFix},
					{Description: "Fixed counter", Type: models.ChangeTypeFix},
				}},
			},
		},
	}
	assert.NoError(t, db.Create(&record).Error)
	return &record
}

func TestAssembleChangelog_CreatesFullDocument(t *testing.T) {
	db := setupServiceDB(t)
	record := createCompletedGeneration(t, db)

	doc, err := AssembleChangelog(db, record.ID, "publisher1", nil)
	assert.NoError(t, err)
	assert.Equal(t, "1.4.0", doc.Version)
	assert.Equal(t, "Exports and fixes", doc.Title)
	assert.Equal(t, "140-exports-and-fixes", doc.Slug)
	assert.Equal(t, models.ChangelogDraft, doc.Status)
	assert.Equal(t, "publisher1", doc.CreatedBy)
	assert.NotNil(t, doc.AIGenerationID)
	assert.Equal(t, record.ID, *doc.AIGenerationID)

	// 2 sections, 3 changes persisted, all with fresh ids
	var sections []models.ChangelogSection
	assert.NoError(t, db.Where("changelog_id = ?", doc.ID).Order("\"order\" ASC").Find(&sections).Error)
	assert.Len(t, sections, 2)
	assert.Equal(t, "Features", sections[0].Title)

	var changes []models.ChangelogChange
	assert.NoError(t, db.Where("section_id IN ?", []string{sections[0].ID, sections[1].ID}).Find(&changes).Error)
	assert.Len(t, changes, 3)
	for _, ch := range changes {
		assert.NotEmpty(t, ch.ID)
		assert.NotEqual(t, record.ID, ch.ID)
	}
}

func TestAssembleChangelog_DerivesImpactFromType(t *testing.T) {
	db := setupServiceDB(t)
	record := createCompletedGeneration(t, db)

	doc, err := AssembleChangelog(db, record.ID, "user1", nil)
	assert.NoError(t, err)

	var changes []models.ChangelogChange
	sectionIDs := []string{doc.Sections[0].ID, doc.Sections[1].ID}
	assert.NoError(t, db.Where("section_id IN ?", sectionIDs).Find(&changes).Error)

	impacts := map[string]string{}
	for _, ch := range changes {
		impacts[ch.Description] = ch.Impact
	}
	assert.Equal(t, models.ImpactMinor, impacts["Added export"])
	assert.Equal(t, models.ImpactPatch, impacts["Fixed crash"])
}

func TestAssembleChangelog_AppliesCustomizations(t *testing.T) {
	db := setupServiceDB(t)
	record := createCompletedGeneration(t, db)

	doc, err := AssembleChangelog(db, record.ID, "user1", &ChangelogCustomizations{
		Title:       "Custom Title",
		Description: "Custom description",
		Tags:        []string{"beta", "api"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "Custom Title", doc.Title)
	assert.Equal(t, "Custom description", doc.Description)
	assert.Equal(t, []string{"beta", "api"}, []string(doc.Tags))
	// Version not overridden
	assert.Equal(t, "1.4.0", doc.Version)
}

func TestAssembleChangelog_RejectsProcessingGeneration(t *testing.T) {
	db := setupServiceDB(t)

	record := models.GenerationRecord{
		ID:        utils.GenerateID(),
		UserID:    "user1",
		RepoOwner: "acme",
		RepoName:  "widgets",
		Status:    models.GenerationProcessing,
	}
	assert.NoError(t, db.Create(&record).Error)

	_, err := AssembleChangelog(db, record.ID, "user1", nil)
	assert.ErrorIs(t, err, ErrGenerationNotReady)

	var count int64
	db.Model(&models.ChangelogDocument{}).Where("ai_generation_id = ?", record.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestAssembleChangelog_RejectsUnknownGeneration(t *testing.T) {
	db := setupServiceDB(t)

	_, err := AssembleChangelog(db, "missing-id", "user1", nil)
	assert.ErrorIs(t, err, ErrGenerationNotFound)
}

func TestAssembleChangelog_DocumentSurvivesGenerationDeletion(t *testing.T) {
	db := setupServiceDB(t)
	record := createCompletedGeneration(t, db)

	doc, err := AssembleChangelog(db, record.ID, "user1", nil)
	assert.NoError(t, err)

	assert.NoError(t, db.Delete(&models.GenerationRecord{}, "id = ?", record.ID).Error)

	var reloaded models.ChangelogDocument
	assert.NoError(t, db.First(&reloaded, "id = ?", doc.ID).Error)
	assert.Equal(t, doc.Title, reloaded.Title)
}
