package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/shiplog-backend/internal/config"
	"github.com/pushp314/shiplog-backend/internal/database"
	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/internal/services"
	"github.com/pushp314/shiplog-backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB initializes an in-memory SQLite DB and wires the handler
// package to a generation service backed by fakes
func SetupTestDB() {
	config.AppConfig = &config.Config{
		JWTSecret:   "test_secret_key_12345",
		GithubToken: "service-token",
	}

	db, _ := gorm.Open(sqlite.Open("file:handlertest?mode=memory&cache=shared"), &gorm.Config{})
	database.DB = db
	database.DB.AutoMigrate(
		&models.User{},
		&models.GenerationRecord{},
		&models.ChangelogDocument{},
		&models.ChangelogSection{},
		&models.ChangelogChange{},
	)

	ai := &stubAI{
		analyses: []models.CommitAnalysis{
			{SHA: "aaa1111", Type: models.ChangeTypeFeature, Description: "Added export", Confidence: 0.9},
		},
		content: &models.GeneratedChangelog{
			Version: "1.0.0",
			Title:   "Release",
			Sections: []models.GeneratedSection{
				{Title: "Features", Changes: []models.GeneratedChange{{Description: "Added export", Type: models.ChangeTypeFeature}}},
			},
		},
	}
	InitServices(services.NewGenerationService(db, &stubFetcher{commits: []services.Commit{
		{SHA: "aaa1111", Message: "feat: add export", Author: "Alice", Date: time.Now()},
	}}, ai), nil)
}

type stubFetcher struct {
	commits []services.Commit
}

func (s *stubFetcher) ListCommits(ctx context.Context, token, owner, repo, branch string, since, until time.Time) ([]services.Commit, error) {
	return s.commits, nil
}

type stubAI struct {
	analyses []models.CommitAnalysis
	content  *models.GeneratedChangelog
}

func (s *stubAI) AnalyzeCommits(ctx context.Context, commits []services.Commit) ([]models.CommitAnalysis, services.TokenUsage, error) {
	return s.analyses, services.TokenUsage{}, nil
}

func (s *stubAI) SynthesizeChangelog(ctx context.Context, analyses []models.CommitAnalysis, opts models.GenerationOptions, repoName string) (*models.GeneratedChangelog, services.TokenUsage, error) {
	return s.content, services.TokenUsage{}, nil
}

func postJSON(t *testing.T, userId string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	data, _ := json.Marshal(body)
	c.Request, _ = http.NewRequest("POST", "/api/generations", bytes.NewBuffer(data))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("userId", userId)
	return w, c
}

func TestStartGeneration_Accepted(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	w, c := postJSON(t, "user1", gin.H{
		"repository": "acme/widgets",
		"branch":     "main",
		"startDate":  "2025-01-01",
		"endDate":    "2025-01-07",
	})
	StartGeneration(c)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var response struct {
		Generation models.GenerationRecord `json:"generation"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)

	assert.NotEmpty(t, response.Generation.ID)
	assert.Equal(t, models.GenerationProcessing, response.Generation.Status)
	assert.Equal(t, 0, response.Generation.Progress)
	assert.Equal(t, "acme", response.Generation.RepoOwner)
	assert.Equal(t, "widgets", response.Generation.RepoName)
}

func TestStartGeneration_BadRepositoryFormat(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	w, c := postJSON(t, "user1", gin.H{
		"repository": "not-a-repo",
		"startDate":  "2025-01-01",
		"endDate":    "2025-01-07",
	})
	StartGeneration(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartGeneration_BadDates(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	w, c := postJSON(t, "user1", gin.H{
		"repository": "acme/widgets",
		"startDate":  "yesterday",
		"endDate":    "2025-01-07",
	})
	StartGeneration(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Reversed range is rejected before any record is created
	w, c = postJSON(t, "user1", gin.H{
		"repository": "acme/widgets",
		"startDate":  "2025-02-01",
		"endDate":    "2025-01-01",
	})
	StartGeneration(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetGeneration_NotFound(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/api/generations/unknown", nil)
	c.Params = gin.Params{{Key: "id", Value: "unknown"}}

	GetGeneration(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishGeneration_NotReady(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	record := models.GenerationRecord{
		ID:        utils.GenerateID(),
		UserID:    "user1",
		RepoOwner: "acme",
		RepoName:  "widgets",
		Status:    models.GenerationProcessing,
	}
	database.DB.Create(&record)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("POST", "/api/generations/"+record.ID+"/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: record.ID}}
	c.Set("userId", "user1")

	PublishGeneration(c)

	assert.Equal(t, http.StatusConflict, w.Code)

	var count int64
	database.DB.Model(&models.ChangelogDocument{}).Where("ai_generation_id = ?", record.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestPublishGeneration_Completed(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	record := models.GenerationRecord{
		ID:        utils.GenerateID(),
		UserID:    "user1",
		RepoOwner: "acme",
		RepoName:  "widgets",
		Branch:    "main",
		Status:    models.GenerationCompleted,
		Progress:  100,
		GeneratedContent: &models.GeneratedChangelog{
			Version: "2.0.0",
			Title:   "Big release",
			Sections: []models.GeneratedSection{
				{Title: "Features", Changes: []models.GeneratedChange{{Description: "New thing", Type: models.ChangeTypeFeature}}},
			},
		},
	}
	database.DB.Create(&record)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("POST", "/api/generations/"+record.ID+"/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: record.ID}}
	c.Set("userId", "user1")

	PublishGeneration(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		ChangelogID string `json:"changelogId"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotEmpty(t, response.ChangelogID)

	var doc models.ChangelogDocument
	assert.NoError(t, database.DB.First(&doc, "id = ?", response.ChangelogID).Error)
	assert.Equal(t, "Big release", doc.Title)
	assert.Equal(t, models.ChangelogDraft, doc.Status)
}
