package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/pkg/logger"
	"github.com/pushp314/shiplog-backend/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrGenerationNotFound = errors.New("generation not found")
	ErrInvalidDateRange   = errors.New("start date must not be after end date")
	ErrMissingRepository  = errors.New("repository owner and name are required")
)

// pipelineTimeout bounds one generation end to end. The deadline rides the
// context through every collaborator call; on expiry the next call fails and
// the record is marked failed instead of sitting in processing forever.
const pipelineTimeout = 10 * time.Minute

// GenerationRequest is the validated input to StartGeneration
type GenerationRequest struct {
	RepoOwner string
	RepoName  string
	Branch    string
	StartDate time.Time
	EndDate   time.Time
	Token     string // GitHub token used for the commit fetch
	Options   models.GenerationOptions
}

// GenerationService owns the lifecycle of changelog generations. Collaborators
// are injected so tests can substitute fakes for the network clients.
//
// A started generation runs to completion or failure; there is no caller
// cancellation. The pipeline carries a single deadline (pipelineTimeout)
// through every outbound call, so a goroutine cannot block forever, but a
// process crash mid-pipeline leaves the record in `processing`.
type GenerationService struct {
	db      *gorm.DB
	commits CommitFetcher
	ai      ChangelogAI
}

func NewGenerationService(db *gorm.DB, commits CommitFetcher, ai ChangelogAI) *GenerationService {
	return &GenerationService{db: db, commits: commits, ai: ai}
}

// StartGeneration validates the request, persists the initial record and
// spawns the background pipeline. It returns immediately; callers observe
// progress by polling GetGeneration.
func (s *GenerationService) StartGeneration(userID string, req GenerationRequest) (*models.GenerationRecord, error) {
	if req.RepoOwner == "" || req.RepoName == "" {
		return nil, ErrMissingRepository
	}
	if req.StartDate.After(req.EndDate) {
		return nil, ErrInvalidDateRange
	}
	if req.Branch == "" {
		req.Branch = "main"
	}
	if req.Options.GroupBy == "" {
		req.Options.GroupBy = "type"
	}
	if req.Options.Audience == "" {
		req.Options.Audience = "developers"
	}

	record := models.GenerationRecord{
		ID:             utils.GenerateID(),
		UserID:         userID,
		RepoOwner:      req.RepoOwner,
		RepoName:       req.RepoName,
		Branch:         req.Branch,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         models.GenerationProcessing,
		Progress:       0,
		Options:        req.Options,
		CommitAnalyses: models.CommitAnalysisList{},
	}

	if err := s.db.Create(&record).Error; err != nil {
		return nil, err
	}

	go s.run(record.ID, req)

	return &record, nil
}

// GetGeneration returns the persisted snapshot of a generation. It never
// blocks on the background pipeline.
func (s *GenerationService) GetGeneration(id string) (*models.GenerationRecord, error) {
	var record models.GenerationRecord
	if err := s.db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGenerationNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListGenerations returns the caller's recent generations, newest first
func (s *GenerationService) ListGenerations(userID string, limit int) ([]models.GenerationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var records []models.GenerationRecord
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// run drives the fetch -> analyze -> synthesize pipeline for one record.
// Errors never propagate to the StartGeneration caller; they are reflected
// only in the record's status.
func (s *GenerationService) run(id string, req GenerationRequest) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("generation_id", id).Str("panic", fmt.Sprintf("%v", r)).Msg("Generation pipeline panicked")
			s.markFailed(id)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	start := time.Now()
	repoName := req.RepoOwner + "/" + req.RepoName

	// Stage 1: fetch commit history
	commits, err := s.commits.ListCommits(ctx, req.Token, req.RepoOwner, req.RepoName, req.Branch, req.StartDate, req.EndDate)
	if err != nil {
		logger.Warn().Err(err).Str("generation_id", id).Str("repo", repoName).Msg("Commit fetch failed")
		s.markFailed(id)
		return
	}
	if len(commits) == 0 {
		logger.Warn().Str("generation_id", id).Str("repo", repoName).Msg("No commits in range")
		s.markFailed(id)
		return
	}
	s.setProgress(id, 10)

	// Stage 2: per-commit categorization
	analyses, analyzeUsage, err := s.ai.AnalyzeCommits(ctx, commits)
	if err != nil {
		logger.Warn().Err(err).Str("generation_id", id).Msg("Commit analysis failed")
		s.markFailed(id)
		return
	}
	s.update(id, map[string]interface{}{
		"commit_analyses": models.CommitAnalysisList(analyses),
		"progress":        40,
	})

	// Stage 3: changelog synthesis
	content, synthUsage, err := s.ai.SynthesizeChangelog(ctx, analyses, req.Options, repoName)
	if err != nil {
		logger.Warn().Err(err).Str("generation_id", id).Msg("Changelog synthesis failed")
		s.markFailed(id)
		return
	}
	s.setProgress(id, 80)

	// Stage 4: reconcile model-reported metadata against a recount
	reconcileMetadata(content, analyses, commits)
	s.setProgress(id, 95)

	// Stage 5: done
	meta := models.AIMetadata{
		Model:            modelName(s.ai),
		PromptTokens:     analyzeUsage.Prompt + synthUsage.Prompt,
		CompletionTokens: analyzeUsage.Completion + synthUsage.Completion,
		Confidence:       content.Metadata.Confidence,
		ProcessingMs:     time.Since(start).Milliseconds(),
	}
	s.update(id, map[string]interface{}{
		"status":            models.GenerationCompleted,
		"progress":          100,
		"generated_content": content,
		"ai_metadata":       &meta,
	})

	logger.Info().
		Str("generation_id", id).
		Str("repo", repoName).
		Int("commits", len(commits)).
		Dur("elapsed", time.Since(start)).
		Msg("Generation completed")
}

// update writes pipeline state. The status guard makes terminal states
// immutable and, with monotonically increasing stage values, keeps progress
// non-decreasing; late writes against a terminal record are silently dropped.
func (s *GenerationService) update(id string, fields map[string]interface{}) {
	err := s.db.Model(&models.GenerationRecord{}).
		Where("id = ? AND status = ?", id, models.GenerationProcessing).
		Updates(fields).Error
	if err != nil {
		logger.Error().Err(err).Str("generation_id", id).Msg("Failed to persist generation state")
	}
}

func (s *GenerationService) setProgress(id string, progress int) {
	s.update(id, map[string]interface{}{"progress": progress})
}

func (s *GenerationService) markFailed(id string) {
	s.update(id, map[string]interface{}{"status": models.GenerationFailed})
}

// reconcileMetadata overrides the model's self-reported counts with a
// recount over the analyses; the counts must always match the stored data.
func reconcileMetadata(content *models.GeneratedChangelog, analyses []models.CommitAnalysis, commits []Commit) {
	breaking, features, fixes := 0, 0, 0
	confidenceSum := 0.0
	for _, a := range analyses {
		if a.BreakingChange || a.Type == models.ChangeTypeBreaking {
			breaking++
		}
		switch a.Type {
		case models.ChangeTypeFeature:
			features++
		case models.ChangeTypeFix:
			fixes++
		}
		confidenceSum += a.Confidence
	}

	contributors := map[string]bool{}
	for _, c := range commits {
		name := c.AuthorLogin
		if name == "" {
			name = c.Author
		}
		if name != "" {
			contributors[name] = true
		}
	}

	content.Metadata.TotalCommits = len(commits)
	content.Metadata.Contributors = len(contributors)
	content.Metadata.BreakingChanges = breaking
	content.Metadata.Features = features
	content.Metadata.BugFixes = fixes
	if len(analyses) > 0 {
		content.Metadata.Confidence = confidenceSum / float64(len(analyses))
	}
}

func modelName(ai ChangelogAI) string {
	if c, ok := ai.(*LLMClient); ok {
		return c.model
	}
	return "unknown"
}
