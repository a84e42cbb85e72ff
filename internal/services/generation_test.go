package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupServiceDB initializes an in-memory SQLite DB shared across the pool
func setupServiceDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:svctest?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.GenerationRecord{},
		&models.ChangelogDocument{},
		&models.ChangelogSection{},
		&models.ChangelogChange{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// --- fakes ---

type fakeFetcher struct {
	commits []Commit
	err     error
	delay   time.Duration
}

func (f *fakeFetcher) ListCommits(ctx context.Context, token, owner, repo, branch string, since, until time.Time) ([]Commit, error) {
	time.Sleep(f.delay)
	return f.commits, f.err
}

type fakeAI struct {
	analyses   []models.CommitAnalysis
	content    *models.GeneratedChangelog
	analyzeErr error
	synthErr   error
	delay      time.Duration
}

func (f *fakeAI) AnalyzeCommits(ctx context.Context, commits []Commit) ([]models.CommitAnalysis, TokenUsage, error) {
	time.Sleep(f.delay)
	return f.analyses, TokenUsage{Prompt: 100, Completion: 50}, f.analyzeErr
}

func (f *fakeAI) SynthesizeChangelog(ctx context.Context, analyses []models.CommitAnalysis, opts models.GenerationOptions, repoName string) (*models.GeneratedChangelog, TokenUsage, error) {
	time.Sleep(f.delay)
	if f.synthErr != nil {
		return nil, TokenUsage{}, f.synthErr
	}
	content := *f.content
	return &content, TokenUsage{Prompt: 200, Completion: 80}, nil
}

func threeCommits() []Commit {
	now := time.Now()
	return []Commit{
		{SHA: "aaa1111", Message: "feat: add export", Author: "Alice", AuthorLogin: "alice", Date: now},
		{SHA: "bbb2222", Message: "fix: null deref", Author: "Bob", AuthorLogin: "bob", Date: now},
		{SHA: "ccc3333", Message: "fix: off by one", Author: "Alice", AuthorLogin: "alice", Date: now},
	}
}

func threeAnalyses() []models.CommitAnalysis {
	return []models.CommitAnalysis{
		{SHA: "aaa1111", Type: models.ChangeTypeFeature, Description: "Added export", Impact: models.ImpactMinor, AffectedComponents: []string{"api"}, UserFacing: true, Confidence: 0.9},
		{SHA: "bbb2222", Type: models.ChangeTypeFix, Description: "Fixed crash", Impact: models.ImpactPatch, AffectedComponents: []string{}, UserFacing: true, Confidence: 0.8},
		{SHA: "ccc3333", Type: models.ChangeTypeFix, Description: "Fixed counter", Impact: models.ImpactPatch, AffectedComponents: []string{}, UserFacing: false, Confidence: 0.7},
	}
}

func sampleContent() *models.GeneratedChangelog {
	return &models.GeneratedChangelog{
		Version: "1.4.0",
		Title:   "Exports and fixes",
		Summary: "One new feature and two bug fixes.",
		Sections: []models.GeneratedSection{
			{Title: "Features", Changes: []models.GeneratedChange{
				{Description: "Added export", Type: models.ChangeTypeFeature, Impact: models.ImpactMinor, CommitSHAs: []string{"aaa1111"}},
			}},
			{Title: "Bug Fixes", Changes: []models.GeneratedChange{
				{Description: "Fixed crash", Type: models.ChangeTypeFix, CommitSHAs: []string{"bbb2222"}},
				{Description: "Fixed counter", Type: models.ChangeTypeFix, CommitSHAs: []string{"ccc3333"}},
			}},
		},
		// Deliberately wrong counts: reconciliation must override these.
		Metadata: models.ChangelogMetadata{TotalCommits: 99, Contributors: 99, BreakingChanges: 7, Features: 0, BugFixes: 0, Confidence: 0.1},
	}
}

func validRequest() GenerationRequest {
	return GenerationRequest{
		RepoOwner: "acme",
		RepoName:  "widgets",
		Branch:    "main",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 7, 23, 59, 59, 0, time.UTC),
	}
}

func waitForTerminal(t *testing.T, svc *GenerationService, id string) *models.GenerationRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		record, err := svc.GetGeneration(id)
		if err != nil {
			t.Fatalf("polling failed: %v", err)
		}
		if record.Status.Terminal() {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("generation never reached a terminal state")
	return nil
}

// --- tests ---

func TestStartGeneration_InitialState(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{commits: threeCommits()}, &fakeAI{analyses: threeAnalyses(), content: sampleContent()})

	first, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)
	assert.Equal(t, models.GenerationProcessing, first.Status)
	assert.Equal(t, 0, first.Progress)
	assert.NotEmpty(t, first.ID)

	second, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestStartGeneration_InputValidation(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{}, &fakeAI{})

	req := validRequest()
	req.StartDate = req.EndDate.Add(time.Hour)
	_, err := svc.StartGeneration("user1", req)
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	req = validRequest()
	req.RepoName = ""
	_, err = svc.StartGeneration("user1", req)
	assert.ErrorIs(t, err, ErrMissingRepository)

	// No record is created for rejected requests
	var count int64
	db.Model(&models.GenerationRecord{}).Where("repo_name = ?", "").Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGeneration_CompletedPath(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{commits: threeCommits()}, &fakeAI{analyses: threeAnalyses(), content: sampleContent()})

	record, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)

	final := waitForTerminal(t, svc, record.ID)
	assert.Equal(t, models.GenerationCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Len(t, final.CommitAnalyses, 3)

	// Metadata is a recount over the analyses, not the model's claims
	assert.NotNil(t, final.GeneratedContent)
	meta := final.GeneratedContent.Metadata
	assert.Equal(t, 3, meta.TotalCommits)
	assert.Equal(t, 2, meta.Contributors)
	assert.Equal(t, 0, meta.BreakingChanges)
	assert.Equal(t, 1, meta.Features)
	assert.Equal(t, 2, meta.BugFixes)
	assert.InDelta(t, 0.8, meta.Confidence, 0.001)

	assert.NotNil(t, final.AIMetadata)
	assert.Equal(t, 300, final.AIMetadata.PromptTokens)
	assert.Equal(t, 130, final.AIMetadata.CompletionTokens)
}

func TestGeneration_ProgressIsMonotonic(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db,
		&fakeFetcher{commits: threeCommits(), delay: 30 * time.Millisecond},
		&fakeAI{analyses: threeAnalyses(), content: sampleContent(), delay: 30 * time.Millisecond})

	record, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)

	last := -1
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snapshot, err := svc.GetGeneration(record.ID)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, snapshot.Progress, last)
		last = snapshot.Progress
		if snapshot.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 100, last)
}

func TestGeneration_ZeroCommitsFails(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{commits: nil}, &fakeAI{analyses: threeAnalyses(), content: sampleContent()})

	record, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)

	final := waitForTerminal(t, svc, record.ID)
	assert.Equal(t, models.GenerationFailed, final.Status)
	assert.Nil(t, final.GeneratedContent)
}

func TestGeneration_FetchErrorFails(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{err: errors.New("github unreachable")}, &fakeAI{})

	record, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)

	final := waitForTerminal(t, svc, record.ID)
	assert.Equal(t, models.GenerationFailed, final.Status)
}

func TestGeneration_SynthesisErrorPreservesAnalyses(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db,
		&fakeFetcher{commits: threeCommits()},
		&fakeAI{analyses: threeAnalyses(), synthErr: errors.New("model output unparseable")})

	record, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)

	final := waitForTerminal(t, svc, record.ID)
	assert.Equal(t, models.GenerationFailed, final.Status)
	assert.Nil(t, final.GeneratedContent)
	// Analyses collected before the failure stay on the record for diagnostics
	assert.Len(t, final.CommitAnalyses, 3)
}

func TestGeneration_TerminalStateIsImmutable(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{commits: threeCommits()}, &fakeAI{analyses: threeAnalyses(), content: sampleContent()})

	record, err := svc.StartGeneration("user1", validRequest())
	assert.NoError(t, err)
	waitForTerminal(t, svc, record.ID)

	// Late writes from a stale pipeline must be dropped
	svc.setProgress(record.ID, 10)
	svc.markFailed(record.ID)

	final, err := svc.GetGeneration(record.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.GenerationCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
}

func TestGetGeneration_NotFound(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{}, &fakeAI{})

	_, err := svc.GetGeneration("does-not-exist")
	assert.ErrorIs(t, err, ErrGenerationNotFound)
}

func TestListGenerations_ScopedToUser(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewGenerationService(db, &fakeFetcher{commits: threeCommits()}, &fakeAI{analyses: threeAnalyses(), content: sampleContent()})

	mine, err := svc.StartGeneration("list-owner", validRequest())
	assert.NoError(t, err)
	_, err = svc.StartGeneration("someone-else", validRequest())
	assert.NoError(t, err)

	records, err := svc.ListGenerations("list-owner", 50)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, mine.ID, records[0].ID)
}
