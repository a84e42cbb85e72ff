package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type GenerationStatus string

const (
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s GenerationStatus) Terminal() bool {
	return s == GenerationCompleted || s == GenerationFailed
}

// Commit categories assigned by the analysis stage
const (
	ChangeTypeFeature     = "feature"
	ChangeTypeFix         = "fix"
	ChangeTypeBreaking    = "breaking"
	ChangeTypeImprovement = "improvement"
	ChangeTypeDocs        = "docs"
	ChangeTypeRefactor    = "refactor"
	ChangeTypeSecurity    = "security"
	ChangeTypeChore       = "chore"
)

const (
	ImpactMajor = "major"
	ImpactMinor = "minor"
	ImpactPatch = "patch"
)

// CommitAnalysis is the categorized result for a single commit
type CommitAnalysis struct {
	SHA                string   `json:"sha"`
	Type               string   `json:"type"`
	Description        string   `json:"description"`
	Impact             string   `json:"impact"`
	BreakingChange     bool     `json:"breakingChange"`
	AffectedComponents []string `json:"affectedComponents"`
	UserFacing         bool     `json:"userFacing"`
	Confidence         float64  `json:"confidence"`
}

// CommitAnalysisList is stored as a single JSONB column
type CommitAnalysisList []CommitAnalysis

func (l CommitAnalysisList) Value() (driver.Value, error) {
	if l == nil {
		l = CommitAnalysisList{}
	}
	return json.Marshal(l)
}

func (l *CommitAnalysisList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// GeneratedChange is one change line inside a synthesized section
type GeneratedChange struct {
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Impact      string   `json:"impact,omitempty"`
	Breaking    bool     `json:"breaking"`
	CommitSHAs  []string `json:"commitShas,omitempty"`
}

type GeneratedSection struct {
	Title   string            `json:"title"`
	Changes []GeneratedChange `json:"changes"`
}

// ChangelogMetadata is recomputed from CommitAnalyses by the orchestrator;
// the model's self-reported counts are advisory only.
type ChangelogMetadata struct {
	TotalCommits    int     `json:"totalCommits"`
	Contributors    int     `json:"contributors"`
	BreakingChanges int     `json:"breakingChanges"`
	Features        int     `json:"features"`
	BugFixes        int     `json:"bugFixes"`
	Confidence      float64 `json:"confidence"`
}

// GeneratedChangelog is the structured payload produced by the synthesis stage
type GeneratedChangelog struct {
	Version  string             `json:"version"`
	Title    string             `json:"title"`
	Summary  string             `json:"summary"`
	Sections []GeneratedSection `json:"sections"`
	Metadata ChangelogMetadata  `json:"metadata"`
}

func (g *GeneratedChangelog) Value() (driver.Value, error) {
	if g == nil {
		return nil, nil
	}
	return json.Marshal(g)
}

func (g *GeneratedChangelog) Scan(src interface{}) error {
	return scanJSON(src, g)
}

// AIMetadata records how the content was produced
type AIMetadata struct {
	Model            string  `json:"model"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	Confidence       float64 `json:"confidence"`
	ProcessingMs     int64   `json:"processingMs"`
}

func (m *AIMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *AIMetadata) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// GenerationOptions tune the synthesis prompt. All fields are defaulted
// when omitted from the request.
type GenerationOptions struct {
	GroupBy          string `json:"groupBy"`  // type | component
	Audience         string `json:"audience"` // developers | endusers
	IncludeInternal  bool   `json:"includeInternal"`
	IncludeCommitIDs bool   `json:"includeCommitIds"`
}

func (o GenerationOptions) Value() (driver.Value, error) {
	return json.Marshal(o)
}

func (o *GenerationOptions) Scan(src interface{}) error {
	return scanJSON(src, o)
}

// GenerationRecord tracks one asynchronous changelog generation.
// Created in `processing`; mutated in place by the pipeline that owns it;
// `completed` and `failed` are terminal.
type GenerationRecord struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID    string `gorm:"index" json:"userId"`
	RepoOwner string `json:"repoOwner"`
	RepoName  string `json:"repoName"`
	Branch    string `json:"branch"`

	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	Status   GenerationStatus `gorm:"type:text;default:'processing';index" json:"status"`
	Progress int              `gorm:"default:0" json:"progress"`

	Options          GenerationOptions   `gorm:"type:jsonb" json:"options"`
	CommitAnalyses   CommitAnalysisList  `gorm:"type:jsonb" json:"commitAnalyses"`
	GeneratedContent *GeneratedChangelog `gorm:"type:jsonb" json:"generatedContent,omitempty"`
	AIMetadata       *AIMetadata         `gorm:"type:jsonb;column:ai_metadata" json:"aiMetadata,omitempty"`
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
