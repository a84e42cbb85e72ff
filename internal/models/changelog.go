package models

import (
	"time"

	"github.com/lib/pq"
)

type ChangelogStatus string

const (
	ChangelogDraft     ChangelogStatus = "draft"
	ChangelogReview    ChangelogStatus = "review"
	ChangelogPublished ChangelogStatus = "published"
	ChangelogArchived  ChangelogStatus = "archived"
)

// ChangelogDocument is the persisted, publishable artifact. It may reference
// the generation it was assembled from, but it is an independent copy:
// deleting the generation never affects the document.
type ChangelogDocument struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Version     string `gorm:"index" json:"version"`
	Title       string `json:"title"`
	Slug        string `gorm:"index" json:"slug"`
	Description string `gorm:"type:text" json:"description"`

	RepoOwner string `json:"repoOwner"`
	RepoName  string `json:"repoName"`
	Branch    string `json:"branch"`

	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`

	Status      ChangelogStatus `gorm:"type:text;default:'draft';index" json:"status"`
	Tags        pq.StringArray  `gorm:"type:text[]" json:"tags"`
	PublishedAt *time.Time      `gorm:"index" json:"publishedAt"`

	AIGenerationID *string `gorm:"index" json:"aiGenerationId"`
	CreatedBy      string  `json:"createdBy"`

	Sections []ChangelogSection `gorm:"foreignKey:ChangelogID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
}

type ChangelogSection struct {
	ID          string `gorm:"primaryKey;type:text" json:"id"`
	ChangelogID string `gorm:"index" json:"changelogId"`
	Title       string `json:"title"`
	Order       int    `gorm:"default:0" json:"order"`

	Changes []ChangelogChange `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"changes,omitempty"`
}

type ChangelogChange struct {
	ID          string         `gorm:"primaryKey;type:text" json:"id"`
	SectionID   string         `gorm:"index" json:"sectionId"`
	Description string         `gorm:"type:text" json:"description"`
	Type        string         `json:"type"`
	Impact      string         `json:"impact"`
	Breaking    bool           `gorm:"default:false" json:"breaking"`
	CommitSHAs  pq.StringArray `gorm:"type:text[];column:commit_shas" json:"commitShas"`
	Order       int            `gorm:"default:0" json:"order"`
}
