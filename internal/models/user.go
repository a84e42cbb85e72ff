package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Username string `gorm:"uniqueIndex" json:"username"`
	Image    string `json:"image"`

	// Enums stored as strings
	Role Role `gorm:"type:text;default:'USER'" json:"role"`

	// GitHub identity (set by OAuth). The access token is used to fetch
	// commit history on the user's behalf; it is never serialized.
	GithubLogin string `gorm:"index" json:"githubLogin"`
	GithubToken string `json:"-"`

	Password string `json:"-"`
}
