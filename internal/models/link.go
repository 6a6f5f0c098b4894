package models

import (
	"time"

	"gorm.io/gorm"
)

// Link is a user-shared URL enriched with Open Graph metadata fetched at
// creation time. Metadata fields stay empty when the fetch fails.
type Link struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	User        User           `gorm:"foreignKey:UserID" json:"user"`
	URL         string         `gorm:"not null" json:"url"`
	Title       string         `json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	OGImage     string         `json:"og_image"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
