package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a feed entry. Posts are ordered newest-first by default.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
	// Image is the stored path of the uploaded image, empty when the post is text-only.
	Image string `json:"image,omitempty"`
	// Thumbnail is the derived ≤300×300 copy, named thumb_<basename> next to the source.
	Thumbnail string `json:"thumbnail,omitempty"`
	Views     uint   `gorm:"not null;default:0" json:"views"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	User      User   `gorm:"foreignKey:UserID" json:"user"`
	// LikeCount is not persisted; computed at query time.
	LikeCount int `gorm:"->" json:"like_count"`
	// Liked indicates whether the current requesting user liked this post (computed).
	Liked     bool           `gorm:"->" json:"liked"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Comments []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}
