package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a chat message within a discussion. Messages are append-only
// and ordered by creation time.
type Message struct {
	ID           uint      `gorm:"primaryKey"`
	DiscussionID uint      `gorm:"not null;index:idx_messages_discussion_created,priority:1"`
	AuthorID     uint      `gorm:"not null"`
	Text         string    `gorm:"size:5000;not null"`
	CreatedAt    time.Time `gorm:"index:idx_messages_discussion_created,priority:2"`
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`

	Author User `gorm:"foreignKey:AuthorID"`
}
