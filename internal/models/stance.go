package models

import "time"

// Stance is a user's boolean position on a debate: true is "for",
// false is "against". A user holds at most one stance per debate.
// The primary key is a composite of (UserID, DebateID) to ensure uniqueness.
type Stance struct {
	UserID    uint `gorm:"primaryKey"`
	DebateID  uint `gorm:"primaryKey"`
	Stance    bool `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User   User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Debate Debate `gorm:"foreignKey:DebateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
