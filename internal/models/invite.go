package models

import "gorm.io/gorm"

// Invite is a shareable code its creator hands to a specific person to
// start a discussion on a debate, bypassing matchmaking.
type Invite struct {
	gorm.Model
	Code      string `gorm:"size:32;unique;not null"`
	CreatorID uint   `gorm:"not null;index"`
	DebateID  uint   `gorm:"not null;index"`

	Creator User   `gorm:"foreignKey:CreatorID"`
	Debate  Debate `gorm:"foreignKey:DebateID"`
}

// InviteUse records one acceptance of an invite and the discussion it
// produced. A user can accept a given invite at most once.
type InviteUse struct {
	gorm.Model
	InviteID     uint `gorm:"not null;uniqueIndex:idx_invite_uses_invite_user,priority:1"`
	UserID       uint `gorm:"not null;uniqueIndex:idx_invite_uses_invite_user,priority:2"`
	DiscussionID uint `gorm:"not null;index"`

	Invite     Invite     `gorm:"foreignKey:InviteID"`
	User       User       `gorm:"foreignKey:UserID"`
	Discussion Discussion `gorm:"foreignKey:DiscussionID"`
}
