package models

import "gorm.io/gorm"

// Notification is a durable notification for a user. RedirectURL points at
// the object the notification is about, if any.
type Notification struct {
	gorm.Model
	UserID      uint   `gorm:"not null;index"`
	Message     string `gorm:"not null"`
	Read        bool   `gorm:"not null;default:false"`
	RedirectURL string `gorm:"size:512"`

	User User `gorm:"foreignKey:UserID"`
}
