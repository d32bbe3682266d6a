package models

import "gorm.io/gorm"

// Debate represents a debate topic users can take a stance on.
type Debate struct {
	gorm.Model
	Title       string `gorm:"size:255;not null"`
	Slug        string `gorm:"size:255;unique;not null"`
	Description string
}
