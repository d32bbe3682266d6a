package models

import (
	"time"

	"gorm.io/gorm"
)

// ReadCheckpoint tracks how far a participant has read in a discussion.
//
// Three valid states:
//   - LastMessageReadID and ReadAt both nil: the user never opened the
//     discussion.
//   - LastMessageReadID nil, ReadAt set: the user opened the discussion but
//     there was nothing to read.
//   - both set: the user read up to LastMessageRead at ReadAt. ReadAt is
//     never before the referenced message's creation time.
type ReadCheckpoint struct {
	gorm.Model
	DiscussionID      uint  `gorm:"not null;uniqueIndex:idx_checkpoints_discussion_user,priority:1"`
	UserID            uint  `gorm:"not null;uniqueIndex:idx_checkpoints_discussion_user,priority:2"`
	LastMessageReadID *uint `gorm:"index"`
	ReadAt            *time.Time

	Discussion      Discussion `gorm:"foreignKey:DiscussionID"`
	LastMessageRead *Message   `gorm:"foreignKey:LastMessageReadID"`
}
