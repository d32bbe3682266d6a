package models

import "gorm.io/gorm"

// Discussion is a one-on-one debate between two participants. Each
// participant can archive it independently.
type Discussion struct {
	gorm.Model
	DebateID        uint `gorm:"not null;index"`
	Participant1ID  uint `gorm:"not null;index"`
	Participant2ID  uint `gorm:"not null;index"`
	IsArchivedForP1 bool `gorm:"not null;default:false"`
	IsArchivedForP2 bool `gorm:"not null;default:false"`

	Debate       Debate `gorm:"foreignKey:DebateID"`
	Participant1 User   `gorm:"foreignKey:Participant1ID"`
	Participant2 User   `gorm:"foreignKey:Participant2ID"`
}

// HasParticipant reports whether the user takes part in the discussion.
func (d *Discussion) HasParticipant(userID uint) bool {
	return d.Participant1ID == userID || d.Participant2ID == userID
}

// OtherParticipantID returns the participant opposite the given user, or 0
// if the user is not a participant.
func (d *Discussion) OtherParticipantID(userID uint) uint {
	switch userID {
	case d.Participant1ID:
		return d.Participant2ID
	case d.Participant2ID:
		return d.Participant1ID
	}
	return 0
}

// IsArchivedFor returns the archive flag for the given participant. The
// second return value is false if the user is not a participant.
func (d *Discussion) IsArchivedFor(userID uint) (bool, bool) {
	switch userID {
	case d.Participant1ID:
		return d.IsArchivedForP1, true
	case d.Participant2ID:
		return d.IsArchivedForP2, true
	}
	return false, false
}
