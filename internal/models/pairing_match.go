package models

import "gorm.io/gorm"

// PairingMatch pairs two PairingRequests. It owns both requests exclusively;
// DiscussionID is set exactly when the match completes and both requests
// transition to PAIRED.
type PairingMatch struct {
	gorm.Model
	Request1ID   uint  `gorm:"not null;uniqueIndex"`
	Request2ID   uint  `gorm:"not null;uniqueIndex"`
	DiscussionID *uint `gorm:"index"`

	Request1   PairingRequest `gorm:"foreignKey:Request1ID;constraint:OnDelete:CASCADE;"`
	Request2   PairingRequest `gorm:"foreignKey:Request2ID;constraint:OnDelete:CASCADE;"`
	Discussion *Discussion    `gorm:"foreignKey:DiscussionID"`
}

// OtherRequestID returns the request on the opposite side of the match,
// or 0 if the given request does not belong to this match.
func (m *PairingMatch) OtherRequestID(requestID uint) uint {
	switch requestID {
	case m.Request1ID:
		return m.Request2ID
	case m.Request2ID:
		return m.Request1ID
	}
	return 0
}
