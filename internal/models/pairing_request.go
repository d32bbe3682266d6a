package models

import (
	"time"

	"gorm.io/gorm"
)

// PairingStatus defines the lifecycle state of a PairingRequest.
type PairingStatus string

const (
	// PairingStatusIdle means the request exists but the user has not
	// started searching yet.
	PairingStatusIdle PairingStatus = "idle"

	// PairingStatusActive means the user is interactively searching and
	// must keep the request alive with periodic keepalive pings.
	PairingStatusActive PairingStatus = "active"

	// PairingStatusPassive means the request waits for the periodic batch
	// matcher instead of an interactive search.
	PairingStatusPassive PairingStatus = "passive"

	// PairingStatusMatchFound means a counterpart was found and the match
	// is inside its grace window; either side may still back out.
	PairingStatusMatchFound PairingStatus = "match_found"

	// PairingStatusPaired is terminal: the match completed and a
	// discussion was created.
	PairingStatusPaired PairingStatus = "paired"
)

// PairingRequest records a user's desire to debate a topic against someone
// holding the desired (opposing) stance.
//
// The partial unique index is what actually enforces "at most one live
// request per user": a row lock on a request that does not exist yet locks
// nothing, so two concurrent creates both pass the existence check and
// only the index can reject the second insert.
type PairingRequest struct {
	gorm.Model
	UserID        uint          `gorm:"not null;index;uniqueIndex:idx_pairing_requests_one_live,where:status <> 'paired' AND deleted_at IS NULL"`
	DebateID      uint          `gorm:"not null;index"`
	DesiredStance bool          `gorm:"not null"`
	Status        PairingStatus `gorm:"size:25;not null;default:'idle';index"`

	// LastKeepalive does not refresh on save; the client must ping.
	LastKeepalive time.Time `gorm:"not null"`

	User   User   `gorm:"foreignKey:UserID"`
	Debate Debate `gorm:"foreignKey:DebateID"`
}

// IsExpired reports whether the request is too stale to be matched. Only
// ACTIVE requests expire; idle and passive requests have no keepalive duty.
func (r *PairingRequest) IsExpired(expiry time.Duration, now time.Time) bool {
	return r.Status == PairingStatusActive && now.Sub(r.LastKeepalive) > expiry
}
