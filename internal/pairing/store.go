package pairing

import (
	"errors"
	"time"

	"opendebate/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// notExpired excludes rows that stopped receiving keepalive pings. Only
// ACTIVE requests carry a keepalive duty; idle/passive/match_found rows
// never expire. Expired requests stay in the table but are invisible to
// every matching query.
func notExpired(db *gorm.DB, expiry time.Duration) *gorm.DB {
	cutoff := time.Now().Add(-expiry)
	return db.Where("NOT (pairing_requests.status = ? AND pairing_requests.last_keepalive < ?)",
		models.PairingStatusActive, cutoff)
}

// currentRequest returns the user's current (idle/active/match_found,
// non-expired) request, or nil. With forUpdate set the row is locked for
// the duration of the surrounding transaction; every mutating operation
// goes through that lock.
func currentRequest(tx *gorm.DB, userID uint, forUpdate bool, expiry time.Duration) (*models.PairingRequest, error) {
	query := tx.Where("pairing_requests.user_id = ?", userID).
		Where("pairing_requests.status IN ?", []models.PairingStatus{
			models.PairingStatusActive,
			models.PairingStatusIdle,
			models.PairingStatusMatchFound,
		})
	query = notExpired(query, expiry)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var request models.PairingRequest
	if err := query.First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// anyCurrentRequest is like currentRequest but also counts PASSIVE rows,
// for the at-most-one-request-per-user invariant on creation.
func anyCurrentRequest(tx *gorm.DB, userID uint, forUpdate bool, expiry time.Duration) (*models.PairingRequest, error) {
	query := tx.Where("pairing_requests.user_id = ?", userID).
		Where("pairing_requests.status <> ?", models.PairingStatusPaired)
	query = notExpired(query, expiry)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var request models.PairingRequest
	if err := query.First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// bestMatch finds the earliest-created compatible counterpart for an
// ACTIVE request and locks it. Compatibility is symmetric and mutual: the
// candidate's own stance must equal the caller's desired stance, and the
// candidate's desired stance must equal the caller's own stance.
func bestMatch(tx *gorm.DB, request *models.PairingRequest, callerStance bool, expiry time.Duration) (*models.PairingRequest, error) {
	query := tx.
		Joins("JOIN stances ON stances.user_id = pairing_requests.user_id AND stances.debate_id = pairing_requests.debate_id").
		Where("pairing_requests.debate_id = ?", request.DebateID).
		Where("pairing_requests.status = ?", models.PairingStatusActive).
		Where("pairing_requests.user_id <> ?", request.UserID).
		Where("stances.stance = ?", request.DesiredStance).
		Where("pairing_requests.desired_stance = ?", callerStance)
	query = notExpired(query, expiry)

	var match models.PairingRequest
	err := query.Order("pairing_requests.created_at ASC").
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "pairing_requests"}}).
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &match, nil
}

// matchForRequest finds the PairingMatch owning a request, locked.
func matchForRequest(tx *gorm.DB, requestID uint) (*models.PairingMatch, error) {
	var match models.PairingMatch
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request1_id = ? OR request2_id = ?", requestID, requestID).
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &match, nil
}

// stanceOf returns the user's stance on a debate.
func stanceOf(tx *gorm.DB, userID, debateID uint) (bool, bool, error) {
	var stance models.Stance
	err := tx.Where("user_id = ? AND debate_id = ?", userID, debateID).First(&stance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return stance.Stance, true, nil
}
