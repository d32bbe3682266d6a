package pairing

import (
	"errors"
	"fmt"
	"log"
	"time"

	"opendebate/backend/internal/discussion"
	"opendebate/backend/internal/hub"
	"opendebate/backend/internal/models"
	"opendebate/backend/internal/notification"
	"opendebate/backend/pkg/apperrors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GraceWindow is the delay between match-found and match-completion during
// which either party may still back out.
const GraceWindow = 3500 * time.Millisecond

// Service is the matchmaking core: it owns the PairingRequest state
// machine, the active search path and the grace-window completion.
// PairingRequest rows are the single source of truth and the sole lock
// boundary; every transition touching more than one request runs in one
// transaction holding SELECT ... FOR UPDATE locks on all rows involved.
type Service struct {
	db            *gorm.DB
	hub           *hub.Hub
	discussions   *discussion.Service
	notifications *notification.Service
	timers        *completionTimers

	expiry      time.Duration
	graceWindow time.Duration
}

func NewService(db *gorm.DB, h *hub.Hub, discussions *discussion.Service, notifications *notification.Service, expiry time.Duration) *Service {
	return &Service{
		db:            db,
		hub:           h,
		discussions:   discussions,
		notifications: notifications,
		timers:        newCompletionTimers(),
		expiry:        expiry,
		graceWindow:   GraceWindow,
	}
}

// CreateRequest files a new pairing request for the user. The user must
// hold a stance on the debate and must not already have a live request.
func (s *Service) CreateRequest(userID, debateID uint, desiredStance bool, passive bool) (*models.PairingRequest, error) {
	var debate models.Debate
	if err := s.db.First(&debate, debateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrDebateNotFound
		}
		return nil, err
	}

	status := models.PairingStatusIdle
	if passive {
		status = models.PairingStatusPassive
	}

	request := models.PairingRequest{
		UserID:        userID,
		DebateID:      debateID,
		DesiredStance: desiredStance,
		Status:        status,
		LastKeepalive: time.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, held, err := stanceOf(tx, userID, debateID); err != nil {
			return err
		} else if !held {
			return apperrors.ErrStanceRequired
		}

		existing, err := anyCurrentRequest(tx, userID, true, s.expiry)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.ErrRequestExists
		}

		// An expired ACTIVE request is dead but its row still occupies the
		// one-live-request index slot. Clear it before inserting.
		if err := tx.Where(
			"user_id = ? AND status = ? AND last_keepalive < ?",
			userID, models.PairingStatusActive, time.Now().Add(-s.expiry),
		).Delete(&models.PairingRequest{}).Error; err != nil {
			return err
		}

		if err := tx.Create(&request).Error; err != nil {
			// Two concurrent creates both see no existing row; the partial
			// unique index rejects whichever insert commits second.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrRequestExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.Publish(hub.StreamPairing, userID, hub.Success("request_pairing", map[string]interface{}{
		"pairing_request_id": request.ID,
		"debate_id":          debate.ID,
		"debate_title":       debate.Title,
		"status":             request.Status,
	}))

	return &request, nil
}

// StartActiveSearch switches the caller's IDLE request to ACTIVE and
// immediately looks for a compatible ACTIVE counterpart. Locking the
// caller's row, switching it and locking the candidate all happen in one
// transaction, so two concurrent searches can create at most one match
// between the same pair of requests.
func (s *Service) StartActiveSearch(userID uint) error {
	var (
		request *models.PairingRequest
		matched *models.PairingRequest
		match   models.PairingMatch
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = currentRequest(tx, userID, true, s.expiry)
		if err != nil {
			return err
		}
		if request == nil {
			return apperrors.ErrNoCurrentRequest
		}
		if request.Status != models.PairingStatusIdle {
			return apperrors.ErrNotIdle
		}

		request.Status = models.PairingStatusActive
		request.LastKeepalive = time.Now()
		if err := tx.Save(request).Error; err != nil {
			return err
		}

		stance, held, err := stanceOf(tx, userID, request.DebateID)
		if err != nil {
			return err
		}
		if !held {
			return apperrors.ErrStanceRequired
		}

		matched, err = bestMatch(tx, request, stance, s.expiry)
		if err != nil || matched == nil {
			return err
		}

		if err := tx.Model(&models.PairingRequest{}).
			Where("id IN ?", []uint{request.ID, matched.ID}).
			Update("status", models.PairingStatusMatchFound).Error; err != nil {
			return err
		}

		match = models.PairingMatch{Request1ID: request.ID, Request2ID: matched.ID}
		return tx.Create(&match).Error
	})
	if err != nil {
		return err
	}

	if matched == nil {
		// Caller stays ACTIVE, awaiting a passive batch match or a future
		// active search from someone else.
		s.hub.Publish(hub.StreamPairing, userID, hub.Success("start_search", nil))
		return nil
	}

	for _, uid := range []uint{request.UserID, matched.UserID} {
		s.hub.Publish(hub.StreamPairing, uid, hub.Success("match_found", nil))
	}

	matchID := match.ID
	s.timers.Schedule(matchID, s.graceWindow, func() {
		s.completeActiveMatch(matchID)
	})

	return nil
}

// Keepalive refreshes the liveness timestamp of the caller's request.
func (s *Service) Keepalive(userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		request, err := currentRequest(tx, userID, true, s.expiry)
		if err != nil {
			return err
		}
		if request == nil {
			return apperrors.ErrNoCurrentRequest
		}
		request.LastKeepalive = time.Now()
		return tx.Save(request).Error
	})
}

// Cancel tears down the caller's request. From IDLE/ACTIVE/PASSIVE it is a
// simple delete. From MATCH_FOUND it also rolls the partner back to
// ACTIVE, deletes the match and stops the pending completion timer.
//
// The race against grace-window completion resolves deterministically:
// completion wins once its transaction has observed both requests still in
// MATCH_FOUND, because a PAIRED request no longer counts as current here
// (Cancel then reports NoCurrentRequest). If Cancel's transaction commits
// first, the completer finds the match gone and backs off.
func (s *Service) Cancel(userID uint) error {
	var otherUserID uint
	var cancelledMatchID uint

	err := s.db.Transaction(func(tx *gorm.DB) error {
		request, err := anyCurrentRequest(tx, userID, true, s.expiry)
		if err != nil {
			return err
		}
		if request == nil {
			return apperrors.ErrNoCurrentRequest
		}

		switch request.Status {
		case models.PairingStatusIdle, models.PairingStatusActive, models.PairingStatusPassive:
			return tx.Delete(request).Error

		case models.PairingStatusMatchFound:
			match, err := matchForRequest(tx, request.ID)
			if err != nil {
				return err
			}
			if match == nil {
				// The match disappeared under us. Recover the request to
				// ACTIVE rather than leaving it stuck in MATCH_FOUND.
				log.Printf("pairing: request %d in MATCH_FOUND without a match, recovering", request.ID)
				request.Status = models.PairingStatusActive
				return tx.Save(request).Error
			}

			cancelledMatchID = match.ID

			otherID := match.OtherRequestID(request.ID)
			var other models.PairingRequest
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&other, otherID).Error; err != nil {
				return err
			}

			// The partner came from an active search: a passive request
			// pairs without passing through MATCH_FOUND.
			other.Status = models.PairingStatusActive
			other.LastKeepalive = time.Now()
			if err := tx.Save(&other).Error; err != nil {
				return err
			}
			otherUserID = other.UserID

			if err := tx.Delete(match).Error; err != nil {
				return err
			}
			return tx.Delete(request).Error

		default:
			return apperrors.ErrNotCancellable
		}
	})
	if err != nil {
		return err
	}

	// Stop the completion timer only after the rollback of the match has
	// committed. Stopping inside the transaction would disarm the timer
	// even when the transaction later aborts, stranding the pair in
	// MATCH_FOUND with nothing left to complete it.
	if cancelledMatchID != 0 {
		s.timers.Stop(cancelledMatchID)
	}

	s.hub.Publish(hub.StreamPairing, userID, hub.Success("cancel", map[string]interface{}{
		"from_current_user": true,
	}))
	if otherUserID != 0 {
		s.hub.Publish(hub.StreamPairing, otherUserID, hub.Success("cancel", map[string]interface{}{
			"from_current_user": false,
		}))
	}

	return nil
}

// completeActiveMatch fires after the grace window: it marks both requests
// PAIRED, creates the discussion and redirects both participants into it.
// A stale match (cancelled or already completed) is a logged no-op.
func (s *Service) completeActiveMatch(matchID uint) {
	disc, match, err := s.completeMatch(matchID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeStaleReference {
			log.Printf("pairing: skipping completion of match %d: %v", matchID, err)
		} else {
			log.Printf("pairing: failed to complete match %d: %v", matchID, err)
		}
		return
	}

	url := fmt.Sprintf("/discussions/%d", disc.ID)
	for _, uid := range []uint{match.Request1.UserID, match.Request2.UserID} {
		s.hub.Publish(hub.StreamPairing, uid, hub.Success("redirect", map[string]interface{}{
			"url": url,
		}))
	}
}

// completeMatch atomically transitions a MATCH_FOUND pair to PAIRED and
// creates the discussion with its read checkpoints. It re-validates the
// whole state under row locks at fire time: if the match is gone, already
// completed, or either request has left MATCH_FOUND, it returns
// ErrStaleMatch and mutates nothing.
func (s *Service) completeMatch(matchID uint) (*models.Discussion, *models.PairingMatch, error) {
	var (
		disc  *models.Discussion
		match models.PairingMatch
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&match, matchID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrStaleMatch
			}
			return err
		}
		if match.DiscussionID != nil {
			return apperrors.ErrStaleMatch
		}

		var req1, req2 models.PairingRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&req1, match.Request1ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrStaleMatch
			}
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&req2, match.Request2ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrStaleMatch
			}
			return err
		}
		if req1.Status != models.PairingStatusMatchFound || req2.Status != models.PairingStatusMatchFound {
			return apperrors.ErrStaleMatch
		}

		if err := tx.Model(&models.PairingRequest{}).
			Where("id IN ?", []uint{req1.ID, req2.ID}).
			Update("status", models.PairingStatusPaired).Error; err != nil {
			return err
		}

		disc, err = s.discussions.CreateDiscussionAndReadCheckpoints(tx, req1.DebateID, req1.UserID, req2.UserID)
		if err != nil {
			return err
		}

		if err := tx.Model(&match).Update("discussion_id", disc.ID).Error; err != nil {
			return err
		}

		req1.Status = models.PairingStatusPaired
		req2.Status = models.PairingStatusPaired
		match.Request1 = req1
		match.Request2 = req2
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return disc, &match, nil
}
