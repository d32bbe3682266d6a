package pairing

import (
	"log"
	"time"

	"opendebate/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PassiveGracePeriod is how long a passive request must age before the
// batch matcher considers it. The delay accumulates pool depth so matches
// come out of a deeper pool instead of greedily pairing the first two
// arrivals.
const PassiveGracePeriod = 5 * time.Minute

// PassiveInterval is how often the batch matcher runs.
const PassiveInterval = 2 * time.Minute

// passiveRequest is a pairing request annotated with its owner's stance on
// the debate, resolved at batch time.
type passiveRequest struct {
	models.PairingRequest
	UserStance bool
}

// quadrant keys the four FIFO queues of the batch matcher: what the queued
// request's owner wants to debate against, and what they themselves are.
type quadrant struct {
	wants bool
	is    bool
}

// pairPassiveBatch runs the greedy streaming pairing over requests already
// ordered by creation time. For each request it checks the queue holding
// compatible earlier arrivals: if non-empty, the oldest is popped and
// paired (first come, first served); otherwise the request is queued in
// its own quadrant to await a later compatible arrival within this batch.
// A failed pair puts the popped counterpart back at the head of its queue
// and the batch moves on.
func pairPassiveBatch(requests []passiveRequest, pair func(a, b *passiveRequest) error) int {
	queues := make(map[quadrant][]*passiveRequest)

	paired := 0
	for i := range requests {
		request := &requests[i]

		// The counterpart must be what this request wants, and must want
		// what this request is.
		counterpartKey := quadrant{wants: request.UserStance, is: request.DesiredStance}
		queue := queues[counterpartKey]

		if len(queue) == 0 {
			ownKey := quadrant{wants: request.DesiredStance, is: request.UserStance}
			queues[ownKey] = append(queues[ownKey], request)
			continue
		}

		oldest := queue[0]
		queues[counterpartKey] = queue[1:]

		if err := pair(request, oldest); err != nil {
			log.Printf("pairing: passive pair of requests %d and %d failed: %v", request.ID, oldest.ID, err)
			queues[counterpartKey] = append([]*passiveRequest{oldest}, queues[counterpartKey]...)
			continue
		}
		paired++
	}

	return paired
}

// completedPair records a pairing made by the batch so the announcements
// can go out after the transaction commits.
type completedPair struct {
	discussion models.Discussion
	user1ID    uint
	user2ID    uint
}

// RunPassiveBatch pairs aged passive requests across all debates. Each
// debate runs in its own transaction; a failing debate is logged and
// skipped, never aborting the whole run.
func (s *Service) RunPassiveBatch() {
	cutoff := time.Now().Add(-PassiveGracePeriod)

	var debateIDs []uint
	err := s.db.Model(&models.PairingRequest{}).
		Where("status = ? AND created_at <= ?", models.PairingStatusPassive, cutoff).
		Distinct().
		Pluck("debate_id", &debateIDs).Error
	if err != nil {
		log.Printf("pairing: passive batch: failed to list debates: %v", err)
		return
	}

	if len(debateIDs) == 0 {
		return
	}
	log.Printf("pairing: passive batch: %d debate(s) with aged passive requests", len(debateIDs))

	for _, debateID := range debateIDs {
		completed, err := s.pairPassiveDebate(debateID, cutoff)
		if err != nil {
			log.Printf("pairing: passive batch: debate %d failed: %v", debateID, err)
			continue
		}
		if len(completed) > 0 {
			log.Printf("pairing: passive batch: paired %d request(s) in debate %d", 2*len(completed), debateID)
			s.announcePassivePairs(debateID, completed)
		}
	}
}

// pairPassiveDebate locks all eligible passive requests of one debate in
// creation order and pairs them. Each pair completes in a savepoint, so a
// transient failure leaves only those two requests unpaired for the next
// run.
func (s *Service) pairPassiveDebate(debateID uint, cutoff time.Time) ([]completedPair, error) {
	var completed []completedPair

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var requests []models.PairingRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("debate_id = ? AND status = ? AND created_at <= ?",
				debateID, models.PairingStatusPassive, cutoff).
			Order("created_at ASC").
			Find(&requests).Error
		if err != nil {
			return err
		}
		if len(requests) < 2 {
			return nil
		}

		userIDs := make([]uint, 0, len(requests))
		for _, r := range requests {
			userIDs = append(userIDs, r.UserID)
		}

		var stances []models.Stance
		if err := tx.Where("debate_id = ? AND user_id IN ?", debateID, userIDs).
			Find(&stances).Error; err != nil {
			return err
		}
		stanceByUser := make(map[uint]bool, len(stances))
		for _, st := range stances {
			stanceByUser[st.UserID] = st.Stance
		}

		eligible := make([]passiveRequest, 0, len(requests))
		for _, r := range requests {
			stance, ok := stanceByUser[r.UserID]
			if !ok {
				log.Printf("pairing: passive request %d has no stance on debate %d, skipping", r.ID, debateID)
				continue
			}
			eligible = append(eligible, passiveRequest{PairingRequest: r, UserStance: stance})
		}

		pairPassiveBatch(eligible, func(a, b *passiveRequest) error {
			return tx.Transaction(func(ptx *gorm.DB) error {
				disc, err := s.createAndCompleteMatch(ptx, &a.PairingRequest, &b.PairingRequest)
				if err != nil {
					return err
				}
				completed = append(completed, completedPair{
					discussion: *disc,
					user1ID:    a.UserID,
					user2ID:    b.UserID,
				})
				return nil
			})
		})

		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// createAndCompleteMatch creates a PairingMatch for two locked requests
// and completes it immediately: the batch path has no grace window.
func (s *Service) createAndCompleteMatch(tx *gorm.DB, r1, r2 *models.PairingRequest) (*models.Discussion, error) {
	if err := tx.Model(&models.PairingRequest{}).
		Where("id IN ?", []uint{r1.ID, r2.ID}).
		Update("status", models.PairingStatusMatchFound).Error; err != nil {
		return nil, err
	}

	match := models.PairingMatch{Request1ID: r1.ID, Request2ID: r2.ID}
	if err := tx.Create(&match).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&models.PairingRequest{}).
		Where("id IN ?", []uint{r1.ID, r2.ID}).
		Update("status", models.PairingStatusPaired).Error; err != nil {
		return nil, err
	}

	disc, err := s.discussions.CreateDiscussionAndReadCheckpoints(tx, r1.DebateID, r1.UserID, r2.UserID)
	if err != nil {
		return nil, err
	}

	return disc, tx.Model(&match).Update("discussion_id", disc.ID).Error
}

// announcePassivePairs fans out the post-commit side effects of a batch:
// the live discussion-list push and a durable notification per
// participant.
func (s *Service) announcePassivePairs(debateID uint, completed []completedPair) {
	var debate models.Debate
	if err := s.db.First(&debate, debateID).Error; err != nil {
		log.Printf("pairing: passive batch: failed to load debate %d for notifications: %v", debateID, err)
		return
	}

	for _, pair := range completed {
		discussion := pair.discussion
		s.discussions.NotifyNewDiscussionLive(&discussion)

		// Each participant is notified independently: the pairing is
		// already committed, so a failure to resolve or notify one side
		// must not silence the other.
		recipients := []struct {
			userID    uint
			partnerID uint
		}{
			{pair.user1ID, pair.user2ID},
			{pair.user2ID, pair.user1ID},
		}
		for _, r := range recipients {
			partnerName := "another debater"
			var partner models.User
			if err := s.db.First(&partner, r.partnerID).Error; err != nil {
				log.Printf("pairing: passive batch: failed to load user %d: %v", r.partnerID, err)
			} else {
				partnerName = partner.Nickname
			}
			if _, err := s.notifications.CreateNewDiscussion(r.userID, partnerName, debate.Title, discussion.ID); err != nil {
				log.Printf("pairing: passive batch: notification for user %d failed: %v", r.userID, err)
			}
		}
	}
}

// StartPassiveLoop runs the batch matcher on a fixed interval until stop
// is closed.
func (s *Service) StartPassiveLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(PassiveInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunPassiveBatch()
			case <-stop:
				return
			}
		}
	}()
}
