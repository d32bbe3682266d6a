package pairing

import (
	"sync"
	"time"
)

// completionTimers tracks the cancellable grace-window timer of each
// in-flight match. Stopping the timer is only the fast path for
// cancellation; the completer independently re-validates the match status
// at fire time, so a timer that slips through is still harmless.
type completionTimers struct {
	mu     sync.Mutex
	timers map[uint]*time.Timer
}

func newCompletionTimers() *completionTimers {
	return &completionTimers{timers: make(map[uint]*time.Timer)}
}

// Schedule arms a timer for the match. fn runs in its own goroutine after
// the delay, once the timer has been removed from the registry.
func (t *completionTimers) Schedule(matchID uint, delay time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timers[matchID] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, matchID)
		t.mu.Unlock()
		fn()
	})
}

// Stop cancels the pending timer for a match if it has not fired yet.
// Returns false when there was nothing left to stop.
func (t *completionTimers) Stop(matchID uint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[matchID]
	if !ok {
		return false
	}
	delete(t.timers, matchID)
	return timer.Stop()
}
