package engine

import (
	"sync"
	"time"
)

// FollowUpWindow is how long after an agent reply a user message can still
// count as a follow-up. Enforced by the engine, not by the tracker.
const FollowUpWindow = 120 * time.Second

// ThreadTracker remembers the single most recent agent reply per
// (group, user) pair. It is a latest-value cache: entries are overwritten,
// never expired, and never returned for pairs that got no reply.
type ThreadTracker struct {
	mu      sync.RWMutex
	threads map[string]ThreadState
}

// NewThreadTracker creates an empty tracker.
func NewThreadTracker() *ThreadTracker {
	return &ThreadTracker{threads: make(map[string]ThreadState)}
}

func threadKey(groupID, userID string) string {
	return groupID + "_" + userID
}

// Record stores or overwrites the latest reply sent to (group, user).
func (t *ThreadTracker) Record(groupID, userID, replyText string, at time.Time) {
	if groupID == "" || userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threads[threadKey(groupID, userID)] = ThreadState{
		GroupID:       groupID,
		UserID:        userID,
		LastReplyText: replyText,
		LastReplyAt:   at,
	}
}

// Lookup returns the stored state for (group, user). The second return is
// false when the pair never received a reply.
func (t *ThreadTracker) Lookup(groupID, userID string) (ThreadState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.threads[threadKey(groupID, userID)]
	return ts, ok
}
