package engine

import (
	"sync"
	"time"
)

// ContextHorizon is the maximum age of an event kept in the store.
const ContextHorizon = 300 * time.Second

// ContextStore keeps a per-group rolling log of recent conversation events.
// Events keep arrival order within a group; there is no ordering guarantee
// across groups. Any read or write drops entries older than ContextHorizon.
type ContextStore struct {
	mu     sync.RWMutex
	groups map[string]*groupLog
	now    func() time.Time
}

type groupLog struct {
	mu     sync.Mutex
	events []ContextEvent
}

// NewContextStore creates an empty store.
func NewContextStore() *ContextStore {
	return &ContextStore{
		groups: make(map[string]*groupLog),
		now:    time.Now,
	}
}

func (s *ContextStore) group(groupID string) *groupLog {
	s.mu.RLock()
	g := s.groups[groupID]
	s.mu.RUnlock()
	if g != nil {
		return g
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g = s.groups[groupID]; g != nil {
		return g
	}
	g = &groupLog{}
	s.groups[groupID] = g
	return g
}

// Append inserts an event at the tail of its group's log.
func (s *ContextStore) Append(ev ContextEvent) {
	if ev.GroupID == "" {
		return
	}
	g := s.group(ev.GroupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, ev)
	g.evict(s.now())
}

// Recent returns a copy of the group's events inside the horizon, oldest
// first. Returns nil for an unknown group.
func (s *ContextStore) Recent(groupID string) []ContextEvent {
	s.mu.RLock()
	g := s.groups[groupID]
	s.mu.RUnlock()
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(s.now())
	if len(g.events) == 0 {
		return nil
	}
	out := make([]ContextEvent, len(g.events))
	copy(out, g.events)
	return out
}

// LastAgentReply returns the newest KindAgentReply event in the group, if
// one is still inside the horizon.
func (s *ContextStore) LastAgentReply(groupID string) (ContextEvent, bool) {
	s.mu.RLock()
	g := s.groups[groupID]
	s.mu.RUnlock()
	if g == nil {
		return ContextEvent{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(s.now())
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].Kind == KindAgentReply {
			return g.events[i], true
		}
	}
	return ContextEvent{}, false
}

// evict drops events older than the horizon. Caller holds g.mu.
func (g *groupLog) evict(now time.Time) {
	cutoff := now.Add(-ContextHorizon)
	i := 0
	for i < len(g.events) && !g.events[i].At.After(cutoff) {
		i++
	}
	if i > 0 {
		g.events = append(g.events[:0], g.events[i:]...)
	}
}
