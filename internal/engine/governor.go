package engine

import (
	"sync"
	"time"
)

// GovernorConfig bounds how often the agent may act in one group.
type GovernorConfig struct {
	ReactionCap    int           // autonomous replies allowed per ReactionWindow
	ReactionWindow time.Duration // default 300s
	MessageCap     int           // total agent messages allowed per MessageWindow
	MessageWindow  time.Duration // default 60s
}

// DefaultGovernorConfig returns the stock limits: 10 reactions / 5 min,
// 10 outbound messages / min.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		ReactionCap:    10,
		ReactionWindow: 300 * time.Second,
		MessageCap:     10,
		MessageWindow:  60 * time.Second,
	}
}

// RateGovernor keeps per-group sliding-window counters for autonomous
// reactions and for all outbound messages. Check and record are one atomic
// step per group; different groups never contend on the same lock.
type RateGovernor struct {
	cfg    GovernorConfig
	mu     sync.RWMutex
	groups map[string]*groupBudget
}

type groupBudget struct {
	mu        sync.Mutex
	reactions []time.Time
	messages  []time.Time
}

// NewRateGovernor creates a governor with the given limits. Zero caps fall
// back to the defaults.
func NewRateGovernor(cfg GovernorConfig) *RateGovernor {
	def := DefaultGovernorConfig()
	if cfg.ReactionCap <= 0 {
		cfg.ReactionCap = def.ReactionCap
	}
	if cfg.ReactionWindow <= 0 {
		cfg.ReactionWindow = def.ReactionWindow
	}
	if cfg.MessageCap <= 0 {
		cfg.MessageCap = def.MessageCap
	}
	if cfg.MessageWindow <= 0 {
		cfg.MessageWindow = def.MessageWindow
	}
	return &RateGovernor{cfg: cfg, groups: make(map[string]*groupBudget)}
}

func (r *RateGovernor) budget(groupID string) *groupBudget {
	r.mu.RLock()
	b := r.groups[groupID]
	r.mu.RUnlock()
	if b != nil {
		return b
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b = r.groups[groupID]; b != nil {
		return b
	}
	b = &groupBudget{}
	r.groups[groupID] = b
	return b
}

// TryConsumeReaction records one autonomous reaction for the group iff the
// reaction window has a free slot at now. Returns false without recording
// when the budget is exhausted.
func (r *RateGovernor) TryConsumeReaction(groupID string, now time.Time) bool {
	b := r.budget(groupID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reactions = trimWindow(b.reactions, now, r.cfg.ReactionWindow)
	if len(b.reactions) >= r.cfg.ReactionCap {
		return false
	}
	b.reactions = append(b.reactions, now)
	return true
}

// TryConsumeMessageSlot records one outbound message for the group iff the
// message window has a free slot at now.
func (r *RateGovernor) TryConsumeMessageSlot(groupID string, now time.Time) bool {
	b := r.budget(groupID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = trimWindow(b.messages, now, r.cfg.MessageWindow)
	if len(b.messages) >= r.cfg.MessageCap {
		return false
	}
	b.messages = append(b.messages, now)
	return true
}

// trimWindow drops timestamps that fell out of the window ending at now.
func trimWindow(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
