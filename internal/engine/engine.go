package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"
)

// CommentWindow is how long after any agent reply a third-party comment on
// it can still trigger an engagement.
const CommentWindow = 180 * time.Second

// Engine runs the ordered decision cascade over inbound group messages.
// Evaluate is pure decision-making: it never sends anything and never blocks
// on generation. Callers serialize Evaluate per group; the stores underneath
// carry their own locks for cross-group access.
type Engine struct {
	selfID   string
	ctxStore *ContextStore
	threads  *ThreadTracker
	gov      *RateGovernor
	heur     Heuristics

	now  func() time.Time
	rand func() float64
}

// New creates an engine bound to the agent's own user ID.
func New(selfID string, ctxStore *ContextStore, threads *ThreadTracker, gov *RateGovernor, heur Heuristics) *Engine {
	return &Engine{
		selfID:   selfID,
		ctxStore: ctxStore,
		threads:  threads,
		gov:      gov,
		heur:     heur,
		now:      time.Now,
		rand:     rand.Float64,
	}
}

// Evaluate records the inbound event into the group context and walks the
// rule cascade. The first matching rule wins; a rule that matches but loses
// its probability roll or its rate slot ends the walk with silence, it does
// not fall through to later rules.
func (e *Engine) Evaluate(ev InboundEvent) Decision {
	text := strings.TrimSpace(ev.Text)
	if ev.UserID == e.selfID || text == "" || ev.GroupID == "" {
		return Silence()
	}
	now := ev.At
	if now.IsZero() {
		now = e.now()
	}

	kind := KindUserMessage
	if ev.MentionsUser(e.selfID) {
		kind = KindMention
	}
	e.ctxStore.Append(ContextEvent{
		At:       now,
		GroupID:  ev.GroupID,
		UserID:   ev.UserID,
		Nickname: ev.Nickname,
		Text:     ev.Text,
		Kind:     kind,
	})

	if d, ok := e.tryFollowUp(ev, text, now); ok {
		return d
	}
	if d, ok := e.tryInterest(ev, text, now); ok {
		return d
	}
	if d, ok := e.tryComment(ev, text, now); ok {
		return d
	}
	if d, ok := e.tryPassive(ev, text, now); ok {
		return d
	}
	return Silence()
}

// tryFollowUp handles a user continuing a thread the agent replied to less
// than FollowUpWindow ago. A message that @-mentions someone other than the
// agent is addressed elsewhere and never a follow-up.
func (e *Engine) tryFollowUp(ev InboundEvent, text string, now time.Time) (Decision, bool) {
	ts, ok := e.threads.Lookup(ev.GroupID, ev.UserID)
	if !ok || now.Sub(ts.LastReplyAt) >= FollowUpWindow {
		return Decision{}, false
	}
	if len(ev.Mentions) > 0 && !ev.MentionsUser(e.selfID) {
		return Decision{}, false
	}
	if !e.heur.IsFollowUp(text) {
		return Decision{}, false
	}
	if !e.gov.TryConsumeReaction(ev.GroupID, now) {
		return Silence(), true
	}
	prompt := fmt.Sprintf("你之前说：“%s”\n对方现在说：“%s”\n请用一句自然的话回应。",
		ts.LastReplyText, text)
	return GenerateWith(prompt, sessionKey(ev.GroupID, ev.UserID)), true
}

// tryInterest handles a message touching one of the agent's topics. Two
// independent probability gates must both pass before a rate slot is even
// attempted: a chattiness gate derived from how much of the recent log is
// the agent's own voice, and a quietness gate on the persona.
func (e *Engine) tryInterest(ev InboundEvent, text string, now time.Time) (Decision, bool) {
	if !e.heur.MatchesInterest(text) {
		return Decision{}, false
	}
	recent := e.ctxStore.Recent(ev.GroupID)
	if e.rand() >= e.adviceProbability(recent) {
		return Silence(), true
	}
	base := 0.1 * (1 - e.heur.Quietness) * 2
	if len(recent) > e.heur.BusyGroupSize {
		base *= 0.5
	}
	if e.rand() >= base {
		return Silence(), true
	}
	if !e.gov.TryConsumeReaction(ev.GroupID, now) {
		return Silence(), true
	}
	prompt := fmt.Sprintf("群里有人说：“%s”\n这个话题你感兴趣，请自然地搭一句话，不要太热情。", text)
	return GenerateWith(prompt, sessionKey(ev.GroupID, ev.UserID)), true
}

// adviceProbability tunes engagement against how talkative the agent has
// been lately. Needs at least ten recent events to judge; below that, the
// middle value applies.
func (e *Engine) adviceProbability(recent []ContextEvent) float64 {
	if len(recent) < 10 {
		return 0.20
	}
	own := 0
	for _, ev := range recent {
		if ev.Kind == KindAgentReply {
			own++
		}
	}
	ratio := float64(own) / float64(len(recent))
	switch {
	case ratio > 0.3:
		return 0.15
	case ratio < 0.1:
		return 0.25
	default:
		return 0.20
	}
}

// tryComment handles a third party reacting to the agent's most recent
// group reply within CommentWindow.
func (e *Engine) tryComment(ev InboundEvent, text string, now time.Time) (Decision, bool) {
	last, ok := e.ctxStore.LastAgentReply(ev.GroupID)
	if !ok || now.Sub(last.At) >= CommentWindow {
		return Decision{}, false
	}
	if !e.heur.IsCommentOnReply(text) {
		return Decision{}, false
	}
	if !e.gov.TryConsumeReaction(ev.GroupID, now) {
		return Silence(), true
	}
	prompt := fmt.Sprintf("你之前说：“%s”\n另一个群友评论：“%s”\n请友好地回应。",
		last.Text, text)
	return GenerateWith(prompt, sessionKey(ev.GroupID, ev.UserID)), true
}

// tryPassive handles the fixed-reply trigger table, then the cold-room
// nudge. Both still cost a reaction slot so canned replies cannot flood a
// group either.
func (e *Engine) tryPassive(ev InboundEvent, text string, now time.Time) (Decision, bool) {
	if tr, ok := e.heur.MatchPassive(text); ok {
		if !e.gov.TryConsumeReaction(ev.GroupID, now) {
			return Silence(), true
		}
		return ReplyWith(tr.Reply), true
	}
	if e.isColdRoom(ev.GroupID) && e.rand() < e.heur.ColdRoomChance {
		if !e.gov.TryConsumeReaction(ev.GroupID, now) {
			return Silence(), true
		}
		return ReplyWith(e.heur.ColdRoomReply), true
	}
	return Decision{}, false
}

// RecordAgentReply feeds a sent reply back into the stores so follow-up
// and comment rules can see it. Call it once per delivered reply, under the
// same per-group serialization as Evaluate.
func (e *Engine) RecordAgentReply(groupID, userID, nickname, replyText string, at time.Time) {
	if at.IsZero() {
		at = e.now()
	}
	e.threads.Record(groupID, userID, replyText, at)
	e.ctxStore.Append(ContextEvent{
		At:       at,
		GroupID:  groupID,
		UserID:   e.selfID,
		Nickname: nickname,
		Text:     replyText,
		Kind:     KindAgentReply,
	})
}

// isColdRoom reports whether the last ColdRoomRun events are all short and
// mention nobody, which usually means a room trailing off.
func (e *Engine) isColdRoom(groupID string) bool {
	recent := e.ctxStore.Recent(groupID)
	if len(recent) < e.heur.ColdRoomRun {
		return false
	}
	for _, ev := range recent[len(recent)-e.heur.ColdRoomRun:] {
		if utf8.RuneCountInString(ev.Text) >= e.heur.ColdRoomMaxRunes {
			return false
		}
		if strings.Contains(ev.Text, "@") {
			return false
		}
	}
	return true
}

func sessionKey(groupID, userID string) string {
	return "group_" + groupID + "_" + userID
}
