package engine

import "time"

// EventKind classifies a ContextEvent within a group's rolling log.
type EventKind int

const (
	KindUserMessage EventKind = iota
	KindAgentReply
	KindMention
)

// ContextEvent is one immutable entry in a group's conversation log.
// Created on every inbound and outbound message, dropped by time eviction.
type ContextEvent struct {
	At       time.Time
	GroupID  string
	UserID   string
	Nickname string
	Text     string
	Kind     EventKind
}

// InboundEvent is a user message as delivered by a transport channel,
// already reduced to plain text plus the set of mentioned user IDs.
type InboundEvent struct {
	GroupID  string
	UserID   string
	Nickname string
	Text     string
	Mentions []string
	At       time.Time
}

// MentionsUser reports whether id appears in the event's mention set.
func (ev InboundEvent) MentionsUser(id string) bool {
	for _, m := range ev.Mentions {
		if m == id {
			return true
		}
	}
	return false
}

// ThreadState is the latest agent reply sent to a (group, user) pair.
// Recency is the caller's problem: the tracker stores, the engine filters.
type ThreadState struct {
	GroupID       string
	UserID        string
	LastReplyText string
	LastReplyAt   time.Time
}

// DecisionKind tags a Decision variant.
type DecisionKind int

const (
	DecideSilence DecisionKind = iota
	DecideDirectReply
	DecideGenerate
)

// Decision is the engine's verdict for one inbound event. Only the fields
// belonging to Kind are set; build through Silence, ReplyWith or
// GenerateWith so kind and payload cannot disagree.
type Decision struct {
	Kind       DecisionKind
	Text       string // DecideDirectReply: the literal reply
	Prompt     string // DecideGenerate: prompt for the text generator
	SessionKey string // DecideGenerate: conversation session key
}

// Silence is the do-nothing decision.
func Silence() Decision {
	return Decision{Kind: DecideSilence}
}

// ReplyWith returns a canned single-message decision.
func ReplyWith(text string) Decision {
	return Decision{Kind: DecideDirectReply, Text: text}
}

// GenerateWith returns a decision that requires the text generator.
func GenerateWith(prompt, sessionKey string) Decision {
	return Decision{Kind: DecideGenerate, Prompt: prompt, SessionKey: sessionKey}
}

// Bubble is one short outbound chat message.
type Bubble struct {
	GroupID string
	Text    string
}
