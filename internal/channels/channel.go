// Package channels abstracts the chat platforms the bot can live on. Each
// implementation turns platform traffic into Events and sends plain text
// back out; everything above this layer is platform-agnostic.
package channels

import (
	"context"
	"time"
)

// Event is one inbound chat message, already reduced to plain text plus
// the IDs the engine cares about.
type Event struct {
	Channel  string // implementation name, e.g. "onebot"
	GroupID  string // empty for private chat
	UserID   string
	SelfID   string
	Nickname string
	Text     string   // display text, CQ codes preserved
	Mentions []string // user IDs explicitly @-mentioned
	Private  bool
	At       time.Time
}

// Channel is a single platform connection.
type Channel interface {
	// Name identifies the implementation in logs and Event.Channel.
	Name() string

	// Run connects and pumps inbound events into the sink until ctx is
	// cancelled. It handles its own reconnects; returning an error means
	// the channel gave up for good.
	Run(ctx context.Context, events chan<- Event) error

	SendGroup(ctx context.Context, groupID, text string) error
	SendPrivate(ctx context.Context, userID, text string) error
}
