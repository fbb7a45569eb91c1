// Package discord runs the bot on Discord. A guild text channel plays the
// role of a chat group; its channel ID is the group ID.
package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"candybear/internal/channels"
	"candybear/internal/config"
)

type Channel struct {
	cfg *config.Config
	dg  *discordgo.Session
}

func New(cfg *config.Config) *Channel {
	return &Channel{cfg: cfg}
}

func (c *Channel) Name() string { return "discord" }

// Run opens the gateway session and forwards messages until ctx is
// cancelled. discordgo reconnects on its own.
func (c *Channel) Run(ctx context.Context, events chan<- channels.Event) error {
	dg, err := discordgo.New("Bot " + c.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	c.dg = dg
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("[INFO] discord: logged in as %s", r.User.Username)
	})
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		ev, ok := c.convert(s, m)
		if !ok {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	if err := dg.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	return nil
}

func (c *Channel) convert(s *discordgo.Session, m *discordgo.MessageCreate) (channels.Event, bool) {
	if m.Author == nil || m.Author.Bot {
		return channels.Event{}, false
	}
	ev := channels.Event{
		Channel:  "discord",
		UserID:   m.Author.ID,
		SelfID:   s.State.User.ID,
		Nickname: m.Author.Username,
		Text:     m.Content,
		At:       time.Now(),
	}
	if m.Member != nil && m.Member.Nick != "" {
		ev.Nickname = m.Member.Nick
	}
	for _, u := range m.Mentions {
		ev.Mentions = append(ev.Mentions, u.ID)
	}
	if m.GuildID == "" {
		ev.Private = true
		if !c.cfg.PrivateAllowed(ev.UserID) {
			return channels.Event{}, false
		}
		return ev, true
	}
	ev.GroupID = m.ChannelID
	if !c.cfg.GroupAllowed(ev.GroupID) {
		return channels.Event{}, false
	}
	return ev, true
}

func (c *Channel) SendGroup(ctx context.Context, groupID, text string) error {
	_, err := c.dg.ChannelMessageSend(groupID, text, discordgo.WithContext(ctx))
	return err
}

func (c *Channel) SendPrivate(ctx context.Context, userID, text string) error {
	dm, err := c.dg.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = c.dg.ChannelMessageSend(dm.ID, text, discordgo.WithContext(ctx))
	return err
}
