// Package bot wires the transports, the decision engine and the generation
// backend together. One Bot instance serves every configured channel.
package bot

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"candybear/internal/ai"
	"candybear/internal/channels"
	"candybear/internal/config"
	"candybear/internal/engine"
	"candybear/internal/knowledge"
	"candybear/internal/profile"
	"candybear/internal/storage"
	"candybear/pkg/jobmgr"
)

type Bot struct {
	cfg      *config.Config
	eng      *engine.Engine
	gov      *engine.RateGovernor
	composer *engine.Composer
	provider ai.Provider
	store    *storage.Storage
	know     *knowledge.Service
	profiles *profile.Service
	spam     *SpamGuard
	jobs     *jobmgr.Manager
	chans    []channels.Channel

	mu         sync.Mutex
	groupLocks map[string]*sync.Mutex
}

// Deps carries everything a Bot needs. All fields are required except
// Knowledge and Profiles.
type Deps struct {
	Config    *config.Config
	Engine    *engine.Engine
	Governor  *engine.RateGovernor
	Provider  ai.Provider
	Storage   *storage.Storage
	Knowledge *knowledge.Service
	Profiles  *profile.Service
	Channels  []channels.Channel
}

func New(d Deps) *Bot {
	return &Bot{
		cfg:      d.Config,
		eng:      d.Engine,
		gov:      d.Governor,
		composer: engine.NewComposer(d.Provider),
		provider: d.Provider,
		store:    d.Storage,
		know:     d.Knowledge,
		profiles: d.Profiles,
		spam:     NewSpamGuard(),
		jobs: jobmgr.NewManager(func(msg string) {
			log.Printf("[JOB] %s", msg)
		}),
		chans:      d.Channels,
		groupLocks: make(map[string]*sync.Mutex),
	}
}

// Run starts every channel and consumes their events until ctx is
// cancelled. It returns when all channels have stopped.
func (b *Bot) Run(ctx context.Context) error {
	if len(b.chans) == 0 {
		return fmt.Errorf("bot: no channels configured")
	}
	events := make(chan channels.Event, 64)

	var wg sync.WaitGroup
	for _, ch := range b.chans {
		wg.Add(1)
		go func(ch channels.Channel) {
			defer wg.Done()
			if err := ch.Run(ctx, events); err != nil {
				log.Printf("[ERR] channel %s stopped: %v", ch.Name(), err)
			}
		}(ch)
	}
	if b.profiles != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.profiles.Run(ctx)
		}()
	}

	byName := make(map[string]channels.Channel, len(b.chans))
	for _, ch := range b.chans {
		byName[ch.Name()] = ch
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case ev := <-events:
			ch := byName[ev.Channel]
			if ch == nil {
				continue
			}
			b.handleEvent(ctx, ch, ev)
		}
	}
}

func (b *Bot) handleEvent(ctx context.Context, ch channels.Channel, ev channels.Event) {
	if ev.UserID == b.selfID(ev) {
		return
	}
	if ev.Private {
		b.handlePrivate(ctx, ch, ev)
		return
	}

	if reply, ok := b.spam.Observe(ev.GroupID, ev.Text); ok {
		b.sendBubbles(ctx, ch, ev.GroupID, []string{reply})
		return
	}

	if b.profiles != nil {
		b.profiles.MarkActive(ev.GroupID, ev.UserID, ev.Nickname)
	}
	go b.persistMessage(ev, false)

	if isExplicitTrigger(ev.Text, ev.Mentions, b.selfID(ev)) {
		b.handleExplicit(ctx, ch, ev)
		return
	}

	// The engine knows the bot by its configured ID; platform self IDs in
	// the mention list are mapped onto it.
	mentions := make([]string, len(ev.Mentions))
	for i, m := range ev.Mentions {
		if m == b.selfID(ev) {
			m = b.cfg.BotQQ
		}
		mentions[i] = m
	}

	lock := b.groupLock(ev.GroupID)
	lock.Lock()
	decision := b.eng.Evaluate(engine.InboundEvent{
		GroupID:  ev.GroupID,
		UserID:   ev.UserID,
		Nickname: ev.Nickname,
		Text:     ev.Text,
		Mentions: mentions,
		At:       ev.At,
	})
	lock.Unlock()

	switch decision.Kind {
	case engine.DecideSilence:
	case engine.DecideDirectReply:
		b.sendBubbles(ctx, ch, ev.GroupID, []string{decision.Text})
	case engine.DecideGenerate:
		b.startGeneration(ctx, ch, ev, decision)
	}
}

// startGeneration runs composition off the ingestion path. The job name
// doubles as a lock: a second request for the same session while one is in
// flight is dropped.
func (b *Bot) startGeneration(ctx context.Context, ch channels.Channel, ev channels.Event, d engine.Decision) {
	d.Prompt = b.enrichPrompt(d.Prompt, ev.Text)
	name := "gen:" + d.SessionKey
	err := b.jobs.StartAsync(name, func(context.Context) error {
		bubbles, err := b.composer.Compose(ctx, ev.GroupID, d)
		if err != nil {
			return err
		}
		if len(bubbles) == 0 {
			log.Printf("[INFO] generation yielded nothing group=%s session=%s", ev.GroupID, d.SessionKey)
			return nil
		}
		texts := make([]string, len(bubbles))
		for i, bb := range bubbles {
			texts[i] = bb.Text
		}
		sent := b.sendBubbles(ctx, ch, ev.GroupID, texts)
		if len(sent) == 0 {
			return nil
		}
		full := joinBubbles(sent)
		lock := b.groupLock(ev.GroupID)
		lock.Lock()
		b.eng.RecordAgentReply(ev.GroupID, ev.UserID, b.cfg.BotName, full, time.Now())
		lock.Unlock()
		go b.persistReply(ev.GroupID, full)
		return nil
	})
	if err != nil {
		log.Printf("[INFO] generation already running session=%s", d.SessionKey)
	}
}

// handleExplicit answers #ai-prefixed and @-mention requests. Explicit
// requests skip the reaction budget; message slots still apply on send.
func (b *Bot) handleExplicit(ctx context.Context, ch channels.Channel, ev channels.Event) {
	prompt := extractPrompt(ev.Text)
	sessionKey := "group_" + ev.GroupID + "_" + ev.UserID

	if isClearCommand(prompt) {
		b.provider.ClearSession(sessionKey)
		b.sendBubbles(ctx, ch, ev.GroupID, []string{"🧹 已清除我们的聊天记忆！"})
		return
	}
	if prompt == "" {
		b.sendBubbles(ctx, ch, ev.GroupID, []string{"问点什么吧～"})
		return
	}
	b.startGeneration(ctx, ch, ev, engine.GenerateWith(prompt, sessionKey))
}

// handlePrivate answers direct chats with a single unsplit reply.
func (b *Bot) handlePrivate(ctx context.Context, ch channels.Channel, ev channels.Event) {
	prompt := extractPrompt(ev.Text)
	sessionKey := "private_" + ev.UserID

	if isClearCommand(prompt) {
		b.provider.ClearSession(sessionKey)
		b.sendPrivate(ctx, ch, ev.UserID, "🧹 已清除我们的聊天记忆！")
		return
	}
	if prompt == "" {
		b.sendPrivate(ctx, ch, ev.UserID, "想聊什么？直接说就好～")
		return
	}
	name := "gen:" + sessionKey
	err := b.jobs.StartAsync(name, func(context.Context) error {
		genCtx, cancel := context.WithTimeout(ctx, engine.GenerateTimeout)
		defer cancel()
		reply, err := b.provider.Generate(genCtx, sessionKey, b.enrichPrompt(prompt, prompt))
		if err != nil {
			log.Printf("[ERR] private generation user=%s err=%v", ev.UserID, err)
			return nil
		}
		b.sendPrivate(ctx, ch, ev.UserID, reply)
		return nil
	})
	if err != nil {
		log.Printf("[INFO] generation already running session=%s", sessionKey)
	}
}

// enrichPrompt appends a knowledge-base hit to the prompt when the user's
// text matches one, so the model answers from the curated material.
func (b *Bot) enrichPrompt(prompt, userText string) string {
	if b.know == nil {
		return prompt
	}
	res, ok := b.know.Query(stripCQ(userText))
	if !ok {
		return prompt
	}
	return prompt + "\n\n参考资料（如与问题相关请依据它回答）：\n" + res.Answer
}

// sendBubbles delivers texts in order with human-ish typing pauses. Each
// bubble costs one message slot; when the budget runs out the rest of the
// reply is dropped. Returns the texts actually sent.
func (b *Bot) sendBubbles(ctx context.Context, ch channels.Channel, groupID string, texts []string) []string {
	var sent []string
	for i, text := range texts {
		if !b.gov.TryConsumeMessageSlot(groupID, time.Now()) {
			log.Printf("[WARN] message budget exhausted group=%s dropped=%d", groupID, len(texts)-i)
			break
		}
		if !sleepCtx(ctx, typingDelay(i)) {
			break
		}
		if err := ch.SendGroup(ctx, groupID, text); err != nil {
			log.Printf("[ERR] send group=%s err=%v", groupID, err)
			break
		}
		sent = append(sent, text)
	}
	return sent
}

func (b *Bot) sendPrivate(ctx context.Context, ch channels.Channel, userID, text string) {
	if err := ch.SendPrivate(ctx, userID, text); err != nil {
		log.Printf("[ERR] send private user=%s err=%v", userID, err)
	}
}

// typingDelay mimics a human typing: short pause before the first bubble,
// longer between the rest.
func typingDelay(i int) time.Duration {
	if i == 0 {
		return time.Duration(200+rand.Intn(300)) * time.Millisecond
	}
	return time.Duration(500+rand.Intn(1000)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func joinBubbles(texts []string) string {
	out := ""
	for i, t := range texts {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}

func (b *Bot) persistMessage(ev channels.Event, fromBot bool) {
	err := b.store.SaveMessage(ev.GroupID, storage.StoredMessage{
		UserID:   ev.UserID,
		Nickname: ev.Nickname,
		Text:     ev.Text,
		FromBot:  fromBot,
		Datetime: ev.At,
	})
	if err != nil {
		log.Printf("[ERR] persist message group=%s err=%v", ev.GroupID, err)
	}
}

func (b *Bot) persistReply(groupID, text string) {
	err := b.store.SaveMessage(groupID, storage.StoredMessage{
		UserID:   b.cfg.BotQQ,
		Nickname: b.cfg.BotName,
		Text:     text,
		FromBot:  true,
		Datetime: time.Now(),
	})
	if err != nil {
		log.Printf("[ERR] persist reply group=%s err=%v", groupID, err)
	}
}

// selfID resolves the bot's own user ID on the event's platform.
func (b *Bot) selfID(ev channels.Event) string {
	if ev.SelfID != "" {
		return ev.SelfID
	}
	return b.cfg.BotQQ
}

func (b *Bot) groupLock(groupID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock := b.groupLocks[groupID]
	if lock == nil {
		lock = &sync.Mutex{}
		b.groupLocks[groupID] = lock
	}
	return lock
}
