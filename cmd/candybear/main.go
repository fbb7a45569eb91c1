// cmd/candybear/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"candybear/internal/ai"
	"candybear/internal/bot"
	"candybear/internal/channels"
	"candybear/internal/channels/discord"
	"candybear/internal/channels/onebot"
	"candybear/internal/config"
	"candybear/internal/engine"
	"candybear/internal/knowledge"
	"candybear/internal/profile"
	"candybear/internal/storage"
	v "candybear/internal/version"
)

func main() {
	log.Printf("[INFO] Starting %v...", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	items, err := store.LoadKnowledgeItems()
	if err != nil {
		log.Fatal(err)
	}
	know := knowledge.NewService(items, store)

	provider := ai.DefaultProvider(cfg)
	profiles := profile.NewService(provider, store, cfg.PortraitInterval)

	gov := engine.NewRateGovernor(engine.GovernorConfig{
		ReactionCap: cfg.ReactionCap,
		MessageCap:  cfg.MessageCap,
	})
	eng := engine.New(cfg.BotQQ,
		engine.NewContextStore(),
		engine.NewThreadTracker(),
		gov,
		engine.DefaultHeuristics(cfg.BotName),
	)

	var chans []channels.Channel
	if cfg.OneBotWSURL != "" {
		chans = append(chans, onebot.New(cfg))
	}
	if cfg.DiscordToken != "" {
		chans = append(chans, discord.New(cfg))
	}

	b := bot.New(bot.Deps{
		Config:    cfg,
		Engine:    eng,
		Governor:  gov,
		Provider:  provider,
		Storage:   store,
		Knowledge: know,
		Profiles:  profiles,
		Channels:  chans,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := b.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...", s)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] bot error:", err)
		}
		cancel()
	case <-ctx.Done():
	}

	if err := store.Flush(); err != nil {
		log.Println("[ERR] flush storage:", err)
	}
	log.Printf("[INFO] %v exited cleanly", v.AppName)
}
