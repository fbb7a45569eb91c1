package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	// Identity.
	BotQQ   string `env:"BOT_QQ"`
	BotName string `env:"BOT_NAME" envDefault:"糖果熊"`

	// Transports. A channel runs only when its endpoint/token is set.
	OneBotWSURL  string `env:"ONEBOT_WS_URL"`
	DiscordToken string `env:"DISCORD_TOKEN"`

	// Generation backend.
	AIProvider      string `env:"AI_PROVIDER" envDefault:"dashscope"`
	DashScopeAPIKey string `env:"DASHSCOPE_API_KEY"`
	BotPersona      string `env:"BOT_PERSONA"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	// Whitelists. Empty AllowedGroups means every group is served.
	AllowedGroups           []string `env:"ALLOWED_GROUPS" envSeparator:","`
	PrivateWhitelistEnabled bool     `env:"PRIVATE_WHITELIST_ENABLED"`
	AllowedPrivateUsers     []string `env:"ALLOWED_PRIVATE_USERS" envSeparator:","`

	// Engagement budgets, per group.
	ReactionCap int `env:"REACTION_CAP" envDefault:"10"`
	MessageCap  int `env:"MESSAGE_CAP" envDefault:"10"`

	PortraitInterval time.Duration `env:"PORTRAIT_INTERVAL" envDefault:"10m"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.OneBotWSURL == "" && cfg.DiscordToken == "" {
		log.Fatal("config: neither ONEBOT_WS_URL nor DISCORD_TOKEN is set")
	}
	if cfg.BotQQ == "" && cfg.OneBotWSURL != "" {
		log.Fatal("config: BOT_QQ is not set")
	}
	return cfg
}

// GroupAllowed reports whether the bot serves this group.
func (c *Config) GroupAllowed(groupID string) bool {
	if len(c.AllowedGroups) == 0 {
		return true
	}
	for _, g := range c.AllowedGroups {
		if g == groupID {
			return true
		}
	}
	return false
}

// PrivateAllowed reports whether the bot answers this user in private chat.
func (c *Config) PrivateAllowed(userID string) bool {
	if !c.PrivateWhitelistEnabled {
		return true
	}
	for _, u := range c.AllowedPrivateUsers {
		if u == userID {
			return true
		}
	}
	return false
}
