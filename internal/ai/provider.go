package ai

import (
	"context"
	"fmt"

	"candybear/internal/config"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates reply text for a prompt. A session key scopes the
// rolling conversation history; implementations keep the last few turns per
// key and drop them on ClearSession.
type Provider interface {
	Generate(ctx context.Context, sessionKey, prompt string) (string, error)
	ClearSession(sessionKey string)
}

func DefaultProvider(cfg *config.Config) Provider {
	switch cfg.AIProvider {
	case "dashscope", "":
		return NewDashScopeProvider(cfg.DashScopeAPIKey, cfg.BotPersona)
	case "g4f":
		return NewG4FProvider(cfg.BotPersona)
	default:
		panic(fmt.Sprintf("unsupported AI_PROVIDER: %s", cfg.AIProvider))
	}
}
