package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// G4FProvider is a keyless fallback backend speaking the OpenAI chat shape.
type G4FProvider struct {
	baseURL  string
	model    string
	persona  string
	client   *http.Client
	sessions *sessionStore
}

func NewG4FProvider(persona string) *G4FProvider {
	if persona == "" {
		persona = defaultPersona
	}
	return &G4FProvider{
		baseURL:  "https://g4f.dev/api/gpt-oss-120b",
		model:    "gpt-oss-120b",
		persona:  persona,
		client:   &http.Client{Timeout: 30 * time.Second},
		sessions: newSessionStore(),
	}
}

func (p *G4FProvider) Generate(ctx context.Context, sessionKey, prompt string) (string, error) {
	messages := append([]Message{{Role: "system", Content: p.persona}},
		p.sessions.snapshot(sessionKey)...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	payload := map[string]interface{}{
		"model":    p.model,
		"messages": messages,
	}
	bodyBytes, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("g4f: status=%d body=%s", resp.StatusCode, truncate(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("g4f: unmarshal: %w body=%s", err, truncate(respBody))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("g4f: no choices in response")
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if reply == "" || isGarbageResponse(reply) {
		return "", fmt.Errorf("g4f: unusable reply")
	}
	p.sessions.record(sessionKey, prompt, reply)
	return reply, nil
}

func (p *G4FProvider) ClearSession(sessionKey string) {
	p.sessions.clear(sessionKey)
}
