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

const (
	dashScopeURL   = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	dashScopeModel = "qwen-max"
)

// DashScopeProvider talks to the Aliyun DashScope text-generation endpoint.
type DashScopeProvider struct {
	apiKey   string
	persona  string
	client   *http.Client
	sessions *sessionStore
}

func NewDashScopeProvider(apiKey, persona string) *DashScopeProvider {
	if persona == "" {
		persona = defaultPersona
	}
	return &DashScopeProvider{
		apiKey:   apiKey,
		persona:  persona,
		client:   &http.Client{Timeout: 30 * time.Second},
		sessions: newSessionStore(),
	}
}

func (p *DashScopeProvider) Generate(ctx context.Context, sessionKey, prompt string) (string, error) {
	messages := append([]Message{{Role: "system", Content: p.persona}},
		p.sessions.snapshot(sessionKey)...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	payload := map[string]interface{}{
		"model":      dashScopeModel,
		"input":      map[string]interface{}{"messages": messages},
		"parameters": map[string]interface{}{"result_format": "message"},
	}
	bodyBytes, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dashScopeURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("dashscope: status=%d body=%s", resp.StatusCode, truncate(respBody))
	}

	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Output  struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"output"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("dashscope: unmarshal: %w body=%s", err, truncate(respBody))
	}
	// code is only set on business errors such as InvalidApiKey.
	if parsed.Code != "" && parsed.Code != "200" {
		return "", fmt.Errorf("dashscope: code=%s message=%s", parsed.Code, parsed.Message)
	}
	if len(parsed.Output.Choices) == 0 {
		return "", fmt.Errorf("dashscope: no choices in response body=%s", truncate(respBody))
	}

	reply := cleanReply(parsed.Output.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("dashscope: empty reply")
	}
	p.sessions.record(sessionKey, prompt, reply)
	return reply, nil
}

func (p *DashScopeProvider) ClearSession(sessionKey string) {
	p.sessions.clear(sessionKey)
}
