// Package profile keeps AI-written portraits of group members, refreshed on
// a slow background loop so the persona can remember who it talks to.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"candybear/internal/ai"
	"candybear/internal/storage"
)

const (
	// portraitHistoryDepth is how many recent messages feed one update.
	portraitHistoryDepth = 30
	// affinity deltas from a single update are clamped to this range.
	maxAffinityDelta = 5
)

const portraitPrompt = "你是一个用户行为分析师，目前的身份是聊天群内的一个群员，请根据以下信息更新你对用户画像和好感度，好感度根据主动聊天次数和说话的友好程度决定，用户画像可以保留对该群员的一些兴趣介绍等，之前的用户画像要总结进新的里，保留真实知识（该群员的兴趣之类）。"

type candidate struct {
	groupID  string
	nickname string
}

// Service runs the periodic portrait refresh.
type Service struct {
	provider ai.Provider
	store    *storage.Storage
	interval time.Duration

	mu      sync.Mutex
	pending map[string]candidate // userID -> latest group/nickname seen
}

func NewService(provider ai.Provider, store *storage.Storage, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Service{
		provider: provider,
		store:    store,
		interval: interval,
		pending:  make(map[string]candidate),
	}
}

// MarkActive queues a user for the next refresh pass. Called on every
// inbound group message; cheap by design.
func (s *Service) MarkActive(groupID, userID, nickname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = candidate{groupID: groupID, nickname: nickname}
}

// Run blocks until ctx is cancelled, refreshing queued users every
// interval.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshPending(ctx)
		}
	}
}

func (s *Service) refreshPending(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]candidate)
	s.mu.Unlock()

	for userID, c := range batch {
		if err := s.refreshUser(ctx, userID, c); err != nil {
			log.Printf("[ERR] portrait: user=%s group=%s err=%v", userID, c.groupID, err)
			continue
		}
		log.Printf("[INFO] portrait: updated user=%s group=%s", userID, c.groupID)
	}
}

type portraitUpdate struct {
	NewProfile     string `json:"new_profile"`
	AffinityChange struct {
		Delta  int    `json:"delta"`
		Reason string `json:"reason"`
	} `json:"affinity_change"`
}

func (s *Service) refreshUser(ctx context.Context, userID string, c candidate) error {
	msgs, err := s.store.FetchMessagesByUser(c.groupID, userID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) > portraitHistoryDepth {
		msgs = msgs[len(msgs)-portraitHistoryDepth:]
	}
	prev, err := s.store.FetchProfile(userID)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(portraitPrompt)
	b.WriteString("\n\n")
	if prev.Portrait != "" {
		fmt.Fprintf(&b, "【当前画像】\n%s\n\n", prev.Portrait)
	}
	b.WriteString("【新增聊天记录】\n")
	for _, m := range msgs {
		fmt.Fprintf(&b, "- %s\n", m.Text)
	}
	b.WriteString("\n请严格按以下 JSON 格式输出：\n{\n  \"new_profile\": \"更新后的画像文本（约100字）\",\n  \"affinity_change\": {\"delta\": 整数（-5到+5）, \"reason\": \"简短原因\"}\n}\n")

	raw, err := s.provider.Generate(ctx, "portrait_"+userID, b.String())
	if err != nil {
		return err
	}
	var update portraitUpdate
	if err := json.Unmarshal([]byte(extractJSON(raw)), &update); err != nil {
		return fmt.Errorf("parse portrait response: %w", err)
	}
	if update.NewProfile == "" {
		return fmt.Errorf("empty portrait in response")
	}

	if err := s.store.SavePortrait(userID, c.nickname, update.NewProfile, time.Now()); err != nil {
		return err
	}
	delta := update.AffinityChange.Delta
	if delta > maxAffinityDelta {
		delta = maxAffinityDelta
	}
	if delta < -maxAffinityDelta {
		delta = -maxAffinityDelta
	}
	if delta != 0 {
		return s.store.BumpAffinity(userID, delta)
	}
	return nil
}

// extractJSON trims anything around the outermost JSON object. Models tend
// to wrap the payload in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
