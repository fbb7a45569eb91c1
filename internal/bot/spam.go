package bot

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	spamWindowSize  = 5
	spamRepeatCount = 3
	spamCooldown    = 5 * time.Second
)

var spamReplies = []string{
	"📢 打断施法！",
	"🛑 禁止加一",
	"⚠️ 检测到重复内容，律行停止！",
}

// SpamGuard watches each group for runs of identical messages and produces
// an interrupt reply when the run reaches the threshold. One interrupt per
// cooldown per group.
type SpamGuard struct {
	mu          sync.Mutex
	windows     map[string][]string
	lastTrigger map[string]time.Time

	now  func() time.Time
	rand func(n int) int
}

func NewSpamGuard() *SpamGuard {
	return &SpamGuard{
		windows:     make(map[string][]string),
		lastTrigger: make(map[string]time.Time),
		now:         time.Now,
		rand:        rand.Intn,
	}
}

// Observe records one group message and returns an interrupt reply when a
// spam run just hit the threshold. ok is false when nothing should be sent.
func (g *SpamGuard) Observe(groupID, text string) (string, bool) {
	content := strings.ToLower(strings.TrimSpace(text))
	if groupID == "" || content == "" {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	window := append(g.windows[groupID], content)
	if len(window) > spamWindowSize {
		window = window[len(window)-spamWindowSize:]
	}
	g.windows[groupID] = window

	if !isSpamRun(window, content) {
		return "", false
	}
	now := g.now()
	if last, ok := g.lastTrigger[groupID]; ok && now.Sub(last) <= spamCooldown {
		return "", false
	}
	g.lastTrigger[groupID] = now
	return spamReplies[g.rand(len(spamReplies))], true
}

// isSpamRun checks whether the window ends in a run of the same content of
// at least spamRepeatCount. The run must be unbroken; earlier duplicates do
// not count.
func isSpamRun(window []string, content string) bool {
	run := 0
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] != content {
			break
		}
		run++
		if run >= spamRepeatCount {
			return true
		}
	}
	return false
}
