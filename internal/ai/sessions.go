package ai

import "sync"

// historyDepth is how many prior turns a session keeps. Old turns fall off
// the front so prompts stay bounded.
const historyDepth = 6

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string][]Message
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string][]Message)}
}

// snapshot returns a copy of the session's history.
func (s *sessionStore) snapshot(key string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.sessions[key]
	out := make([]Message, len(hist))
	copy(out, hist)
	return out
}

// record appends a user/assistant exchange and trims to historyDepth.
func (s *sessionStore) record(key, prompt, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := append(s.sessions[key],
		Message{Role: "user", Content: prompt},
		Message{Role: "assistant", Content: reply},
	)
	if len(hist) > historyDepth {
		hist = hist[len(hist)-historyDepth:]
	}
	s.sessions[key] = hist
}

func (s *sessionStore) clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}
