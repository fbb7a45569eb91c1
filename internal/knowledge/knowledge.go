// Package knowledge is a keyword-matched Q&A base. Items carry question
// patterns and a canned answer; queries are scored by pattern containment
// and keyword overlap, with a threshold below which nothing is returned.
package knowledge

import (
	"log"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Item is one entry of the knowledge base.
type Item struct {
	ID       int64    `json:"id"`
	Patterns []string `json:"patterns"`
	Answer   string   `json:"answer"`
	Priority int      `json:"priority"`
	Category string   `json:"category"`
	HitCount int      `json:"hit_count"`

	keywords map[string]struct{}
}

// Result is a successful match.
type Result struct {
	Answer          string
	Category        string
	SimilarityScore float64
	MatchedKeywords []string
}

// Saver persists the item list. Implemented by the storage layer.
type Saver interface {
	SaveKnowledgeItems(items []Item) error
}

const (
	// matchThreshold is the minimum best score to return an answer.
	matchThreshold = 0.6
	// candidateFloor filters out noise before ranking.
	candidateFloor = 0.3
	// maxScore caps a single item's score.
	maxScore = 2.0
)

// Service serves queries over an in-memory item list.
type Service struct {
	mu    sync.RWMutex
	items []*Item
	index map[string][]*Item
	saver Saver

	nextID int64
}

// NewService builds the service from preloaded items.
func NewService(items []Item, saver Saver) *Service {
	s := &Service{saver: saver, index: make(map[string][]*Item)}
	for i := range items {
		it := items[i]
		s.insert(&it)
	}
	log.Printf("[INFO] knowledge: loaded items=%d keywords=%d", len(s.items), len(s.index))
	return s
}

// insert indexes one item. Caller holds no lock; only used before the
// service is shared or under s.mu.
func (s *Service) insert(it *Item) {
	it.keywords = extractKeywords(strings.Join(it.Patterns, " ") + " " + it.Answer)
	if it.ID > s.nextID {
		s.nextID = it.ID
	}
	s.items = append(s.items, it)
	for kw := range it.keywords {
		s.index[kw] = append(s.index[kw], it)
	}
}

// Query returns the best answer for question, or ok=false when nothing
// clears the threshold. A hit bumps the item's counter.
func (s *Service) Query(question string) (Result, bool) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, false
	}
	qKeywords := extractKeywords(question)

	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		item    *Item
		score   float64
		matched []string
	}
	var candidates []scored
	for _, it := range s.candidates(qKeywords) {
		score, matched := it.matchScore(question, qKeywords)
		if score > candidateFloor {
			candidates = append(candidates, scored{it, score, matched})
		}
	}
	if len(candidates) == 0 {
		return Result{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].item.Priority > candidates[j].item.Priority
	})
	best := candidates[0]
	if best.score < matchThreshold {
		return Result{}, false
	}
	best.item.HitCount++
	return Result{
		Answer:          best.item.Answer,
		Category:        best.item.Category,
		SimilarityScore: best.score,
		MatchedKeywords: best.matched,
	}, true
}

// candidates narrows the search via the keyword index, padded with
// high-priority items when the index returns too few. Caller holds s.mu.
func (s *Service) candidates(qKeywords map[string]struct{}) []*Item {
	seen := make(map[*Item]struct{})
	var out []*Item
	for kw := range qKeywords {
		for _, it := range s.index[kw] {
			if _, dup := seen[it]; !dup {
				seen[it] = struct{}{}
				out = append(out, it)
			}
		}
	}
	if len(out) < 5 {
		for _, it := range s.items {
			if _, dup := seen[it]; !dup && it.Priority >= 8 {
				seen[it] = struct{}{}
				out = append(out, it)
			}
		}
	}
	return out
}

// Add inserts a new item and persists the full list.
func (s *Service) Add(patterns []string, answer, category string, priority int) error {
	s.mu.Lock()
	s.nextID++
	it := &Item{
		ID:       s.nextID,
		Patterns: patterns,
		Answer:   answer,
		Category: category,
		Priority: priority,
	}
	s.insert(it)
	items := s.snapshotLocked()
	s.mu.Unlock()

	if s.saver == nil {
		return nil
	}
	return s.saver.SaveKnowledgeItems(items)
}

// Items returns a copy of all items, hottest first.
func (s *Service) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.snapshotLocked()
	sort.Slice(items, func(i, j int) bool {
		if items[i].HitCount != items[j].HitCount {
			return items[i].HitCount > items[j].HitCount
		}
		return items[i].Priority > items[j].Priority
	})
	return items
}

func (s *Service) snapshotLocked() []Item {
	items := make([]Item, len(s.items))
	for i, it := range s.items {
		items[i] = *it
	}
	return items
}

// matchScore scores an item against a question: full pattern containment
// weighs most, keyword overlap adds up to 0.8, priority adds 0.05 per
// level, and a very short question matching a long answer is halved.
func (it *Item) matchScore(question string, qKeywords map[string]struct{}) (float64, []string) {
	var score float64
	lower := strings.ToLower(question)
	for _, p := range it.Patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			score += 1.0
		}
	}
	var matched []string
	for kw := range it.keywords {
		if _, ok := qKeywords[kw]; ok {
			matched = append(matched, kw)
		}
	}
	if len(it.keywords) > 0 {
		score += float64(len(matched)) / float64(len(it.keywords)) * 0.8
	}
	score += float64(it.Priority) * 0.05
	if len([]rune(question)) < 3 && len([]rune(it.Answer)) > 100 {
		score *= 0.5
	}
	if score > maxScore {
		score = maxScore
	}
	sort.Strings(matched)
	return score, matched
}

// extractKeywords tokenizes text into latin words and Chinese character
// bigrams, dropping stopwords. No segmenter; bigrams approximate one well
// enough for short chat questions.
func extractKeywords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if isStopToken(tok) {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func tokenize(text string) []string {
	var toks []string
	var latin []rune
	var han []rune
	flushLatin := func() {
		if len(latin) > 1 {
			toks = append(toks, strings.ToLower(string(latin)))
		}
		latin = latin[:0]
	}
	flushHan := func() {
		for i := 0; i+1 < len(han); i++ {
			toks = append(toks, string(han[i:i+2]))
		}
		if len(han) == 1 {
			toks = append(toks, string(han))
		}
		han = han[:0]
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushLatin()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			latin = append(latin, r)
		default:
			flushLatin()
			flushHan()
		}
	}
	flushLatin()
	flushHan()
	return toks
}
