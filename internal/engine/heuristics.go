package engine

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Heuristics holds every keyword table and threshold the decision cascade
// matches against. Allow-lists, not NLU: precision over recall. Kept as
// data so each rule is unit-testable on its own.
type Heuristics struct {
	// Follow-up continuation (rule 1).
	FollowUpMaxRunes int
	FollowUpKeywords []string
	PronounPrefixes  []string // first/second person openers
	OpinionVerbs     []string // state/opinion verbs paired with a pronoun opener
	PronounMaxRunes  int      // length bound for the pronoun+verb form
	Interjections    *regexp.Regexp
	ShortParticles   []string // stand-alone particles of one or two runes

	// Comment on a prior agent reply (rule 3).
	CommentMaxRunes      int
	CommentKeywords      []string
	CommentShortRunes    int    // "short" bound for the second-person form
	SecondPersonPronoun  string

	// Topic-interest engagement (rule 2).
	InterestTopics []string
	Quietness      float64 // 0..1, dampens the base probability
	BusyGroupSize  int     // recent-event count above which the agent stays quiet

	// Passive triggers (rule 4).
	BotName         string
	PassiveTriggers []PassiveTrigger

	// Cold-room nudge: N trailing short messages may earn a canned poke.
	ColdRoomRun       int
	ColdRoomMaxRunes  int
	ColdRoomChance    float64
	ColdRoomReply     string
}

// PassiveTrigger maps fixed substrings to a literal reply.
type PassiveTrigger struct {
	Name           string
	Substrings     []string // matched case-insensitively, any one suffices
	MaxRunes       int      // 0 means no length bound
	SkipIfQuestion bool
	Reply          string
}

// DefaultHeuristics returns the stock tables for the candybear persona.
func DefaultHeuristics(botName string) Heuristics {
	if botName == "" {
		botName = "糖果熊"
	}
	return Heuristics{
		FollowUpMaxRunes: 60,
		FollowUpKeywords: []string{
			"？", "?", "呢", "然后", "接着", "为什么", "怎么", "再",
		},
		PronounPrefixes: []string{"我", "你"},
		OpinionVerbs:    []string{"觉得", "认为", "感觉", "喜欢", "想", "懂"},
		PronounMaxRunes: 20,
		Interjections:   regexp.MustCompile(`^(嗯+|哦+|啊+|好+|哈哈+)$`),
		ShortParticles: []string{
			"嗯", "哦", "啊", "呢", "吗", "呀", "嘛", "诶", "欸", "咦", "哇", "？", "?",
		},

		CommentMaxRunes: 50,
		CommentKeywords: []string{
			"不对", "错", "为什么", "怎么", "接着", "继续", "同意", "觉得", "你说", "刚刚",
		},
		CommentShortRunes:   30,
		SecondPersonPronoun: "你",

		InterestTopics: []string{
			"文学", "诗歌", "音乐", "艺术", "哲学", "自然", "读书", "写作",
		},
		Quietness:     0.8,
		BusyGroupSize: 10,

		BotName: botName,
		PassiveTriggers: []PassiveTrigger{
			{
				Name:       "redbag",
				Substrings: []string{"[cq:redbag"},
				Reply:      "诶？有红包？手慢无啊...",
			},
			{
				Name:       "music",
				Substrings: []string{"[cq:music", "网易云", "music.163"},
				Reply:      "这首歌我也听过，挺不错的～",
			},
			{
				Name:           "name-mention",
				Substrings:     []string{strings.ToLower(botName)},
				MaxRunes:       20,
				SkipIfQuestion: true,
				Reply:          "我在呢，只是在发呆～",
			},
		},

		ColdRoomRun:      3,
		ColdRoomMaxRunes: 8,
		ColdRoomChance:   0.03,
		ColdRoomReply:    "你们聊啥呢？突然安静了...",
	}
}

// IsFollowUp reports whether text plausibly continues a conversation the
// agent just had with this user. Any single clause of the allow-list wins.
func (h Heuristics) IsFollowUp(text string) bool {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n == 0 || n > h.FollowUpMaxRunes {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range h.FollowUpKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if n <= h.PronounMaxRunes && h.hasPronounOpener(text) && containsAny(text, h.OpinionVerbs) {
		return true
	}
	if h.Interjections != nil && h.Interjections.MatchString(text) {
		return true
	}
	if n <= 2 {
		for _, p := range h.ShortParticles {
			if strings.Contains(text, p) {
				return true
			}
		}
	}
	return false
}

func (h Heuristics) hasPronounOpener(text string) bool {
	for _, p := range h.PronounPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// IsCommentOnReply reports whether text reads as a short reaction to the
// agent's previous message.
func (h Heuristics) IsCommentOnReply(text string) bool {
	text = strings.TrimSpace(text)
	n := utf8.RuneCountInString(text)
	if n == 0 || n > h.CommentMaxRunes {
		return false
	}
	if containsAny(text, h.CommentKeywords) {
		return true
	}
	return n < h.CommentShortRunes && strings.Contains(text, h.SecondPersonPronoun)
}

// MatchesInterest reports whether text touches one of the agent's topics.
func (h Heuristics) MatchesInterest(text string) bool {
	return containsAny(strings.ToLower(text), h.InterestTopics)
}

// MatchPassive returns the first passive trigger matching text.
func (h Heuristics) MatchPassive(text string) (PassiveTrigger, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	n := utf8.RuneCountInString(lower)
	for _, tr := range h.PassiveTriggers {
		if tr.MaxRunes > 0 && n > tr.MaxRunes {
			continue
		}
		if tr.SkipIfQuestion && isQuestion(lower) {
			continue
		}
		for _, sub := range tr.Substrings {
			if strings.Contains(lower, sub) {
				return tr, true
			}
		}
	}
	return PassiveTrigger{}, false
}

func isQuestion(text string) bool {
	return strings.Contains(text, "?") || strings.Contains(text, "？")
}

func containsAny(text string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
