package bot

import (
	"regexp"
	"strings"
)

var (
	cqCodeRe         = regexp.MustCompile(`\[CQ:[^\]]*\]`)
	discordMentionRe = regexp.MustCompile(`<@!?\d+>`)
)

// stripCQ removes CQ codes and raw mention markup, leaving the
// human-readable text.
func stripCQ(text string) string {
	text = cqCodeRe.ReplaceAllString(text, "")
	text = discordMentionRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// aiPrefixes explicitly address the bot regardless of any heuristics.
// The fullwidth variant comes from Chinese input methods.
var aiPrefixes = []string{"#ai ", "!ai ", "！ai "}

// isExplicitTrigger reports whether the message demands an answer: an ai
// prefix or an @-mention of the bot.
func isExplicitTrigger(text string, mentions []string, selfID string) bool {
	for _, p := range aiPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	for _, m := range mentions {
		if m == selfID {
			return true
		}
	}
	return false
}

// extractPrompt returns the question part of an explicitly triggered
// message: prefix stripped, CQ codes dropped.
func extractPrompt(text string) string {
	for _, p := range aiPrefixes {
		if strings.HasPrefix(text, p) {
			return stripCQ(text[len(p):])
		}
	}
	return stripCQ(text)
}

func isClearCommand(prompt string) bool {
	switch prompt {
	case "#clear", "!clear", "！clear":
		return true
	}
	return false
}
