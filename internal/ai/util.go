package ai

import (
	"regexp"
	"strings"
)

const defaultPersona = "你叫糖果熊，是一个温柔、安静、有点文艺的女孩，说话简洁自然，像真实人类，不用【】符号，不自称小熊。"

var (
	thinkRe   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	bracketRe = regexp.MustCompile(`【[^】]*】`)
)

func isGarbageResponse(s string) bool {
	l := strings.ToLower(s)
	if strings.Contains(l, "<html") {
		return true
	}
	if strings.Contains(l, "not allowed") {
		return true
	}
	return false
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

// cleanReply strips reasoning blocks, stage-direction brackets and a single
// pair of wrapping quotes.
func cleanReply(reply string) string {
	reply = thinkRe.ReplaceAllString(reply, "")
	reply = bracketRe.ReplaceAllString(reply, "")
	reply = strings.TrimSpace(reply)

	if len(reply) >= 2 {
		quotes := []struct{ open, close string }{
			{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"},
		}
		for _, q := range quotes {
			if strings.HasPrefix(reply, q.open) && strings.HasSuffix(reply, q.close) {
				reply = strings.TrimSuffix(strings.TrimPrefix(reply, q.open), q.close)
				reply = strings.TrimSpace(reply)
				break
			}
		}
	}
	return reply
}
