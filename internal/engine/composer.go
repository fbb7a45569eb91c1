package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// GenerateTimeout bounds a single generation call.
	GenerateTimeout = 10 * time.Second
	// MaxBubbles is the most chat messages one reply may be split into.
	MaxBubbles = 5
	// MaxBubbleRunes is the length bound of a single bubble.
	MaxBubbleRunes = 25
)

// Generator produces reply text for a prompt within a named session.
type Generator interface {
	Generate(ctx context.Context, sessionKey, prompt string) (string, error)
}

// Composer turns a generate decision into a bounded list of short bubbles.
// Generation failures are swallowed: the caller gets zero bubbles and the
// group hears nothing. The reaction slot spent on the decision stays spent.
type Composer struct {
	gen Generator
}

// NewComposer wraps a text generator.
func NewComposer(gen Generator) *Composer {
	return &Composer{gen: gen}
}

var (
	bracketNoise = regexp.MustCompile(`【[^】]*】`)
	thinkBlock   = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

// Compose runs generation for d and splits the result. Returns nil without
// error when generation fails, times out or yields nothing usable.
func (c *Composer) Compose(ctx context.Context, groupID string, d Decision) ([]Bubble, error) {
	if d.Kind != DecideGenerate {
		return nil, fmt.Errorf("compose: decision is not a generate decision")
	}
	genCtx, cancel := context.WithTimeout(ctx, GenerateTimeout)
	defer cancel()

	raw, err := c.gen.Generate(genCtx, d.SessionKey, d.Prompt)
	if err != nil {
		return nil, nil
	}
	text := Sanitize(raw)
	if text == "" {
		return nil, nil
	}
	parts := SplitBubbles(text)
	bubbles := make([]Bubble, 0, len(parts))
	for _, p := range parts {
		bubbles = append(bubbles, Bubble{GroupID: groupID, Text: p})
	}
	return bubbles, nil
}

// Sanitize strips model artifacts: reasoning blocks, bracketed stage
// directions and a single pair of wrapping quotes.
func Sanitize(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = bracketNoise.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}} {
		if strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) && len(text) > len(q[0])+len(q[1]) {
			text = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, q[0]), q[1]))
			break
		}
	}
	return text
}

// SplitBubbles breaks text into at most MaxBubbles pieces of at most
// MaxBubbleRunes runes each. Sentence punctuation is the preferred seam,
// clause punctuation the fallback, a hard cut the last resort. When content
// remains after the last bubble, that bubble ends in an ellipsis.
func SplitBubbles(text string) []string {
	var out []string
	rest := []rune(strings.TrimSpace(text))
	for len(rest) > 0 && len(out) < MaxBubbles {
		if len(rest) <= MaxBubbleRunes {
			out = append(out, string(rest))
			rest = nil
			break
		}
		cut := seamBefore(rest, MaxBubbleRunes)
		piece := strings.TrimSpace(string(rest[:cut]))
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
		if piece != "" {
			out = append(out, piece)
		}
	}
	if len(rest) > 0 && len(out) == MaxBubbles {
		last := []rune(out[MaxBubbles-1])
		if len(last) >= MaxBubbleRunes {
			last = last[:MaxBubbleRunes-1]
		}
		out[MaxBubbles-1] = string(last) + "…"
	}
	return out
}

var (
	sentenceSeams = []rune{'。', '！', '？', '!', '?', '…'}
	clauseSeams   = []rune{'，', '、', ',', '；', ';', ' '}
)

// seamBefore picks the cut index in (0, limit] closest to limit, preferring
// sentence punctuation, then clause punctuation, then the limit itself. The
// seam rune stays with the left piece.
func seamBefore(runes []rune, limit int) int {
	for _, seams := range [][]rune{sentenceSeams, clauseSeams} {
		for i := limit - 1; i > 0; i-- {
			for _, s := range seams {
				if runes[i] == s {
					return i + 1
				}
			}
		}
	}
	return limit
}
