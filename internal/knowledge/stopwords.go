package knowledge

import (
	"strings"
	"unicode"
)

// stopwords lists tokens that carry no signal on their own. Chinese bigram
// tokens are additionally dropped when every rune in them is a stop rune.
var stopwords = buildSet(
	"什么", "怎么", "没有", "一个", "自己", "这个", "那个", "可以", "就是", "还是",
	"a", "an", "the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"is", "am", "are", "was", "were", "be", "been", "being", "have", "has", "had", "do", "does",
	"did", "can", "could", "will", "would", "should", "may", "might", "must",
)

var stopRunes = map[rune]struct{}{}

func init() {
	for _, r := range "的了在是我有和就不人都一上也很到说要去你会着看好这那里么之与及或日月年吗呢啊吧哦嗯呀啦哇哈哼哎喂嘛呗喽噢呦呵嘻嘿" {
		stopRunes[r] = struct{}{}
	}
}

func buildSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// isStopToken reports whether tok should be dropped: either a listed
// stopword, or a Han token made entirely of stop runes.
func isStopToken(tok string) bool {
	if _, ok := stopwords[tok]; ok {
		return true
	}
	allStop := true
	for _, r := range tok {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
		if _, ok := stopRunes[r]; !ok {
			allStop = false
		}
	}
	return allStop && strings.TrimSpace(tok) != ""
}
