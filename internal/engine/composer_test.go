package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type fakeGen struct {
	reply string
	err   error
	calls int
	key   string
}

func (f *fakeGen) Generate(_ context.Context, sessionKey, _ string) (string, error) {
	f.calls++
	f.key = sessionKey
	return f.reply, f.err
}

func TestComposeShortReplyOneBubble(t *testing.T) {
	gen := &fakeGen{reply: "好呀，我也这么想。"}
	c := NewComposer(gen)
	bubbles, err := c.Compose(context.Background(), "g1", GenerateWith("p", "k"))
	if err != nil {
		t.Fatal(err)
	}
	if len(bubbles) != 1 || bubbles[0].Text != "好呀，我也这么想。" {
		t.Fatalf("bubbles = %v", bubbles)
	}
	if bubbles[0].GroupID != "g1" {
		t.Errorf("GroupID = %q", bubbles[0].GroupID)
	}
	if gen.key != "k" {
		t.Errorf("session key = %q", gen.key)
	}
}

func TestComposeSplitsAtSentencePunctuation(t *testing.T) {
	// 40 runes with one sentence mark at rune 20: must split there, not mid-word.
	reply := strings.Repeat("前", 19) + "。" + strings.Repeat("后", 20)
	c := NewComposer(&fakeGen{reply: reply})
	bubbles, err := c.Compose(context.Background(), "g1", GenerateWith("p", "k"))
	if err != nil {
		t.Fatal(err)
	}
	if len(bubbles) != 2 {
		t.Fatalf("got %d bubbles, want 2: %v", len(bubbles), bubbles)
	}
	if !strings.HasSuffix(bubbles[0].Text, "。") {
		t.Errorf("first bubble does not end at the sentence mark: %q", bubbles[0].Text)
	}
	for i, b := range bubbles {
		if n := utf8.RuneCountInString(b.Text); n > MaxBubbleRunes {
			t.Errorf("bubble %d has %d runes", i, n)
		}
	}
}

func TestComposeGenerationErrorYieldsNothing(t *testing.T) {
	c := NewComposer(&fakeGen{err: errors.New("upstream 500")})
	bubbles, err := c.Compose(context.Background(), "g1", GenerateWith("p", "k"))
	if err != nil {
		t.Fatalf("generation failure must be swallowed, got %v", err)
	}
	if bubbles != nil {
		t.Fatalf("got bubbles from a failed generation: %v", bubbles)
	}
}

func TestComposeEmptyReplyYieldsNothing(t *testing.T) {
	for _, reply := range []string{"", "   ", "【思考中】", "<think>internal</think>"} {
		c := NewComposer(&fakeGen{reply: reply})
		bubbles, err := c.Compose(context.Background(), "g1", GenerateWith("p", "k"))
		if err != nil || bubbles != nil {
			t.Fatalf("reply %q produced %v, %v", reply, bubbles, err)
		}
	}
}

func TestComposeRejectsNonGenerateDecision(t *testing.T) {
	c := NewComposer(&fakeGen{reply: "x"})
	if _, err := c.Compose(context.Background(), "g1", Silence()); err == nil {
		t.Fatal("composing a silence decision must fail")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bracket noise", "【开心】今天天气真好", "今天天气真好"},
		{"think block", "<think>reasoning\nhere</think>嗯嗯", "嗯嗯"},
		{"wrapping quotes", "“你好呀”", "你好呀"},
		{"corner quotes", "「早安」", "早安"},
		{"plain", "原样保留", "原样保留"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitBubblesBounds(t *testing.T) {
	long := strings.Repeat("长", 200)
	got := SplitBubbles(long)
	if len(got) != MaxBubbles {
		t.Fatalf("got %d bubbles, want %d", len(got), MaxBubbles)
	}
	for i, b := range got {
		if n := utf8.RuneCountInString(b); n > MaxBubbleRunes {
			t.Errorf("bubble %d has %d runes, cap is %d", i, n, MaxBubbleRunes)
		}
	}
	if !strings.HasSuffix(got[MaxBubbles-1], "…") {
		t.Errorf("truncated reply must end with an ellipsis, got %q", got[MaxBubbles-1])
	}
}

func TestSplitBubblesPrefersClauseSeam(t *testing.T) {
	in := strings.Repeat("一", 10) + "，" + strings.Repeat("二", 20)
	got := SplitBubbles(in)
	if len(got) != 2 {
		t.Fatalf("got %d bubbles, want 2: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], "，") {
		t.Errorf("first bubble should end at the clause seam, got %q", got[0])
	}
}

func TestSplitBubblesShortInput(t *testing.T) {
	got := SplitBubbles("就一句话")
	if len(got) != 1 || got[0] != "就一句话" {
		t.Fatalf("got %v", got)
	}
}
