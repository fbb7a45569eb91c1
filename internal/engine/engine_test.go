package engine

import (
	"strings"
	"testing"
	"time"
)

const selfID = "10001"

type testEngine struct {
	*Engine
	now  time.Time
	roll float64
}

func newTestEngine() *testEngine {
	te := &testEngine{now: t0, roll: 1.0}
	store := NewContextStore()
	store.now = func() time.Time { return te.now }
	te.Engine = New(selfID, store, NewThreadTracker(),
		NewRateGovernor(DefaultGovernorConfig()), DefaultHeuristics("糖果熊"))
	te.Engine.now = func() time.Time { return te.now }
	te.Engine.rand = func() float64 { return te.roll }
	return te
}

func (te *testEngine) msg(userID, text string, mentions ...string) InboundEvent {
	return InboundEvent{
		GroupID: "g1", UserID: userID, Nickname: "u" + userID,
		Text: text, Mentions: mentions, At: te.now,
	}
}

func TestEvaluatePlainMessageIsSilence(t *testing.T) {
	te := newTestEngine()
	// roll=1.0 means every probability gate fails.
	d := te.Evaluate(te.msg("u1", "你好"))
	if d.Kind != DecideSilence {
		t.Fatalf("plain greeting decided %v, want silence", d.Kind)
	}
}

func TestEvaluateSelfMessageSuppressed(t *testing.T) {
	te := newTestEngine()
	te.threads.Record("g1", selfID, "prior", te.now)
	d := te.Evaluate(te.msg(selfID, "怎么回事？"))
	if d.Kind != DecideSilence {
		t.Fatalf("own message decided %v, want silence", d.Kind)
	}
	if got := te.ctxStore.Recent("g1"); got != nil {
		t.Fatalf("own message recorded into context: %v", got)
	}
}

func TestEvaluateEmptyTextSuppressed(t *testing.T) {
	te := newTestEngine()
	for _, text := range []string{"", "   ", "\n"} {
		if d := te.Evaluate(te.msg("u1", text)); d.Kind != DecideSilence {
			t.Fatalf("blank text %q decided %v, want silence", text, d.Kind)
		}
	}
}

func TestFollowUpWithinWindow(t *testing.T) {
	te := newTestEngine()
	te.threads.Record("g1", "u1", "那本书很值得读", t0)
	te.now = t0.Add(90 * time.Second)

	d := te.Evaluate(te.msg("u1", "怎么买到呢"))
	if d.Kind != DecideGenerate {
		t.Fatalf("follow-up at 90s decided %v, want generate", d.Kind)
	}
	if !strings.Contains(d.Prompt, "那本书很值得读") || !strings.Contains(d.Prompt, "怎么买到呢") {
		t.Errorf("prompt missing prior reply or new text: %q", d.Prompt)
	}
	if d.SessionKey != "group_g1_u1" {
		t.Errorf("SessionKey = %q", d.SessionKey)
	}
}

func TestFollowUpWindowBoundary(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    DecisionKind
	}{
		{"just inside", 119_999 * time.Millisecond, DecideGenerate},
		{"just outside", 120_001 * time.Millisecond, DecideSilence},
		{"exactly at window", 120_000 * time.Millisecond, DecideSilence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine()
			te.threads.Record("g1", "u1", "prior", t0)
			te.now = t0.Add(tt.elapsed)
			if d := te.Evaluate(te.msg("u1", "然后呢")); d.Kind != tt.want {
				t.Fatalf("at %v decided %v, want %v", tt.elapsed, d.Kind, tt.want)
			}
		})
	}
}

func TestFollowUpSkippedWhenMentionTargetsOther(t *testing.T) {
	te := newTestEngine()
	te.threads.Record("g1", "u1", "prior", t0)
	te.now = t0.Add(10 * time.Second)
	if d := te.Evaluate(te.msg("u1", "然后呢", "20002")); d.Kind != DecideSilence {
		t.Fatalf("message aimed at someone else decided %v, want silence", d.Kind)
	}
	if d := te.Evaluate(te.msg("u1", "然后呢", selfID)); d.Kind != DecideGenerate {
		t.Fatalf("message mentioning the agent decided %v, want generate", d.Kind)
	}
}

func TestInterestRuleFiresWhenGatesPass(t *testing.T) {
	te := newTestEngine()
	te.roll = 0.0 // every gate passes
	d := te.Evaluate(te.msg("u1", "最近在读哲学方面的书"))
	if d.Kind != DecideGenerate {
		t.Fatalf("interest match decided %v, want generate", d.Kind)
	}
	if !strings.Contains(d.Prompt, "哲学") {
		t.Errorf("prompt lost the message text: %q", d.Prompt)
	}
}

func TestInterestRuleSilentWhenGateFails(t *testing.T) {
	te := newTestEngine()
	te.roll = 0.5 // above every probability in play
	d := te.Evaluate(te.msg("u1", "最近在读哲学方面的书"))
	if d.Kind != DecideSilence {
		t.Fatalf("failed gate decided %v, want silence", d.Kind)
	}
	// A lost roll must not consume a reaction slot.
	for i := 0; i < 10; i++ {
		if !te.gov.TryConsumeReaction("g1", te.now) {
			t.Fatal("probability-gated silence consumed a reaction slot")
		}
	}
}

func TestReactionBudgetExhaustionEleventhIsSilence(t *testing.T) {
	te := newTestEngine()
	te.roll = 0.0
	for i := 0; i < 10; i++ {
		te.now = t0.Add(time.Duration(i) * time.Second)
		d := te.Evaluate(te.msg("u1", "今天聊聊音乐吧"))
		if d.Kind != DecideGenerate {
			t.Fatalf("eligible message %d decided %v, want generate", i+1, d.Kind)
		}
	}
	te.now = t0.Add(11 * time.Second)
	if d := te.Evaluate(te.msg("u1", "今天聊聊音乐吧")); d.Kind != DecideSilence {
		t.Fatal("11th eligible message inside the window was not silenced")
	}
}

func TestCommentOnRecentReply(t *testing.T) {
	te := newTestEngine()
	te.ctxStore.Append(ContextEvent{At: t0, GroupID: "g1", UserID: selfID,
		Text: "我喜欢夏天的傍晚", Kind: KindAgentReply})
	te.now = t0.Add(60 * time.Second)

	d := te.Evaluate(te.msg("u2", "不对吧，傍晚蚊子很多"))
	if d.Kind != DecideGenerate {
		t.Fatalf("comment on reply decided %v, want generate", d.Kind)
	}
	if !strings.Contains(d.Prompt, "我喜欢夏天的傍晚") {
		t.Errorf("prompt lost the prior reply: %q", d.Prompt)
	}
}

func TestCommentWindowExpired(t *testing.T) {
	te := newTestEngine()
	te.ctxStore.Append(ContextEvent{At: t0, GroupID: "g1", UserID: selfID,
		Text: "earlier", Kind: KindAgentReply})
	te.now = t0.Add(181 * time.Second)
	if d := te.Evaluate(te.msg("u2", "不对吧")); d.Kind != DecideSilence {
		t.Fatal("comment after 180s still triggered")
	}
}

func TestRedPacketDirectReply(t *testing.T) {
	te := newTestEngine()
	d := te.Evaluate(te.msg("u1", "[CQ:redbag,title=恭喜发财]"))
	if d.Kind != DecideDirectReply {
		t.Fatalf("red packet decided %v, want direct reply", d.Kind)
	}
	if d.Text != "诶？有红包？手慢无啊..." {
		t.Errorf("reply text = %q", d.Text)
	}
	// The canned reply costs a reaction slot.
	for i := 0; i < 9; i++ {
		if !te.gov.TryConsumeReaction("g1", te.now) {
			t.Fatalf("slot %d missing, red packet should cost exactly one", i+1)
		}
	}
	if te.gov.TryConsumeReaction("g1", te.now) {
		t.Fatal("red packet reply did not consume a reaction slot")
	}
}

func TestIdempotentSilenceDoesNotMutateGovernor(t *testing.T) {
	te := newTestEngine()
	ev := te.msg("u1", "大家晚饭吃了什么好吃的分享一下")
	for i := 0; i < 2; i++ {
		if d := te.Evaluate(ev); d.Kind != DecideSilence {
			t.Fatalf("replay %d decided %v, want silence", i, d.Kind)
		}
	}
	for i := 0; i < 10; i++ {
		if !te.gov.TryConsumeReaction("g1", te.now) {
			t.Fatal("silence path consumed reaction budget")
		}
	}
}

func TestEvaluateRecordsInboundIntoContext(t *testing.T) {
	te := newTestEngine()
	te.Evaluate(te.msg("u1", "随便说点什么热闹热闹"))
	te.Evaluate(te.msg("u2", "另一条消息", selfID))
	got := te.ctxStore.Recent("g1")
	if len(got) != 2 {
		t.Fatalf("context holds %d events, want 2", len(got))
	}
	if got[0].Kind != KindUserMessage || got[1].Kind != KindMention {
		t.Errorf("kinds = %v, %v", got[0].Kind, got[1].Kind)
	}
}

func TestColdRoomNudge(t *testing.T) {
	te := newTestEngine()
	te.roll = 0.0
	te.Evaluate(te.msg("u1", "嗯嗯嗯"))
	te.Evaluate(te.msg("u2", "是哦"))
	d := te.Evaluate(te.msg("u3", "哈哈"))
	if d.Kind != DecideDirectReply || d.Text != te.heur.ColdRoomReply {
		t.Fatalf("cold room decided %+v, want the nudge reply", d)
	}
}
