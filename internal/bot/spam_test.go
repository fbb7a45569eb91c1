package bot

import (
	"testing"
	"time"
)

var spamT0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGuard() (*SpamGuard, *time.Time) {
	now := spamT0
	g := NewSpamGuard()
	g.now = func() time.Time { return now }
	g.rand = func(int) int { return 0 }
	return g, &now
}

func TestSpamGuardTriggersOnThirdRepeat(t *testing.T) {
	g, _ := newTestGuard()
	if _, ok := g.Observe("g1", "加一"); ok {
		t.Fatal("triggered on first message")
	}
	if _, ok := g.Observe("g1", "加一"); ok {
		t.Fatal("triggered on second message")
	}
	reply, ok := g.Observe("g1", "加一")
	if !ok {
		t.Fatal("did not trigger on third repeat")
	}
	if reply != spamReplies[0] {
		t.Errorf("reply = %q", reply)
	}
}

func TestSpamGuardRunMustBeUnbroken(t *testing.T) {
	g, _ := newTestGuard()
	g.Observe("g1", "加一")
	g.Observe("g1", "加一")
	g.Observe("g1", "别刷了")
	if _, ok := g.Observe("g1", "加一"); ok {
		t.Fatal("broken run still triggered")
	}
}

func TestSpamGuardCooldown(t *testing.T) {
	g, now := newTestGuard()
	g.Observe("g1", "1")
	g.Observe("g1", "1")
	if _, ok := g.Observe("g1", "1"); !ok {
		t.Fatal("first trigger missing")
	}
	// A fourth repeat inside the cooldown stays quiet.
	*now = spamT0.Add(2 * time.Second)
	if _, ok := g.Observe("g1", "1"); ok {
		t.Fatal("triggered inside cooldown")
	}
	*now = spamT0.Add(6 * time.Second)
	if _, ok := g.Observe("g1", "1"); !ok {
		t.Fatal("did not re-trigger after cooldown")
	}
}

func TestSpamGuardNormalizesContent(t *testing.T) {
	g, _ := newTestGuard()
	g.Observe("g1", "HAHA")
	g.Observe("g1", " haha ")
	if _, ok := g.Observe("g1", "Haha"); !ok {
		t.Fatal("case and whitespace variants should count as repeats")
	}
}

func TestSpamGuardGroupsIndependent(t *testing.T) {
	g, _ := newTestGuard()
	g.Observe("g1", "x")
	g.Observe("g1", "x")
	g.Observe("g2", "x")
	if _, ok := g.Observe("g2", "x"); ok {
		t.Fatal("run leaked across groups")
	}
}
