package engine

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(now *time.Time) *ContextStore {
	s := NewContextStore()
	s.now = func() time.Time { return *now }
	return s
}

func TestContextStoreOrderWithinGroup(t *testing.T) {
	now := t0
	s := newTestStore(&now)
	for i, txt := range []string{"一", "二", "三"} {
		s.Append(ContextEvent{At: t0.Add(time.Duration(i) * time.Second), GroupID: "g1", Text: txt})
	}
	got := s.Recent("g1")
	if len(got) != 3 {
		t.Fatalf("Recent returned %d events, want 3", len(got))
	}
	for i, want := range []string{"一", "二", "三"} {
		if got[i].Text != want {
			t.Errorf("event %d = %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestContextStoreEvictsAtHorizon(t *testing.T) {
	now := t0
	s := newTestStore(&now)
	s.Append(ContextEvent{At: t0, GroupID: "g1", Text: "old"})
	s.Append(ContextEvent{At: t0.Add(10 * time.Second), GroupID: "g1", Text: "new"})

	now = t0.Add(ContextHorizon + time.Second)
	got := s.Recent("g1")
	if len(got) != 1 || got[0].Text != "new" {
		t.Fatalf("after horizon passed got %v, want only the new event", got)
	}

	now = t0.Add(ContextHorizon + 11*time.Second)
	if got := s.Recent("g1"); got != nil {
		t.Fatalf("expected empty log after full eviction, got %v", got)
	}
}

func TestContextStoreGroupsAreIndependent(t *testing.T) {
	now := t0
	s := newTestStore(&now)
	s.Append(ContextEvent{At: t0, GroupID: "g1", Text: "a"})
	s.Append(ContextEvent{At: t0, GroupID: "g2", Text: "b"})
	if got := s.Recent("g1"); len(got) != 1 || got[0].Text != "a" {
		t.Errorf("g1 log polluted: %v", got)
	}
	if got := s.Recent("g3"); got != nil {
		t.Errorf("unknown group should return nil, got %v", got)
	}
}

func TestContextStoreLastAgentReply(t *testing.T) {
	now := t0
	s := newTestStore(&now)
	if _, ok := s.LastAgentReply("g1"); ok {
		t.Fatal("empty store reported an agent reply")
	}
	s.Append(ContextEvent{At: t0, GroupID: "g1", Text: "user", Kind: KindUserMessage})
	s.Append(ContextEvent{At: t0.Add(time.Second), GroupID: "g1", Text: "first", Kind: KindAgentReply})
	s.Append(ContextEvent{At: t0.Add(2 * time.Second), GroupID: "g1", Text: "second", Kind: KindAgentReply})
	s.Append(ContextEvent{At: t0.Add(3 * time.Second), GroupID: "g1", Text: "user again", Kind: KindUserMessage})

	last, ok := s.LastAgentReply("g1")
	if !ok || last.Text != "second" {
		t.Fatalf("LastAgentReply = %v, %v; want the newest reply", last, ok)
	}

	now = t0.Add(ContextHorizon + 3*time.Second)
	if _, ok := s.LastAgentReply("g1"); ok {
		t.Fatal("evicted reply still returned")
	}
}

func TestContextStoreRecentReturnsCopy(t *testing.T) {
	now := t0
	s := newTestStore(&now)
	s.Append(ContextEvent{At: t0, GroupID: "g1", Text: "orig"})
	got := s.Recent("g1")
	got[0].Text = "mutated"
	if again := s.Recent("g1"); again[0].Text != "orig" {
		t.Fatal("Recent exposed internal slice")
	}
}
