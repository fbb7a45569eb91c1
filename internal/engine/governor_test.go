package engine

import (
	"sync"
	"testing"
	"time"
)

func TestGovernorReactionWindow(t *testing.T) {
	g := NewRateGovernor(DefaultGovernorConfig())
	for i := 0; i < 10; i++ {
		if !g.TryConsumeReaction("g1", t0.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("reaction %d denied inside the budget", i+1)
		}
	}
	if g.TryConsumeReaction("g1", t0.Add(11*time.Second)) {
		t.Fatal("11th reaction allowed inside the window")
	}
	// The first slot was taken at t0 and frees once the window has passed.
	if !g.TryConsumeReaction("g1", t0.Add(301*time.Second)) {
		t.Fatal("reaction denied after the oldest slot expired")
	}
}

func TestGovernorMessageWindow(t *testing.T) {
	g := NewRateGovernor(DefaultGovernorConfig())
	for i := 0; i < 10; i++ {
		if !g.TryConsumeMessageSlot("g1", t0) {
			t.Fatalf("message %d denied inside the budget", i+1)
		}
	}
	if g.TryConsumeMessageSlot("g1", t0.Add(59*time.Second)) {
		t.Fatal("message allowed with the window full")
	}
	if !g.TryConsumeMessageSlot("g1", t0.Add(61*time.Second)) {
		t.Fatal("message denied after the window passed")
	}
}

func TestGovernorDeniedAttemptRecordsNothing(t *testing.T) {
	g := NewRateGovernor(GovernorConfig{ReactionCap: 1, ReactionWindow: time.Minute,
		MessageCap: 1, MessageWindow: time.Minute})
	if !g.TryConsumeReaction("g1", t0) {
		t.Fatal("first reaction denied")
	}
	for i := 0; i < 5; i++ {
		if g.TryConsumeReaction("g1", t0.Add(time.Second)) {
			t.Fatal("reaction allowed over cap")
		}
	}
	// Denied attempts must not extend the window.
	if !g.TryConsumeReaction("g1", t0.Add(61*time.Second)) {
		t.Fatal("slot not freed: a denied attempt was recorded")
	}
}

func TestGovernorGroupsIndependent(t *testing.T) {
	g := NewRateGovernor(GovernorConfig{ReactionCap: 1, ReactionWindow: time.Minute,
		MessageCap: 1, MessageWindow: time.Minute})
	if !g.TryConsumeReaction("g1", t0) {
		t.Fatal("g1 denied")
	}
	if !g.TryConsumeReaction("g2", t0) {
		t.Fatal("g2 budget shared with g1")
	}
}

func TestGovernorConcurrentConsumeIsAtomic(t *testing.T) {
	g := NewRateGovernor(DefaultGovernorConfig())
	var wg sync.WaitGroup
	granted := make(chan struct{}, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryConsumeReaction("g1", t0) {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)
	n := 0
	for range granted {
		n++
	}
	if n != 10 {
		t.Fatalf("granted %d reactions under contention, want exactly 10", n)
	}
}

func TestGovernorZeroConfigFallsBack(t *testing.T) {
	g := NewRateGovernor(GovernorConfig{})
	for i := 0; i < 10; i++ {
		if !g.TryConsumeReaction("g1", t0) {
			t.Fatalf("default cap too low at %d", i+1)
		}
	}
	if g.TryConsumeReaction("g1", t0) {
		t.Fatal("default reaction cap not applied")
	}
}
