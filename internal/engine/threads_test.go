package engine

import (
	"testing"
	"time"
)

func TestThreadTrackerRecordAndLookup(t *testing.T) {
	tr := NewThreadTracker()
	if _, ok := tr.Lookup("g1", "u1"); ok {
		t.Fatal("empty tracker reported a thread")
	}
	tr.Record("g1", "u1", "你好呀", t0)
	ts, ok := tr.Lookup("g1", "u1")
	if !ok || ts.LastReplyText != "你好呀" || !ts.LastReplyAt.Equal(t0) {
		t.Fatalf("Lookup = %+v, %v", ts, ok)
	}
	if _, ok := tr.Lookup("g1", "u2"); ok {
		t.Fatal("thread leaked across users")
	}
	if _, ok := tr.Lookup("g2", "u1"); ok {
		t.Fatal("thread leaked across groups")
	}
}

func TestThreadTrackerOverwrites(t *testing.T) {
	tr := NewThreadTracker()
	tr.Record("g1", "u1", "first", t0)
	tr.Record("g1", "u1", "second", t0.Add(time.Minute))
	ts, _ := tr.Lookup("g1", "u1")
	if ts.LastReplyText != "second" {
		t.Fatalf("LastReplyText = %q, want the newer reply", ts.LastReplyText)
	}
}

func TestThreadTrackerKeepsStaleEntries(t *testing.T) {
	tr := NewThreadTracker()
	tr.Record("g1", "u1", "old reply", t0)
	// Recency is enforced by the engine; the tracker itself returns
	// arbitrarily old entries.
	ts, ok := tr.Lookup("g1", "u1")
	if !ok || !ts.LastReplyAt.Equal(t0) {
		t.Fatalf("stale entry dropped: %+v, %v", ts, ok)
	}
}

func TestThreadTrackerIgnoresEmptyKeys(t *testing.T) {
	tr := NewThreadTracker()
	tr.Record("", "u1", "x", t0)
	tr.Record("g1", "", "x", t0)
	if _, ok := tr.Lookup("", "u1"); ok {
		t.Fatal("recorded a thread with no group")
	}
	if _, ok := tr.Lookup("g1", ""); ok {
		t.Fatal("recorded a thread with no user")
	}
}
