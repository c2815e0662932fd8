package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "draftbot/pkg/logx"
)

func TestSweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	s := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := post("old1", 7)
	old.CreatedAt = base.Add(-2 * time.Hour)
	fresh := post("new1", 7)
	fresh.CreatedAt = base.Add(-10 * time.Minute)
	s.Put(old)
	s.Put(fresh)

	r := NewReaper(s, time.Hour, 30*time.Minute, logx.Nop())
	r.now = func() time.Time { return base }

	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, err := s.Get("old1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired draft still present: %v", err)
	}
	if _, err := s.Get("new1"); err != nil {
		t.Fatalf("fresh draft removed: %v", err)
	}
}

func TestSweepExactBoundarySurvives(t *testing.T) {
	t.Parallel()
	s := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	edge := post("edge", 7)
	edge.CreatedAt = base.Add(-time.Hour) // age == TTL, not older
	s.Put(edge)

	r := NewReaper(s, time.Hour, 30*time.Minute, logx.Nop())
	r.now = func() time.Time { return base }

	if n := r.Sweep(); n != 0 {
		t.Fatalf("Sweep removed %d, want 0", n)
	}
}

func TestSweepRechecksUnderLock(t *testing.T) {
	t.Parallel()
	s := NewStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := post("gone", 7)
	p.CreatedAt = base.Add(-2 * time.Hour)
	s.Put(p)

	r := NewReaper(s, time.Hour, 30*time.Minute, logx.Nop())
	// Simulate a user action racing the sweep: the draft disappears right as
	// the sweep begins, and the re-check must not count it.
	r.now = func() time.Time {
		s.Delete("gone")
		return base
	}

	if n := r.Sweep(); n != 0 {
		t.Fatalf("Sweep removed %d for an already-removed draft", n)
	}
}

func TestSweepEmptyStore(t *testing.T) {
	t.Parallel()
	r := NewReaper(NewStore(), time.Hour, 30*time.Minute, logx.Nop())
	if n := r.Sweep(); n != 0 {
		t.Fatalf("Sweep on empty store removed %d", n)
	}
}

func TestReaperStartStopsOnCancel(t *testing.T) {
	t.Parallel()
	r := NewReaper(NewStore(), time.Hour, time.Minute, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reaper did not stop on cancel")
	}
}

func TestReaperDefaults(t *testing.T) {
	t.Parallel()
	r := NewReaper(NewStore(), 0, 0, logx.Nop())
	if r.TTL() != time.Hour {
		t.Fatalf("default TTL = %s", r.TTL())
	}
	if r.every != 30*time.Minute {
		t.Fatalf("default interval = %s", r.every)
	}
}
