package integrity

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsPeriodically(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(5*time.Millisecond, func() { runs.Add(1) }, nil)
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 3 runs, got %d", runs.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedulerNoImmediateRun(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(time.Hour, func() { runs.Add(1) }, nil)
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if got := runs.Load(); got != 0 {
		t.Fatalf("first run should wait one full interval, got %d runs", got)
	}
}

func TestSchedulerStopWaits(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var done atomic.Bool
	s := NewScheduler(time.Millisecond, func() {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		done.Store(true)
	}, nil)
	s.Start()
	<-started
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	s.Stop()
	if !done.Load() {
		t.Fatal("Stop returned before the in-flight run finished")
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler(time.Hour, func() {}, nil)
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSchedulerIdentity(t *testing.T) {
	a := NewScheduler(time.Minute, func() {}, nil)
	b := NewScheduler(time.Minute, func() {}, nil)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("schedule IDs must be unique and non-empty, got %q and %q", a.ID(), b.ID())
	}
	if a.Interval() != time.Minute {
		t.Fatalf("Interval() = %v, want 1m", a.Interval())
	}
}
