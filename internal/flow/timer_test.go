package flow

import (
	"testing"
	"time"
)

func TestScheduleAfterFires(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	if _, err := timer.ScheduleAfter(5*time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected callback to fire")
	}
}

func TestScheduleAfterRejectsNegativeDelay(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()
	if _, err := timer.ScheduleAfter(-time.Second, func() {}); err == nil {
		t.Error("expected an error for a negative delay")
	}
}

func TestCancelPreventsCallback(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{}, 1)
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	select {
	case <-fired:
		t.Error("expected cancelled callback not to fire")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCancelUnknownID(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()
	if err := timer.Cancel("timer-404"); err == nil {
		t.Error("expected an error for an unknown timer id")
	}
}
