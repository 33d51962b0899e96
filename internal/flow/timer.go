package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Timer schedules deferred callbacks, used to drain message bursts that
// queued up behind an in-flight processing pass.
type Timer interface {
	// ScheduleAfter runs fn after the delay and returns a cancel id.
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// Cancel stops a scheduled callback if it has not fired yet.
	Cancel(id string) error

	// Stop cancels all outstanding callbacks.
	Stop()
}

// SimpleTimer is an in-process Timer backed by time.AfterFunc.
type SimpleTimer struct {
	mu     sync.Mutex
	nextID int64
	timers map[string]*time.Timer
}

// NewSimpleTimer creates an empty timer.
func NewSimpleTimer() *SimpleTimer {
	return &SimpleTimer{timers: make(map[string]*time.Timer)}
}

// ScheduleAfter runs fn once after the delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if delay < 0 {
		return "", fmt.Errorf("delay must not be negative")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("timer-%d", t.nextID)
	t.timers[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		fn()
	})
	slog.Debug("SimpleTimer scheduled callback", "id", id, "delay", delay)
	return id, nil
}

// Cancel stops the callback with the given id.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.timers[id]
	if !ok {
		return fmt.Errorf("timer %s not found", id)
	}
	timer.Stop()
	delete(t.timers, id)
	return nil
}

// Stop cancels every outstanding callback.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
