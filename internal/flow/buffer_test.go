package flow

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryBeginProcessingSingleWinner(t *testing.T) {
	b := NewMessageBuffer()

	const goroutines = 32
	var winners int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if b.TryBeginProcessing("user-1") {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
}

func TestTokenIsPerParticipant(t *testing.T) {
	b := NewMessageBuffer()
	if !b.TryBeginProcessing("user-1") {
		t.Fatal("expected first acquisition to succeed")
	}
	if !b.TryBeginProcessing("user-2") {
		t.Error("expected a different participant to acquire independently")
	}
	if b.TryBeginProcessing("user-1") {
		t.Error("expected second acquisition for same participant to fail")
	}
	b.EndProcessing("user-1")
	if !b.TryBeginProcessing("user-1") {
		t.Error("expected acquisition to succeed after release")
	}
}

func TestDrainReturnsAllPendingExactlyOnce(t *testing.T) {
	b := NewMessageBuffer()
	b.TryBeginProcessing("user-1")

	const producers = 8
	const perProducer = 25
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				b.Enqueue("user-1", "msg")
			}
		}()
	}
	wg.Wait()

	got := b.Drain("user-1")
	if len(got) != producers*perProducer {
		t.Errorf("expected %d drained messages, got %d", producers*perProducer, len(got))
	}
	if again := b.Drain("user-1"); len(again) != 0 {
		t.Errorf("expected second drain to be empty, got %d", len(again))
	}
}

func TestDrainPreservesArrivalOrder(t *testing.T) {
	b := NewMessageBuffer()
	b.TryBeginProcessing("user-1")
	b.Enqueue("user-1", "first")
	b.Enqueue("user-1", "second")
	b.Enqueue("user-1", "third")

	got := b.Drain("user-1")
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestEndProcessingReportsLatePending(t *testing.T) {
	b := NewMessageBuffer()
	b.TryBeginProcessing("user-1")
	b.Drain("user-1")
	b.Enqueue("user-1", "arrived during pass")

	if n := b.EndProcessing("user-1"); n != 1 {
		t.Errorf("expected 1 pending at release, got %d", n)
	}
}

func TestConcatenate(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{"سلام"}, "سلام"},
		{"joins with single space", []string{"سلام", "خوبی؟"}, "سلام خوبی؟"},
		{"collapses internal whitespace", []string{"سلام   دوست\tمن", " خوبی؟ "}, "سلام دوست من خوبی؟"},
		{"skips blank parts", []string{"سلام", "   ", "خوبی؟"}, "سلام خوبی؟"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Concatenate(tt.texts); got != tt.want {
				t.Errorf("Concatenate(%v) = %q, want %q", tt.texts, got, tt.want)
			}
		})
	}
}
