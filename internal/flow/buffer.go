package flow

import (
	"log/slog"
	"strings"
	"sync"
)

// MessageBuffer coalesces rapid message bursts per participant. While a
// processing pass is in flight for a participant, later messages are
// queued instead of starting concurrent passes; the pass drains them on
// completion and answers the burst with a single reply.
//
// All operations are safe for concurrent use. At most one caller holds
// the processing token for a given participant at a time.
type MessageBuffer struct {
	mu      sync.Mutex
	entries map[string]*bufferEntry
}

type bufferEntry struct {
	processing bool
	pending    []string
}

// NewMessageBuffer creates an empty buffer.
func NewMessageBuffer() *MessageBuffer {
	return &MessageBuffer{entries: make(map[string]*bufferEntry)}
}

// TryBeginProcessing attempts to acquire the processing token for the
// participant. It returns true if the caller now owns the in-flight pass
// and false if another pass is already running.
func (b *MessageBuffer) TryBeginProcessing(participantID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(participantID)
	if e.processing {
		return false
	}
	e.processing = true
	return true
}

// Enqueue appends a message text to the participant's pending queue.
// Call this only after TryBeginProcessing returned false.
func (b *MessageBuffer) Enqueue(participantID, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(participantID)
	e.pending = append(e.pending, text)
	slog.Debug("MessageBuffer enqueued message", "participantID", participantID, "pending", len(e.pending))
}

// Drain removes and returns all pending texts for the participant in
// arrival order. The processing token is not released.
func (b *MessageBuffer) Drain(participantID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(participantID)
	out := e.pending
	e.pending = nil
	return out
}

// EndProcessing releases the processing token. It returns the number of
// messages that arrived while the token was held and are still pending,
// so the caller can decide whether another pass is needed.
func (b *MessageBuffer) EndProcessing(participantID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(participantID)
	e.processing = false
	return len(e.pending)
}

// Pending returns the number of queued texts for the participant.
func (b *MessageBuffer) Pending(participantID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entry(participantID).pending)
}

// entry returns the participant's buffer entry, creating it if needed.
// Caller must hold b.mu.
func (b *MessageBuffer) entry(participantID string) *bufferEntry {
	e, ok := b.entries[participantID]
	if !ok {
		e = &bufferEntry{}
		b.entries[participantID] = e
	}
	return e
}

// Concatenate joins buffered texts into a single turn text: parts are
// joined with one space and internal whitespace runs collapse to one
// space, so the result reads as one utterance.
func Concatenate(texts []string) string {
	var parts []string
	for _, t := range texts {
		fields := strings.Fields(t)
		if len(fields) == 0 {
			continue
		}
		parts = append(parts, strings.Join(fields, " "))
	}
	return strings.Join(parts, " ")
}
