// Package store provides storage backends for Hamraz.
//
// It persists the per-participant message log, memory states, and
// participant records. An in-memory store backs tests; SQLite and
// PostgreSQL back deployments.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/Hamraz/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the data source name for the store backend.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Store defines the persistence operations the orchestration core depends on.
// The message log is append-only and ordered per participant; memory states
// and participants are upserted whole.
type Store interface {
	// AddMessage appends a message to the participant's log, assigning its
	// id and timestamp, and returns the stored record.
	AddMessage(msg models.Message) (models.Message, error)

	// GetMessages returns all messages for a participant in ascending
	// timestamp order. A sessionID > 0 restricts to that session.
	GetMessages(participantID string, sessionID int) ([]models.Message, error)

	// GetMessagesAfter returns messages with id greater than afterID in
	// ascending order. A sessionID > 0 restricts to that session.
	GetMessagesAfter(participantID string, afterID int64, sessionID int) ([]models.Message, error)

	// GetMaxSessionID returns the highest session id recorded for the
	// participant, or 0 if they have no messages.
	GetMaxSessionID(participantID string) (int, error)

	// GetMemoryState returns the participant's memory state, or nil if none exists.
	GetMemoryState(participantID string) (*models.MemoryState, error)

	// SaveMemoryState stores or replaces the participant's memory state.
	SaveMemoryState(state models.MemoryState) error

	// GetParticipant returns a participant by id, or nil if not enrolled.
	GetParticipant(id string) (*models.Participant, error)

	// SaveParticipant stores or replaces a participant record.
	SaveParticipant(p models.Participant) error

	// ListParticipants returns all enrolled participants.
	ListParticipants() ([]models.Participant, error)

	// Close releases any resources held by the store.
	Close() error
}

// InMemoryStore is a simple in-memory store used by tests and local runs.
type InMemoryStore struct {
	mu           sync.RWMutex
	nextID       int64
	messages     map[string][]models.Message
	memories     map[string]models.MemoryState
	participants map[string]models.Participant
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages:     make(map[string][]models.Message),
		memories:     make(map[string]models.MemoryState),
		participants: make(map[string]models.Participant),
	}
}

// AddMessage appends a message, assigning a monotonically increasing id.
func (s *InMemoryStore) AddMessage(msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.messages[msg.ParticipantID] = append(s.messages[msg.ParticipantID], msg)
	return msg, nil
}

// GetMessages returns messages for a participant, optionally one session.
func (s *InMemoryStore) GetMessages(participantID string, sessionID int) ([]models.Message, error) {
	return s.GetMessagesAfter(participantID, 0, sessionID)
}

// GetMessagesAfter returns messages with id > afterID in ascending order.
func (s *InMemoryStore) GetMessagesAfter(participantID string, afterID int64, sessionID int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, m := range s.messages[participantID] {
		if m.ID <= afterID {
			continue
		}
		if sessionID > 0 && m.SessionID != sessionID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetMaxSessionID returns the highest session id seen for the participant.
func (s *InMemoryStore) GetMaxSessionID(participantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, m := range s.messages[participantID] {
		if m.SessionID > max {
			max = m.SessionID
		}
	}
	return max, nil
}

// GetMemoryState returns the stored memory state, or nil if none exists.
func (s *InMemoryStore) GetMemoryState(participantID string) (*models.MemoryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.memories[participantID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// SaveMemoryState stores or replaces the memory state.
func (s *InMemoryStore) SaveMemoryState(state models.MemoryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[state.ParticipantID] = state
	return nil
}

// GetParticipant returns a participant by id, or nil if unknown.
func (s *InMemoryStore) GetParticipant(id string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SaveParticipant stores or replaces a participant record.
func (s *InMemoryStore) SaveParticipant(p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[p.ID] = p
	return nil
}

// ListParticipants returns all participants in unspecified order.
func (s *InMemoryStore) ListParticipants() ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
