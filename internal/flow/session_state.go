package flow

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/Hamraz/internal/models"
	"github.com/BTreeMap/Hamraz/internal/store"
)

// SessionStates holds the ephemeral dialogue state of every active
// participant, keyed by participant id. State is rebuilt lazily on first
// access: the session counter continues from the highest session id in
// the persisted log, so a process restart starts a fresh session rather
// than corrupting an old one.
type SessionStates struct {
	mu     sync.Mutex
	store  store.Store
	states map[string]*models.SessionState
}

// NewSessionStates creates an empty registry over the given store.
func NewSessionStates(st store.Store) *SessionStates {
	return &SessionStates{store: st, states: make(map[string]*models.SessionState)}
}

// Get returns the participant's current session state, creating one for
// the next session after the last persisted session if none is active.
func (s *SessionStates) Get(participantID string) (*models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[participantID]; ok {
		return st, nil
	}
	maxSession, err := s.store.GetMaxSessionID(participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to determine session id: %w", err)
	}
	st := models.NewSessionState(maxSession + 1)
	s.states[participantID] = st
	slog.Debug("SessionStates created session", "participantID", participantID, "sessionID", st.CurrentSessionID)
	return st, nil
}

// Reset ends the participant's active session. Completed exercises carry
// over into the next session so they are not suggested again.
func (s *SessionStates) Reset(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.states[participantID]
	if !ok {
		return
	}
	next := models.NewSessionState(old.CurrentSessionID + 1)
	for id := range old.ExercisesCompleted {
		next.ExercisesCompleted[id] = true
	}
	s.states[participantID] = next
	slog.Info("SessionStates reset session", "participantID", participantID, "sessionID", next.CurrentSessionID)
}
