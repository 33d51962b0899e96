// Package models defines state management structures for Hamraz dialogue flows.
package models

// StateType identifies a state in the counseling dialogue protocol.
type StateType string

// Dialogue protocol states. Content states produce a user-facing reply;
// decider states classify the last user message and route immediately.
const (
	StateGreeting                  StateType = "GREETING"
	StateEmotion                   StateType = "EMOTION"
	StateEmotionDecider            StateType = "EMOTION_DECIDER"
	StateEventDiscussion           StateType = "EVENT_DISCUSSION"
	StateAskExercise               StateType = "ASK_EXERCISE"
	StateAskExerciseDecider        StateType = "ASK_EXERCISE_DECIDER"
	StateExerciseSuggestion        StateType = "EXERCISE_SUGGESTION"
	StateExerciseSuggestionDecider StateType = "EXERCISE_SUGGESTION_DECIDER"
	StateFeedback                  StateType = "FEEDBACK"
	StateLikeAnotherExercise       StateType = "LIKE_ANOTHER_EXERCISE"
	StateLikeAnotherDecider        StateType = "LIKE_ANOTHER_DECIDER"
	StateThanks                    StateType = "THANKS"
	StateEnd                       StateType = "END"
)

// StateInitial is the state every new or reset session starts in.
const StateInitial = StateGreeting

// SessionState is the ephemeral per-participant dialogue state. It is
// owned exclusively by one participant id, rebuilt lazily on first turn,
// and reset on explicit session end. It is never shared across users.
type SessionState struct {
	CurrentState       StateType
	TurnsInState       int
	TurnsTotal         int
	ExercisesCompleted map[string]bool
	CurrentSessionID   int
	LastExerciseID     string
	LastReply          string
}

// NewSessionState creates a fresh session state starting at the initial state.
func NewSessionState(sessionID int) *SessionState {
	return &SessionState{
		CurrentState:       StateInitial,
		ExercisesCompleted: make(map[string]bool),
		CurrentSessionID:   sessionID,
	}
}

// Transition moves the session to a new state and resets the per-state
// turn counter, mirroring the reference protocol's re-entry semantics.
func (s *SessionState) Transition(to StateType) {
	s.CurrentState = to
	s.TurnsInState = 0
}
