// Package models defines the core data structures for Hamraz.
//
// It includes participants, messages, turn results, and the API envelope
// types shared across modules.
package models

import (
	"errors"
	"time"
)

// Stage describes how far a participant has progressed in the program.
type Stage string

const (
	StageBeginning    Stage = "beginning"
	StageIntermediate Stage = "intermediate"
	StageAdvanced     Stage = "advanced"
)

// Group is the study arm a participant is assigned to at enrollment.
// It is fixed for the lifetime of the participant and selects which
// orchestrator variant handles their turns.
type Group string

const (
	GroupControl      Group = "control"
	GroupIntervention Group = "intervention"
	GroupPlacebo      Group = "placebo"
)

// Validation constants for input validation
const (
	// MaxMessageTextLength defines the maximum allowed length for an inbound message
	MaxMessageTextLength = 4096
	// MaxParticipantNameLength defines the maximum allowed length for participant names
	MaxParticipantNameLength = 200
)

// Error variables for better error handling and testability
var (
	ErrEmptyParticipantID  = errors.New("participant id cannot be empty")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrEmptyMessageText    = errors.New("message text cannot be empty")
	ErrMessageTextTooLong  = errors.New("message text exceeds maximum length")
	ErrInvalidStage        = errors.New("invalid participant stage")
	ErrInvalidGroup        = errors.New("invalid participant group")
	ErrNameTooLong         = errors.New("participant name exceeds maximum length")
)

// IsValidStage checks if the given stage is supported.
func IsValidStage(s Stage) bool {
	switch s {
	case StageBeginning, StageIntermediate, StageAdvanced:
		return true
	default:
		return false
	}
}

// IsValidGroup checks if the given group is supported.
func IsValidGroup(g Group) bool {
	switch g {
	case GroupControl, GroupIntervention, GroupPlacebo:
		return true
	default:
		return false
	}
}

// Participant represents an enrolled user of the counseling service.
type Participant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Stage      Stage     `json:"stage"`
	Group      Group     `json:"group"`
	EnrolledAt time.Time `json:"enrolled_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DayIndex returns the 1-based calendar-day bucket since enrollment.
// The enrollment day itself is day 1.
func (p *Participant) DayIndex(now time.Time) int {
	enrolled := p.EnrolledAt
	if enrolled.IsZero() {
		return 1
	}
	startOfEnrollDay := time.Date(enrolled.Year(), enrolled.Month(), enrolled.Day(), 0, 0, 0, 0, enrolled.Location())
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, enrolled.Location())
	days := int(startOfToday.Sub(startOfEnrollDay).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// Message is one immutable record in a participant's conversation log.
type Message struct {
	ID            int64     `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Text          string    `json:"text"`
	IsFromUser    bool      `json:"is_from_user"`
	SessionID     int       `json:"session_id"`
	State         string    `json:"state,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// MemoryState is the rolling summary of everything a participant has
// revealed, plus a pointer to the last message folded into the summary.
// Messages after LastFoldedID are unprocessed and must appear verbatim
// in prompt context until the next fold.
type MemoryState struct {
	ParticipantID string    `json:"participant_id"`
	Summary       string    `json:"summary"`
	LastFoldedID  int64     `json:"last_folded_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TurnResult is the outcome of processing one conversational turn.
// A nil Reply signals that the message was buffered behind an in-flight
// pass and the caller should poll for the coalesced reply.
type TurnResult struct {
	Reply           *string  `json:"reply"`
	Recommendations []string `json:"recommendations"`
	State           string   `json:"state"`
	Explain         *string  `json:"explain,omitempty"`
	ExerciseID      *string  `json:"exercise_id,omitempty"`
}

// Buffered reports whether the turn was queued instead of processed.
func (r TurnResult) Buffered() bool {
	return r.Reply == nil
}

// APIResponse is the common JSON envelope for HTTP responses.
type APIResponse struct {
	Status string      `json:"status"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Success wraps a result in a success envelope.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// Error wraps a message in an error envelope.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Error: message}
}
