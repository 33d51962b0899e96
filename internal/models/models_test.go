package models

import (
	"strings"
	"testing"
	"time"
)

func TestDayIndex(t *testing.T) {
	loc := time.UTC
	enrolled := time.Date(2026, 3, 10, 15, 30, 0, 0, loc)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same day later", time.Date(2026, 3, 10, 23, 0, 0, 0, loc), 1},
		{"next day early morning", time.Date(2026, 3, 11, 0, 5, 0, 0, loc), 2},
		{"a week in", time.Date(2026, 3, 16, 12, 0, 0, 0, loc), 7},
		{"clock skew before enrollment", time.Date(2026, 3, 9, 12, 0, 0, 0, loc), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Participant{EnrolledAt: enrolled}
			if got := p.DayIndex(tt.now); got != tt.want {
				t.Errorf("DayIndex(%v) = %d, want %d", tt.now, got, tt.want)
			}
		})
	}

	t.Run("zero enrollment defaults to day 1", func(t *testing.T) {
		var p Participant
		if got := p.DayIndex(time.Now()); got != 1 {
			t.Errorf("expected day 1 for zero enrollment, got %d", got)
		}
	})
}

func TestValidationHelpers(t *testing.T) {
	if !IsValidStage(StageBeginning) || !IsValidStage(StageAdvanced) {
		t.Error("expected defined stages to be valid")
	}
	if IsValidStage("expert") {
		t.Error("expected unknown stage to be invalid")
	}
	if !IsValidGroup(GroupPlacebo) {
		t.Error("expected defined group to be valid")
	}
	if IsValidGroup("shadow") {
		t.Error("expected unknown group to be invalid")
	}
}

func TestTurnResultBuffered(t *testing.T) {
	var r TurnResult
	if !r.Buffered() {
		t.Error("expected nil reply to report buffered")
	}
	reply := "سلام"
	r.Reply = &reply
	if r.Buffered() {
		t.Error("expected set reply to report not buffered")
	}
}

func TestEnrollmentRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     EnrollmentRequest
		wantErr error
	}{
		{"empty is valid", EnrollmentRequest{}, nil},
		{"full valid", EnrollmentRequest{Name: "مریم", Stage: StageBeginning, Group: GroupControl}, nil},
		{"name too long", EnrollmentRequest{Name: strings.Repeat("x", MaxParticipantNameLength+1)}, ErrNameTooLong},
		{"bad stage", EnrollmentRequest{Stage: "expert"}, ErrInvalidStage},
		{"bad group", EnrollmentRequest{Group: "shadow"}, ErrInvalidGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     MessageRequest
		wantErr error
	}{
		{"valid", MessageRequest{ParticipantID: "u1", Text: "سلام"}, nil},
		{"missing participant", MessageRequest{Text: "سلام"}, ErrEmptyParticipantID},
		{"missing text", MessageRequest{ParticipantID: "u1"}, ErrEmptyMessageText},
		{"text too long", MessageRequest{ParticipantID: "u1", Text: strings.Repeat("x", MaxMessageTextLength+1)}, ErrMessageTextTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
