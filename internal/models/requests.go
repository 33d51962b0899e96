package models

// EnrollmentRequest is the body of POST /participants. Group is
// optional; when empty the server balances assignment across arms.
type EnrollmentRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Stage Stage  `json:"stage,omitempty"`
	Group Group  `json:"group,omitempty"`
}

// Validate checks enrollment fields.
func (r *EnrollmentRequest) Validate() error {
	if len(r.Name) > MaxParticipantNameLength {
		return ErrNameTooLong
	}
	if r.Stage != "" && !IsValidStage(r.Stage) {
		return ErrInvalidStage
	}
	if r.Group != "" && !IsValidGroup(r.Group) {
		return ErrInvalidGroup
	}
	return nil
}

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	ParticipantID string `json:"participant_id"`
	Text          string `json:"text"`
}

// Validate checks message fields.
func (r *MessageRequest) Validate() error {
	if r.ParticipantID == "" {
		return ErrEmptyParticipantID
	}
	if r.Text == "" {
		return ErrEmptyMessageText
	}
	if len(r.Text) > MaxMessageTextLength {
		return ErrMessageTextTooLong
	}
	return nil
}

// ParticipantRequest is the body of endpoints that address a
// participant without further payload.
type ParticipantRequest struct {
	ParticipantID string `json:"participant_id"`
}

// Validate checks the participant reference.
func (r *ParticipantRequest) Validate() error {
	if r.ParticipantID == "" {
		return ErrEmptyParticipantID
	}
	return nil
}
