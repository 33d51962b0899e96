package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/BTreeMap/Hamraz/internal/models"
)

// nowFunc is overridable in tests that need deterministic timestamps.
var nowFunc = time.Now

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanMessages scans message rows into a slice.
func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var state sql.NullString
		if err := rows.Scan(&m.ID, &m.ParticipantID, &m.Text, &m.IsFromUser, &m.SessionID, &state, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message failed: %w", err)
		}
		m.State = state.String
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows failed: %w", err)
	}
	return messages, nil
}

// scanParticipants scans participant rows into a slice.
func scanParticipants(rows *sql.Rows) ([]models.Participant, error) {
	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		var name sql.NullString
		if err := rows.Scan(&p.ID, &name, &p.Stage, &p.Group, &p.EnrolledAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan participant failed: %w", err)
		}
		p.Name = name.String
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rows failed: %w", err)
	}
	return participants, nil
}
