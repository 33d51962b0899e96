// Package store provides storage backends for Hamraz.
//
// This file implements an SQLite-backed store for the message log,
// memory states, and participants.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/Hamraz/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given options.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddMessage appends a message to the log and returns it with its assigned id.
func (s *SQLiteStore) AddMessage(msg models.Message) (models.Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = nowFunc()
	}
	res, err := s.db.Exec(
		`INSERT INTO messages (participant_id, text, is_from_user, session_id, state, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ParticipantID, msg.Text, msg.IsFromUser, msg.SessionID, nilIfEmpty(msg.State), msg.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "participantID", msg.ParticipantID)
		return msg, fmt.Errorf("failed to insert message for %s: %w", msg.ParticipantID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		slog.Error("SQLiteStore AddMessage LastInsertId failed", "error", err, "participantID", msg.ParticipantID)
		return msg, fmt.Errorf("failed to read inserted message id: %w", err)
	}
	msg.ID = id
	slog.Debug("SQLiteStore AddMessage succeeded", "participantID", msg.ParticipantID, "id", msg.ID, "sessionID", msg.SessionID)
	return msg, nil
}

// GetMessages returns the participant's messages in ascending order.
func (s *SQLiteStore) GetMessages(participantID string, sessionID int) ([]models.Message, error) {
	return s.GetMessagesAfter(participantID, 0, sessionID)
}

// GetMessagesAfter returns messages with id > afterID in ascending order.
func (s *SQLiteStore) GetMessagesAfter(participantID string, afterID int64, sessionID int) ([]models.Message, error) {
	query := `SELECT id, participant_id, text, is_from_user, session_id, state, timestamp
			  FROM messages WHERE participant_id = ? AND id > ?`
	args := []interface{}{participantID, afterID}
	if sessionID > 0 {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetMessagesAfter query failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		slog.Error("SQLiteStore GetMessagesAfter scan failed", "error", err, "participantID", participantID)
		return nil, err
	}
	slog.Debug("SQLiteStore GetMessagesAfter succeeded", "participantID", participantID, "count", len(messages))
	return messages, nil
}

// GetMaxSessionID returns the highest session id recorded for the participant.
func (s *SQLiteStore) GetMaxSessionID(participantID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(session_id) FROM messages WHERE participant_id = ?`, participantID).Scan(&max)
	if err != nil {
		slog.Error("SQLiteStore GetMaxSessionID failed", "error", err, "participantID", participantID)
		return 0, fmt.Errorf("failed to query max session id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// GetMemoryState retrieves the memory state for a participant, or nil.
func (s *SQLiteStore) GetMemoryState(participantID string) (*models.MemoryState, error) {
	var st models.MemoryState
	err := s.db.QueryRow(
		`SELECT participant_id, summary, last_folded_id, updated_at FROM memory_states WHERE participant_id = ?`,
		participantID).Scan(&st.ParticipantID, &st.Summary, &st.LastFoldedID, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetMemoryState not found", "participantID", participantID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetMemoryState failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to query memory state: %w", err)
	}
	return &st, nil
}

// SaveMemoryState stores or updates the memory state for a participant.
func (s *SQLiteStore) SaveMemoryState(state models.MemoryState) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO memory_states (participant_id, summary, last_folded_id, updated_at) VALUES (?, ?, ?, ?)`,
		state.ParticipantID, state.Summary, state.LastFoldedID, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveMemoryState failed", "error", err, "participantID", state.ParticipantID)
		return fmt.Errorf("failed to save memory state: %w", err)
	}
	slog.Debug("SQLiteStore SaveMemoryState succeeded", "participantID", state.ParticipantID, "lastFoldedID", state.LastFoldedID)
	return nil
}

// GetParticipant retrieves a participant by id, or nil if not enrolled.
func (s *SQLiteStore) GetParticipant(id string) (*models.Participant, error) {
	var p models.Participant
	var name sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, stage, study_group, enrolled_at, created_at, updated_at FROM participants WHERE id = ?`,
		id).Scan(&p.ID, &name, &p.Stage, &p.Group, &p.EnrolledAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetParticipant not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetParticipant failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}
	p.Name = name.String
	return &p, nil
}

// SaveParticipant stores or updates a participant record.
func (s *SQLiteStore) SaveParticipant(p models.Participant) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO participants (id, name, stage, study_group, enrolled_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nilIfEmpty(p.Name), p.Stage, p.Group, p.EnrolledAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveParticipant failed", "error", err, "id", p.ID)
		return fmt.Errorf("failed to save participant: %w", err)
	}
	slog.Debug("SQLiteStore SaveParticipant succeeded", "id", p.ID, "group", p.Group)
	return nil
}

// ListParticipants returns all enrolled participants.
func (s *SQLiteStore) ListParticipants() ([]models.Participant, error) {
	rows, err := s.db.Query(`SELECT id, name, stage, study_group, enrolled_at, created_at, updated_at FROM participants`)
	if err != nil {
		slog.Error("SQLiteStore ListParticipants query failed", "error", err)
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()
	return scanParticipants(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
