// Package store provides storage backends for Hamraz.
//
// This file implements a PostgreSQL-backed store for the message log,
// memory states, and participants.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/Hamraz/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// AddMessage appends a message to the log and returns it with its assigned id.
func (s *PostgresStore) AddMessage(msg models.Message) (models.Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = nowFunc()
	}
	err := s.db.QueryRow(
		`INSERT INTO messages (participant_id, text, is_from_user, session_id, state, timestamp) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		msg.ParticipantID, msg.Text, msg.IsFromUser, msg.SessionID, nilIfEmpty(msg.State), msg.Timestamp).Scan(&msg.ID)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "participantID", msg.ParticipantID)
		return msg, fmt.Errorf("failed to insert message for %s: %w", msg.ParticipantID, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "participantID", msg.ParticipantID, "id", msg.ID, "sessionID", msg.SessionID)
	return msg, nil
}

// GetMessages returns the participant's messages in ascending order.
func (s *PostgresStore) GetMessages(participantID string, sessionID int) ([]models.Message, error) {
	return s.GetMessagesAfter(participantID, 0, sessionID)
}

// GetMessagesAfter returns messages with id > afterID in ascending order.
func (s *PostgresStore) GetMessagesAfter(participantID string, afterID int64, sessionID int) ([]models.Message, error) {
	query := `SELECT id, participant_id, text, is_from_user, session_id, state, timestamp
			  FROM messages WHERE participant_id = $1 AND id > $2`
	args := []interface{}{participantID, afterID}
	if sessionID > 0 {
		query += ` AND session_id = $3`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetMessagesAfter query failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		slog.Error("PostgresStore GetMessagesAfter scan failed", "error", err, "participantID", participantID)
		return nil, err
	}
	return messages, nil
}

// GetMaxSessionID returns the highest session id recorded for the participant.
func (s *PostgresStore) GetMaxSessionID(participantID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(session_id) FROM messages WHERE participant_id = $1`, participantID).Scan(&max)
	if err != nil {
		slog.Error("PostgresStore GetMaxSessionID failed", "error", err, "participantID", participantID)
		return 0, fmt.Errorf("failed to query max session id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// GetMemoryState retrieves the memory state for a participant, or nil.
func (s *PostgresStore) GetMemoryState(participantID string) (*models.MemoryState, error) {
	var st models.MemoryState
	err := s.db.QueryRow(
		`SELECT participant_id, summary, last_folded_id, updated_at FROM memory_states WHERE participant_id = $1`,
		participantID).Scan(&st.ParticipantID, &st.Summary, &st.LastFoldedID, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetMemoryState not found", "participantID", participantID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetMemoryState failed", "error", err, "participantID", participantID)
		return nil, fmt.Errorf("failed to query memory state: %w", err)
	}
	return &st, nil
}

// SaveMemoryState stores or updates the memory state for a participant.
func (s *PostgresStore) SaveMemoryState(state models.MemoryState) error {
	_, err := s.db.Exec(
		`INSERT INTO memory_states (participant_id, summary, last_folded_id, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (participant_id) DO UPDATE SET summary = $2, last_folded_id = $3, updated_at = $4`,
		state.ParticipantID, state.Summary, state.LastFoldedID, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMemoryState failed", "error", err, "participantID", state.ParticipantID)
		return fmt.Errorf("failed to save memory state: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant by id, or nil if not enrolled.
func (s *PostgresStore) GetParticipant(id string) (*models.Participant, error) {
	var p models.Participant
	var name sql.NullString
	err := s.db.QueryRow(
		`SELECT id, name, stage, study_group, enrolled_at, created_at, updated_at FROM participants WHERE id = $1`,
		id).Scan(&p.ID, &name, &p.Stage, &p.Group, &p.EnrolledAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetParticipant not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetParticipant failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query participant: %w", err)
	}
	p.Name = name.String
	return &p, nil
}

// SaveParticipant stores or updates a participant record.
func (s *PostgresStore) SaveParticipant(p models.Participant) error {
	_, err := s.db.Exec(
		`INSERT INTO participants (id, name, stage, study_group, enrolled_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET name = $2, stage = $3, study_group = $4, updated_at = $7`,
		p.ID, nilIfEmpty(p.Name), p.Stage, p.Group, p.EnrolledAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveParticipant failed", "error", err, "id", p.ID)
		return fmt.Errorf("failed to save participant: %w", err)
	}
	return nil
}

// ListParticipants returns all enrolled participants.
func (s *PostgresStore) ListParticipants() ([]models.Participant, error) {
	rows, err := s.db.Query(`SELECT id, name, stage, study_group, enrolled_at, created_at, updated_at FROM participants`)
	if err != nil {
		slog.Error("PostgresStore ListParticipants query failed", "error", err)
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()
	return scanParticipants(rows)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
