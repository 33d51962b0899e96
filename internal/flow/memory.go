package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Hamraz/internal/genai"
	"github.com/BTreeMap/Hamraz/internal/models"
	"github.com/BTreeMap/Hamraz/internal/store"
)

// FoldEveryTurns is the fold cadence: after every N user turns the
// unprocessed tail of the log is summarized into the rolling memory.
const FoldEveryTurns = 3

const summarizeTemperature = 0.1

const foldPrompt = `You maintain the long-term memory of a Farsi counseling assistant.
You receive the current memory summary of a user and the newest conversation
messages. Merge the new information into the summary: keep everything the user has
revealed about themselves, their feelings, their life events, and the exercises
they have done. Keep the summary in Farsi, compact, in third person, and drop
nothing that was in the previous summary unless it is superseded. Output only the
updated summary.`

// MemoryManager owns the rolling conversation memory of each
// participant: the persisted summary plus the unprocessed tail of the
// message log since the last fold.
type MemoryManager struct {
	store       store.Store
	genaiClient genai.ClientInterface
}

// NewMemoryManager creates a memory manager over the given store and
// generation client.
func NewMemoryManager(st store.Store, client genai.ClientInterface) *MemoryManager {
	return &MemoryManager{store: st, genaiClient: client}
}

// AddMessage appends one message to the participant's log and returns
// the stored record with its assigned id.
func (m *MemoryManager) AddMessage(participantID, text string, fromUser bool, sessionID int, state models.StateType) (models.Message, error) {
	msg := models.Message{
		ParticipantID: participantID,
		Text:          text,
		IsFromUser:    fromUser,
		SessionID:     sessionID,
		State:         string(state),
		Timestamp:     time.Now(),
	}
	stored, err := m.store.AddMessage(msg)
	if err != nil {
		slog.Error("MemoryManager failed to add message", "error", err, "participantID", participantID)
		return models.Message{}, fmt.Errorf("failed to add message: %w", err)
	}
	return stored, nil
}

// Unprocessed returns the messages that arrived after the last fold.
func (m *MemoryManager) Unprocessed(participantID string) ([]models.Message, error) {
	state, err := m.memoryState(participantID)
	if err != nil {
		return nil, err
	}
	msgs, err := m.store.GetMessagesAfter(participantID, state.LastFoldedID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load unprocessed messages: %w", err)
	}
	return msgs, nil
}

// Fold summarizes the unprocessed tail into the rolling summary and
// advances the fold pointer. When there is nothing unprocessed it is a
// no-op, so calling it repeatedly is safe.
func (m *MemoryManager) Fold(ctx context.Context, participantID string) error {
	state, err := m.memoryState(participantID)
	if err != nil {
		return err
	}
	msgs, err := m.store.GetMessagesAfter(participantID, state.LastFoldedID, 0)
	if err != nil {
		return fmt.Errorf("failed to load unprocessed messages: %w", err)
	}
	if len(msgs) == 0 {
		slog.Debug("MemoryManager Fold no-op, nothing unprocessed", "participantID", participantID)
		return nil
	}

	user := fmt.Sprintf("Current summary:\n%s\n\nNew messages:\n%s",
		emptyAs(state.Summary, "(none)"), renderTranscript(msgs))
	summary, err := m.genaiClient.Generate(ctx, foldPrompt, user, summarizeTemperature)
	if err != nil {
		slog.Error("MemoryManager fold summarization failed", "error", err, "participantID", participantID)
		return fmt.Errorf("memory fold failed: %w", err)
	}

	state.Summary = strings.TrimSpace(summary)
	state.LastFoldedID = msgs[len(msgs)-1].ID
	state.UpdatedAt = time.Now()
	if err := m.store.SaveMemoryState(*state); err != nil {
		slog.Error("MemoryManager failed to save memory state", "error", err, "participantID", participantID)
		return fmt.Errorf("failed to save memory state: %w", err)
	}
	slog.Info("MemoryManager folded messages into summary", "participantID", participantID, "folded", len(msgs), "lastFoldedID", state.LastFoldedID)
	return nil
}

// FormatForPrompt renders the participant's memory as prompt context:
// the rolling summary followed by the unprocessed messages verbatim.
func (m *MemoryManager) FormatForPrompt(participantID string) (string, error) {
	state, err := m.memoryState(participantID)
	if err != nil {
		return "", err
	}
	msgs, err := m.store.GetMessagesAfter(participantID, state.LastFoldedID, 0)
	if err != nil {
		return "", fmt.Errorf("failed to load unprocessed messages: %w", err)
	}

	var b strings.Builder
	b.WriteString("خلاصه‌ی شناخت ما از کاربر:\n")
	b.WriteString(emptyAs(state.Summary, "هنوز اطلاعاتی ثبت نشده است."))
	if len(msgs) > 0 {
		b.WriteString("\n\nپیام‌های اخیر:\n")
		b.WriteString(renderTranscript(msgs))
	}
	return b.String(), nil
}

// Summary returns the current rolling summary without the tail.
func (m *MemoryManager) Summary(participantID string) (string, error) {
	state, err := m.memoryState(participantID)
	if err != nil {
		return "", err
	}
	return state.Summary, nil
}

// EndSession folds any remaining tail so the next session starts from a
// complete summary.
func (m *MemoryManager) EndSession(ctx context.Context, participantID string) error {
	return m.Fold(ctx, participantID)
}

// memoryState loads the participant's memory state, defaulting to an
// empty one when none is persisted yet.
func (m *MemoryManager) memoryState(participantID string) (*models.MemoryState, error) {
	state, err := m.store.GetMemoryState(participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory state: %w", err)
	}
	if state == nil {
		state = &models.MemoryState{ParticipantID: participantID}
	}
	return state, nil
}

// renderTranscript renders messages as speaker-tagged lines.
func renderTranscript(msgs []models.Message) string {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := "همراز"
		if msg.IsFromUser {
			speaker = "کاربر"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(msg.Text)
	}
	return b.String()
}

func emptyAs(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
