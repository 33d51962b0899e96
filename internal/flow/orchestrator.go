// Package flow implements the conversational orchestration core of
// Hamraz: the dialogue state machine, rolling memory, message-burst
// buffering, and repetition guarding that together drive multi-turn
// counseling conversations.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/Hamraz/internal/classify"
	"github.com/BTreeMap/Hamraz/internal/exercise"
	"github.com/BTreeMap/Hamraz/internal/genai"
	"github.com/BTreeMap/Hamraz/internal/models"
	"github.com/BTreeMap/Hamraz/internal/store"
)

// replyTemperature is used for user-facing reply generation.
const replyTemperature = 0.7

// defaultDrainDelay is how long after a pass the orchestrator waits
// before automatically processing messages that queued up during it.
const defaultDrainDelay = 2 * time.Second

// drainTimeout bounds the background drain pass.
const drainTimeout = 60 * time.Second

// tokenPollInterval paces retries while waiting for a participant's
// processing token.
const tokenPollInterval = 25 * time.Millisecond

// Orchestrator coordinates one conversational turn end to end: burst
// buffering, dialogue routing, reply generation, memory folding, and
// repetition tracking. One orchestrator serves all participants.
type Orchestrator struct {
	store       store.Store
	genaiClient genai.ClientInterface
	suggestor   exercise.Suggestor
	catalog     *exercise.Catalog
	memory      *MemoryManager
	sessions    *SessionStates
	buffer      *MessageBuffer
	guard       *RepetitionGuard
	machine     *StateMachine
	timer       Timer
	drainDelay  time.Duration
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithDrainDelay overrides how long the orchestrator waits after a pass
// before draining messages that queued up during it. Non-positive
// values are ignored.
func WithDrainDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.drainDelay = d
		}
	}
}

// NewOrchestrator wires the orchestration core over its collaborators.
func NewOrchestrator(st store.Store, client genai.ClientInterface, classifier classify.Classifier, suggestor exercise.Suggestor, catalog *exercise.Catalog, timer Timer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		genaiClient: client,
		suggestor:   suggestor,
		catalog:     catalog,
		memory:      NewMemoryManager(st, client),
		sessions:    NewSessionStates(st),
		buffer:      NewMessageBuffer(),
		guard:       NewRepetitionGuard(),
		machine:     NewStateMachine(classifier),
		timer:       timer,
		drainDelay:  defaultDrainDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessMessage handles one inbound user message. If a pass is already
// in flight for the participant the message is buffered and the result
// reports no reply; the in-flight pass's drain (or a later call to
// ProcessBuffered) answers the whole burst with one reply.
func (o *Orchestrator) ProcessMessage(ctx context.Context, participantID, text string) (models.TurnResult, error) {
	if participantID == "" {
		return models.TurnResult{}, models.ErrEmptyParticipantID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.TurnResult{}, models.ErrEmptyMessageText
	}
	if len(text) > models.MaxMessageTextLength {
		return models.TurnResult{}, models.ErrMessageTextTooLong
	}

	if !o.buffer.TryBeginProcessing(participantID) {
		o.buffer.Enqueue(participantID, text)
		slog.Debug("Orchestrator buffered message behind in-flight pass", "participantID", participantID)
		return models.TurnResult{}, nil
	}
	defer o.endPass(participantID)

	// Messages that queued up before this pass won the token join the
	// incoming text as a single utterance.
	pending := o.buffer.Drain(participantID)
	if len(pending) > 0 {
		text = Concatenate(append(pending, text))
	}
	return o.runTurn(ctx, participantID, text)
}

// ProcessBuffered drains the participant's queued burst and answers it
// with one reply. It returns a buffered (nil-reply) result when another
// pass is in flight or nothing is queued.
func (o *Orchestrator) ProcessBuffered(ctx context.Context, participantID string) (models.TurnResult, error) {
	if participantID == "" {
		return models.TurnResult{}, models.ErrEmptyParticipantID
	}
	if !o.buffer.TryBeginProcessing(participantID) {
		return models.TurnResult{}, nil
	}
	defer o.endPass(participantID)

	pending := o.buffer.Drain(participantID)
	if len(pending) == 0 {
		return models.TurnResult{}, nil
	}
	return o.runTurn(ctx, participantID, Concatenate(pending))
}

// EndSession folds remaining memory, clears the repetition guard, and
// starts the participant's next session at the initial state. It waits
// for any in-flight pass to finish first, so the fold and the session
// reset never race a running turn.
func (o *Orchestrator) EndSession(ctx context.Context, participantID string) error {
	if participantID == "" {
		return models.ErrEmptyParticipantID
	}
	if err := o.acquirePass(ctx, participantID); err != nil {
		return fmt.Errorf("session end blocked by an in-flight turn: %w", err)
	}
	defer o.endPass(participantID)
	return o.endSessionLocked(ctx, participantID)
}

// endSessionLocked performs the session-end work. The caller must hold
// the participant's processing token.
func (o *Orchestrator) endSessionLocked(ctx context.Context, participantID string) error {
	if err := o.memory.EndSession(ctx, participantID); err != nil {
		return fmt.Errorf("failed to fold memory at session end: %w", err)
	}
	o.guard.Reset(participantID)
	o.sessions.Reset(participantID)
	slog.Info("Orchestrator ended session", "participantID", participantID)
	return nil
}

// acquirePass blocks until the participant's processing token is free
// or the context expires.
func (o *Orchestrator) acquirePass(ctx context.Context, participantID string) error {
	for {
		if o.buffer.TryBeginProcessing(participantID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tokenPollInterval):
		}
	}
}

// endPass releases the processing token and schedules a drain if more
// messages arrived during the pass.
func (o *Orchestrator) endPass(participantID string) {
	if o.buffer.EndProcessing(participantID) == 0 {
		return
	}
	if o.timer == nil {
		return
	}
	_, err := o.timer.ScheduleAfter(o.drainDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if _, err := o.ProcessBuffered(ctx, participantID); err != nil {
			slog.Error("Orchestrator background drain failed", "error", err, "participantID", participantID)
		}
	})
	if err != nil {
		slog.Error("Orchestrator failed to schedule drain", "error", err, "participantID", participantID)
	}
}

// runTurn executes one full conversational turn while holding the
// processing token.
func (o *Orchestrator) runTurn(ctx context.Context, participantID, text string) (models.TurnResult, error) {
	participant, err := o.store.GetParticipant(participantID)
	if err != nil {
		return models.TurnResult{}, fmt.Errorf("failed to load participant: %w", err)
	}
	if participant == nil {
		return models.TurnResult{}, models.ErrParticipantNotFound
	}

	st, err := o.sessions.Get(participantID)
	if err != nil {
		return models.TurnResult{}, err
	}
	if _, err := o.memory.AddMessage(participantID, text, true, st.CurrentSessionID, st.CurrentState); err != nil {
		return models.TurnResult{}, err
	}

	var result models.TurnResult
	switch participant.Group {
	case models.GroupIntervention:
		result, err = o.runInterventionTurn(ctx, participant, st, text)
	case models.GroupControl:
		result, err = o.runControlTurn(ctx, participant, st)
	case models.GroupPlacebo:
		result, err = o.runPlaceboTurn(ctx, participant, st)
	default:
		err = models.ErrInvalidGroup
	}
	if err != nil {
		return models.TurnResult{}, err
	}

	if st.TurnsTotal > 0 && st.TurnsTotal%FoldEveryTurns == 0 {
		if err := o.memory.Fold(ctx, participantID); err != nil {
			// A failed fold only delays summarization; the reply stands.
			slog.Error("Orchestrator fold failed", "error", err, "participantID", participantID)
		}
	}
	return result, nil
}

// runInterventionTurn runs the full counseling protocol.
func (o *Orchestrator) runInterventionTurn(ctx context.Context, participant *models.Participant, st *models.SessionState, text string) (models.TurnResult, error) {
	participantID := participant.ID

	// A session that ran to completion restarts from the greeting.
	if st.CurrentState == models.StateEnd {
		o.guard.Reset(participantID)
		o.sessions.Reset(participantID)
		var err error
		st, err = o.sessions.Get(participantID)
		if err != nil {
			return models.TurnResult{}, err
		}
	}

	transcript, err := o.memory.FormatForPrompt(participantID)
	if err != nil {
		return models.TurnResult{}, err
	}

	clarify, err := o.machine.Resolve(ctx, st, text, transcript)
	if err != nil {
		return models.TurnResult{}, err
	}
	if clarify {
		return o.finishTurn(ctx, participantID, st, clarifyReply, models.TurnResult{})
	}

	var result models.TurnResult
	exhausted := false
	if st.CurrentState == models.StateExerciseSuggestion && len(o.exerciseCandidates(participant, st)) == 0 {
		// Every exercise in the catalog is done; wind the session down.
		slog.Info("Orchestrator exercise catalog exhausted, closing session", "participantID", participantID)
		st.Transition(models.StateThanks)
		exhausted = true
	}
	statePrompt := statePrompts[st.CurrentState]
	if exhausted {
		statePrompt = exhaustedPrompt
	}
	systemPrompt := personaPrompt + "\n\n" + statePrompt

	if st.CurrentState == models.StateExerciseSuggestion {
		exercisePrompt, suggestResult, sErr := o.prepareExercise(ctx, participant, st)
		if sErr != nil {
			return models.TurnResult{}, sErr
		}
		systemPrompt += exercisePrompt
		result = suggestResult
	}

	if avoid := o.guard.AvoidanceContext(participantID, categoryFor(st.CurrentState)); avoid != "" {
		systemPrompt += "\n\n" + avoid
	}

	reply, err := o.generateReply(ctx, participantID, systemPrompt)
	if err != nil {
		return models.TurnResult{}, err
	}

	if recs, rErr := o.suggestor.Recommend(ctx, reply, transcript); rErr != nil {
		slog.Error("Orchestrator recommendation generation failed", "error", rErr, "participantID", participantID)
	} else {
		result.Recommendations = recs
	}

	return o.finishTurn(ctx, participantID, st, reply, result)
}

// exerciseCandidates returns the undone exercises unlocked for the
// participant's day. When the day-gated set is used up it falls back to
// the whole catalog minus completed, so finishing today's unlocks early
// never blocks practicing ahead.
func (o *Orchestrator) exerciseCandidates(participant *models.Participant, st *models.SessionState) []exercise.Exercise {
	day := participant.DayIndex(time.Now())
	candidates := exercise.Filter(o.catalog.DayGated(day), st.ExercisesCompleted)
	if len(candidates) == 0 {
		candidates = exercise.Filter(o.catalog.All(), st.ExercisesCompleted)
		if len(candidates) > 0 {
			slog.Debug("Orchestrator day-gated exercises exhausted, falling back to full catalog", "participantID", participant.ID, "day", day, "remaining", len(candidates))
		}
	}
	return candidates
}

// prepareExercise picks the exercise for the suggestion state and
// returns the prompt fragment plus the explain/exercise-id result fields.
func (o *Orchestrator) prepareExercise(ctx context.Context, participant *models.Participant, st *models.SessionState) (string, models.TurnResult, error) {
	candidates := o.exerciseCandidates(participant, st)

	memoryText, err := o.memory.FormatForPrompt(participant.ID)
	if err != nil {
		return "", models.TurnResult{}, err
	}
	content, number, err := o.suggestor.Suggest(ctx, candidates, memoryText, string(participant.Stage))
	if err != nil {
		return "", models.TurnResult{}, fmt.Errorf("exercise selection failed: %w", err)
	}
	st.LastExerciseID = number

	var result models.TurnResult
	result.ExerciseID = &number
	if explain, eErr := o.suggestor.Explain(ctx, memoryText, content); eErr != nil {
		slog.Error("Orchestrator exercise explanation failed", "error", eErr, "participantID", participant.ID)
	} else {
		result.Explain = &explain
	}

	return "\n\nتمرین پیشنهادی:\n" + content, result, nil
}

// generateReply produces the bot reply for the current system prompt,
// feeding the unprocessed conversation tail as chat history.
func (o *Orchestrator) generateReply(ctx context.Context, participantID, systemPrompt string) (string, error) {
	summary, err := o.memory.Summary(participantID)
	if err != nil {
		return "", err
	}
	if summary != "" {
		systemPrompt += "\n\nخلاصه‌ی شناخت ما از کاربر:\n" + summary
	}

	history, err := o.memory.Unprocessed(participantID)
	if err != nil {
		return "", err
	}
	messages := buildChatMessages(systemPrompt, history)

	reply, err := o.genaiClient.GenerateWithMessages(ctx, messages, replyTemperature)
	if err != nil {
		return "", fmt.Errorf("reply generation failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// finishTurn persists the reply, records it for repetition tracking,
// and applies the post-reply transition.
func (o *Orchestrator) finishTurn(ctx context.Context, participantID string, st *models.SessionState, reply string, result models.TurnResult) (models.TurnResult, error) {
	if _, err := o.memory.AddMessage(participantID, reply, false, st.CurrentSessionID, st.CurrentState); err != nil {
		return models.TurnResult{}, err
	}
	o.guard.Record(participantID, categoryFor(st.CurrentState), reply)
	st.LastReply = reply

	o.machine.Advance(st)
	result.Reply = &reply
	result.State = string(st.CurrentState)

	if st.CurrentState == models.StateEnd {
		// The turn's pass already holds the processing token.
		if err := o.endSessionLocked(ctx, participantID); err != nil {
			slog.Error("Orchestrator session end failed", "error", err, "participantID", participantID)
		}
	}
	return result, nil
}

// buildChatMessages maps the system prompt and conversation tail onto
// the chat completion message format.
func buildChatMessages(systemPrompt string, history []models.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, msg := range history {
		if msg.IsFromUser {
			messages = append(messages, openai.UserMessage(msg.Text))
		} else {
			messages = append(messages, openai.AssistantMessage(msg.Text))
		}
	}
	return messages
}
