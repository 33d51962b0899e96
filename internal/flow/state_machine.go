package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/Hamraz/internal/classify"
	"github.com/BTreeMap/Hamraz/internal/models"
)

// stateKind distinguishes how a state participates in routing.
type stateKind int

const (
	// kindContent states hold a free conversation and leave once the
	// sufficiency judge approves and the minimum turn count is met.
	kindContent stateKind = iota
	// kindQuestion states ask one question and hand over to their
	// decider unconditionally after the reply is sent.
	kindQuestion
	// kindDecider states classify the incoming message and route
	// without producing a reply of their own.
	kindDecider
	// kindTerminal marks the end of a session.
	kindTerminal
)

// minContentTurns is the anti-flicker floor: a content state keeps the
// conversation for at least this many user turns even when the
// sufficiency judge approves earlier.
const minContentTurns = 2

// maxResolveHops bounds decider chaining within one turn.
const maxResolveHops = 6

type stateSpec struct {
	Kind stateKind
	Next models.StateType
}

// stateSpecs is the dialogue protocol graph. Deciders encode their
// branching in the state machine's resolve step rather than in Next.
var stateSpecs = map[models.StateType]stateSpec{
	models.StateGreeting:                  {Kind: kindContent, Next: models.StateEmotion},
	models.StateEmotion:                   {Kind: kindContent, Next: models.StateEmotionDecider},
	models.StateEmotionDecider:            {Kind: kindDecider},
	models.StateEventDiscussion:           {Kind: kindContent, Next: models.StateAskExercise},
	models.StateAskExercise:               {Kind: kindQuestion, Next: models.StateAskExerciseDecider},
	models.StateAskExerciseDecider:        {Kind: kindDecider},
	models.StateExerciseSuggestion:        {Kind: kindQuestion, Next: models.StateExerciseSuggestionDecider},
	models.StateExerciseSuggestionDecider: {Kind: kindDecider},
	models.StateFeedback:                  {Kind: kindContent, Next: models.StateLikeAnotherExercise},
	models.StateLikeAnotherExercise:       {Kind: kindQuestion, Next: models.StateLikeAnotherDecider},
	models.StateLikeAnotherDecider:        {Kind: kindDecider},
	models.StateThanks:                    {Kind: kindQuestion, Next: models.StateEnd},
	models.StateEnd:                       {Kind: kindTerminal},
}

// StateMachine drives the counseling dialogue protocol. It owns the
// transition rules; reply generation stays with the orchestrator.
type StateMachine struct {
	classifier classify.Classifier
}

// NewStateMachine creates a state machine over the given classifier.
func NewStateMachine(c classify.Classifier) *StateMachine {
	return &StateMachine{classifier: c}
}

// Resolve advances the session to the state that should produce this
// turn's reply. It runs pending deciders on the just-received message,
// applies sufficiency-gated exits from content states, and chains
// through any decider a content exit lands on. Deciders never wait for
// a later message: an unclear classification keeps the current state
// and signals the caller to ask for clarification instead.
//
// On return the session sits in a content, question, or terminal state
// and its per-state turn counter includes the current turn.
func (sm *StateMachine) Resolve(ctx context.Context, st *models.SessionState, userText, transcript string) (clarify bool, err error) {
	counted := false
	for hops := 0; hops < maxResolveHops; hops++ {
		spec, ok := stateSpecs[st.CurrentState]
		if !ok {
			return false, fmt.Errorf("unknown dialogue state: %s", st.CurrentState)
		}

		switch spec.Kind {
		case kindDecider:
			next, decErr := sm.decide(ctx, st, userText, transcript)
			if decErr != nil {
				// A failed decider behaves like an unclear answer: hold
				// the state and ask the user to elaborate.
				slog.Error("StateMachine decider failed, asking for clarification", "error", decErr, "state", st.CurrentState)
				return true, nil
			}
			if next == "" {
				slog.Debug("StateMachine decider unclear, asking for clarification", "state", st.CurrentState)
				return true, nil
			}
			slog.Debug("StateMachine decider routed", "from", st.CurrentState, "to", next)
			st.Transition(next)

		case kindContent:
			st.TurnsInState++
			if !counted {
				st.TurnsTotal++
				counted = true
			}
			if st.TurnsInState < minContentTurns {
				return false, nil
			}
			goal := stateGoals[st.CurrentState]
			sufficient, sufErr := sm.classifier.Sufficient(ctx, goal, transcript)
			if sufErr != nil {
				// A failed judge keeps the conversation where it is; the
				// turn still gets a normal reply.
				slog.Error("StateMachine sufficiency check failed, staying in state", "error", sufErr, "state", st.CurrentState)
				return false, nil
			}
			if !sufficient {
				return false, nil
			}
			slog.Debug("StateMachine content state complete", "from", st.CurrentState, "to", spec.Next, "turns", st.TurnsInState)
			st.Transition(spec.Next)

		case kindQuestion:
			st.TurnsInState++
			if !counted {
				st.TurnsTotal++
			}
			return false, nil

		case kindTerminal:
			return false, nil
		}
	}
	return false, fmt.Errorf("dialogue routing did not settle from state %s", st.CurrentState)
}

// Advance applies the unconditional post-reply transition of question
// states. Content and terminal states are left alone.
func (sm *StateMachine) Advance(st *models.SessionState) {
	spec, ok := stateSpecs[st.CurrentState]
	if !ok || spec.Kind != kindQuestion {
		return
	}
	st.Transition(spec.Next)
}

// decide runs one decider. An empty return means the classification was
// unclear and the state must not advance.
func (sm *StateMachine) decide(ctx context.Context, st *models.SessionState, userText, transcript string) (models.StateType, error) {
	switch st.CurrentState {
	case models.StateEmotionDecider:
		sentiment, err := sm.classifier.Sentiment(ctx, transcript)
		if err != nil {
			return "", fmt.Errorf("emotion routing failed: %w", err)
		}
		switch sentiment {
		case classify.SentimentPositive:
			return models.StateAskExercise, nil
		case classify.SentimentNegative:
			return models.StateEventDiscussion, nil
		default:
			return "", nil
		}

	case models.StateAskExerciseDecider:
		return sm.yesNoRoute(ctx, st, userText, models.StateExerciseSuggestion, models.StateThanks)

	case models.StateExerciseSuggestionDecider:
		next, err := sm.yesNoRoute(ctx, st, userText, models.StateFeedback, models.StateLikeAnotherExercise)
		if err == nil && next == models.StateFeedback && st.LastExerciseID != "" {
			st.ExercisesCompleted[st.LastExerciseID] = true
		}
		return next, err

	case models.StateLikeAnotherDecider:
		return sm.yesNoRoute(ctx, st, userText, models.StateExerciseSuggestion, models.StateThanks)
	}
	return "", fmt.Errorf("state %s is not a decider", st.CurrentState)
}

// yesNoRoute classifies the answer to the question the bot just asked.
func (sm *StateMachine) yesNoRoute(ctx context.Context, st *models.SessionState, userText string, onYes, onNo models.StateType) (models.StateType, error) {
	decision, err := sm.classifier.YesNo(ctx, st.LastReply, userText)
	if err != nil {
		return "", fmt.Errorf("yes/no routing failed in %s: %w", st.CurrentState, err)
	}
	switch decision {
	case classify.DecisionAffirmative:
		return onYes, nil
	case classify.DecisionNegative:
		return onNo, nil
	default:
		return "", nil
	}
}
