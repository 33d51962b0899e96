package exercise

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/BTreeMap/Hamraz/internal/genai"
)

// Suggestor defines the exercise/recommendation collaborator: ranking an
// exercise against the user's memory, explaining the choice, and
// producing short quick-reply suggestions.
type Suggestor interface {
	// Suggest picks the most relevant exercise from the candidate set
	// and returns its content and number.
	Suggest(ctx context.Context, candidates []Exercise, memoryText, stage string) (content string, number string, err error)

	// Explain produces a personalized explanation of why the exercise
	// fits the user's situation.
	Explain(ctx context.Context, memoryText, exerciseContent string) (string, error)

	// Recommend produces up to three short quick-reply suggestions the
	// user could tap in response to the last bot message.
	Recommend(ctx context.Context, lastReply, memoryText string) ([]string, error)
}

// Suggestion temperatures follow the reference: near-deterministic
// ranking, slightly warmer explanation text.
const (
	rankTemperature    = 0.05
	explainTemperature = 0.2
	// MaxRecommendations caps the quick-reply suggestions per turn.
	MaxRecommendations = 3
)

const rankPrompt = `You help a Farsi self-attachment therapy assistant pick one exercise.
You receive what is known about the user, their program stage, and a JSON list of
candidate exercises. Choose the single most relevant exercise for the user's
current emotional situation. Answer with the exercise number only.`

const explainPrompt = `You are a warm Farsi counseling assistant. Given what is known
about the user and the exercise below, explain in two or three Farsi sentences why
this exercise fits their current situation. Address the user directly and informally.`

const recommendPrompt = `You are tasked with assisting in a dialogue between two parties.
Given the last message from one side, generate three concise suggestions (each under
three words, informal Farsi) the other side could reply with. Format them exactly as:
suggestion1 / suggestion2 / suggestion3.`

// GenAISuggestor implements Suggestor using the generation collaborator.
type GenAISuggestor struct {
	genaiClient genai.ClientInterface
}

// NewGenAISuggestor creates a suggestor backed by the GenAI client.
func NewGenAISuggestor(client genai.ClientInterface) *GenAISuggestor {
	slog.Debug("Creating GenAISuggestor")
	return &GenAISuggestor{genaiClient: client}
}

// Suggest asks the ranking collaborator to pick one candidate exercise.
// Candidates are shuffled before ranking to avoid positional bias.
func (s *GenAISuggestor) Suggest(ctx context.Context, candidates []Exercise, memoryText, stage string) (string, string, error) {
	if len(candidates) == 0 {
		return "", "", fmt.Errorf("no candidate exercises")
	}

	shuffled := make([]Exercise, len(candidates))
	copy(shuffled, candidates)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	catalogJSON, err := json.Marshal(shuffled)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal candidates: %w", err)
	}

	user := fmt.Sprintf("User memory:\n%s\n\nUser stage: %s\n\nCandidate exercises:\n%s",
		memoryText, stage, string(catalogJSON))
	raw, err := s.genaiClient.Generate(ctx, rankPrompt, user, rankTemperature)
	if err != nil {
		slog.Error("GenAISuggestor Suggest generation failed", "error", err)
		return "", "", fmt.Errorf("exercise ranking failed: %w", err)
	}

	number := strings.Trim(strings.TrimSpace(raw), ".,\"'`")
	for _, ex := range shuffled {
		if ex.Number == number {
			slog.Debug("GenAISuggestor Suggest picked exercise", "number", number)
			return ex.Content, ex.Number, nil
		}
	}

	// The ranker answered outside the candidate set; fall back to the
	// first candidate rather than failing the turn.
	slog.Warn("GenAISuggestor Suggest ranker returned unknown number, using fallback", "raw", number)
	return shuffled[0].Content, shuffled[0].Number, nil
}

// Explain produces a personalized explanation for the chosen exercise.
func (s *GenAISuggestor) Explain(ctx context.Context, memoryText, exerciseContent string) (string, error) {
	user := fmt.Sprintf("User memory:\n%s\n\nExercise:\n%s", memoryText, exerciseContent)
	out, err := s.genaiClient.Generate(ctx, explainPrompt, user, explainTemperature)
	if err != nil {
		slog.Error("GenAISuggestor Explain generation failed", "error", err)
		return "", fmt.Errorf("exercise explanation failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Recommend produces up to three short quick-reply suggestions.
func (s *GenAISuggestor) Recommend(ctx context.Context, lastReply, memoryText string) ([]string, error) {
	user := fmt.Sprintf("User memory:\n%s\n\nMESSAGE FROM ONE SIDE:\n%s", memoryText, lastReply)
	raw, err := s.genaiClient.Generate(ctx, recommendPrompt, user, explainTemperature)
	if err != nil {
		slog.Error("GenAISuggestor Recommend generation failed", "error", err)
		return nil, fmt.Errorf("recommendation generation failed: %w", err)
	}

	parts := strings.Split(raw, "/")
	var out []string
	for _, part := range parts {
		cleaned := strings.TrimSpace(strings.ReplaceAll(part, ".", ""))
		if cleaned == "" {
			continue
		}
		out = append(out, cleaned)
		if len(out) == MaxRecommendations {
			break
		}
	}
	slog.Debug("GenAISuggestor Recommend succeeded", "count", len(out))
	return out, nil
}
