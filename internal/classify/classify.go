// Package classify provides the model-assisted classifiers that drive
// dialogue state transitions: sufficiency ("has enough been said to move
// on?"), sentiment, and yes/no intent.
//
// Classifier outputs are closed tagged variants. Raw model output is
// normalized and mapped by exact label; anything unrecognized maps to the
// Unclear variant so the state machine stays put instead of guessing.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/Hamraz/internal/genai"
)

// Decision is the result of a yes/no intent classification.
type Decision string

const (
	DecisionAffirmative Decision = "affirmative"
	DecisionNegative    Decision = "negative"
	DecisionUnclear     Decision = "unclear"
)

// Sentiment is the result of an emotional-tone classification.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentUnclear  Sentiment = "unclear"
)

// Classifier defines the classification collaborator consumed by the
// state machine.
type Classifier interface {
	// Sufficient reports whether the transcript contains enough
	// information to leave the current dialogue state.
	Sufficient(ctx context.Context, stateGoal, transcript string) (bool, error)

	// Sentiment classifies the emotional tone of the transcript.
	Sentiment(ctx context.Context, transcript string) (Sentiment, error)

	// YesNo classifies the answer to a yes/no question.
	YesNo(ctx context.Context, question, answer string) (Decision, error)
}

// Classification temperature is kept near zero for label stability.
const classifyTemperature = 0.01

const sufficiencyPrompt = `You are a strict judge in a counseling dialogue system.
You are given the goal of the current dialogue stage and the recent conversation.
Decide whether the user has provided enough information for this stage to be complete.
Answer with exactly one word: YES or NO.`

const sentimentPrompt = `You classify the emotional tone of a user's messages in a
Farsi counseling conversation. Answer with exactly one word:
POSITIVE, NEGATIVE, or UNCLEAR.`

const yesNoPrompt = `You are given a question the assistant asked and the user's answer,
possibly in Farsi. Decide whether the answer is an agreement or a refusal.
Answer with exactly one word: YES, NO, or UNCLEAR.`

// GenAIClassifier implements Classifier using the generation collaborator.
type GenAIClassifier struct {
	genaiClient genai.ClientInterface
}

// NewGenAIClassifier creates a classifier backed by the GenAI client.
func NewGenAIClassifier(client genai.ClientInterface) *GenAIClassifier {
	slog.Debug("Creating GenAIClassifier")
	return &GenAIClassifier{genaiClient: client}
}

// Sufficient asks the sufficiency judge whether the stage is complete.
func (c *GenAIClassifier) Sufficient(ctx context.Context, stateGoal, transcript string) (bool, error) {
	user := fmt.Sprintf("Stage goal:\n%s\n\nConversation:\n%s", stateGoal, transcript)
	raw, err := c.genaiClient.Generate(ctx, sufficiencyPrompt, user, classifyTemperature)
	if err != nil {
		slog.Error("GenAIClassifier Sufficient generation failed", "error", err)
		return false, fmt.Errorf("sufficiency classification failed: %w", err)
	}
	label := normalizeLabel(raw)
	slog.Debug("GenAIClassifier Sufficient", "label", label)
	return label == "YES", nil
}

// Sentiment classifies emotional tone; unrecognized labels map to Unclear.
func (c *GenAIClassifier) Sentiment(ctx context.Context, transcript string) (Sentiment, error) {
	raw, err := c.genaiClient.Generate(ctx, sentimentPrompt, transcript, classifyTemperature)
	if err != nil {
		slog.Error("GenAIClassifier Sentiment generation failed", "error", err)
		return SentimentUnclear, fmt.Errorf("sentiment classification failed: %w", err)
	}
	label := normalizeLabel(raw)
	slog.Debug("GenAIClassifier Sentiment", "label", label)
	switch label {
	case "POSITIVE":
		return SentimentPositive, nil
	case "NEGATIVE":
		return SentimentNegative, nil
	default:
		return SentimentUnclear, nil
	}
}

// YesNo classifies agreement; unrecognized labels map to Unclear.
func (c *GenAIClassifier) YesNo(ctx context.Context, question, answer string) (Decision, error) {
	user := fmt.Sprintf("Question:\n%s\n\nAnswer:\n%s", question, answer)
	raw, err := c.genaiClient.Generate(ctx, yesNoPrompt, user, classifyTemperature)
	if err != nil {
		slog.Error("GenAIClassifier YesNo generation failed", "error", err)
		return DecisionUnclear, fmt.Errorf("yes/no classification failed: %w", err)
	}
	label := normalizeLabel(raw)
	slog.Debug("GenAIClassifier YesNo", "label", label)
	switch label {
	case "YES":
		return DecisionAffirmative, nil
	case "NO":
		return DecisionNegative, nil
	default:
		return DecisionUnclear, nil
	}
}

// normalizeLabel reduces raw model output to a bare upper-case label:
// the first whitespace-separated token with surrounding punctuation and
// quotes stripped.
func normalizeLabel(raw string) string {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return ""
	}
	label := strings.Trim(fields[0], ".,:;!?\"'`*")
	return strings.ToUpper(label)
}
