package classify

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
)

type scriptedGenAI struct {
	reply string
}

func (s *scriptedGenAI) Generate(context.Context, string, string, float64) (string, error) {
	return s.reply, nil
}

func (s *scriptedGenAI) GenerateWithMessages(context.Context, []openai.ChatCompletionMessageParamUnion, float64) (string, error) {
	return s.reply, nil
}

func TestSufficientLabelMapping(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"plain yes", "YES", true},
		{"lowercase yes", "yes", true},
		{"yes with punctuation", "Yes.", true},
		{"yes with trailing words", "YES, the user explained enough", true},
		{"plain no", "NO", false},
		{"garbage", "maybe?", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGenAIClassifier(&scriptedGenAI{reply: tt.reply})
			got, err := c.Sufficient(context.Background(), "goal", "transcript")
			if err != nil {
				t.Fatalf("classification failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Sufficient with reply %q = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestSentimentLabelMapping(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Sentiment
	}{
		{"positive", "POSITIVE", SentimentPositive},
		{"negative lowercase", "negative", SentimentNegative},
		{"quoted negative", "\"NEGATIVE\"", SentimentNegative},
		{"explicit unclear", "UNCLEAR", SentimentUnclear},
		{"unrecognized maps to unclear", "HAPPY", SentimentUnclear},
		{"empty maps to unclear", "", SentimentUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGenAIClassifier(&scriptedGenAI{reply: tt.reply})
			got, err := c.Sentiment(context.Background(), "transcript")
			if err != nil {
				t.Fatalf("classification failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Sentiment with reply %q = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestYesNoLabelMapping(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Decision
	}{
		{"yes", "YES", DecisionAffirmative},
		{"no with period", "No.", DecisionNegative},
		{"unclear", "UNCLEAR", DecisionUnclear},
		{"free text maps to unclear", "The user seems hesitant", DecisionUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGenAIClassifier(&scriptedGenAI{reply: tt.reply})
			got, err := c.YesNo(context.Background(), "question", "answer")
			if err != nil {
				t.Fatalf("classification failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("YesNo with reply %q = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}
