package exercise

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

func TestSuggestPicksRankedExercise(t *testing.T) {
	candidates := []Exercise{
		{Number: "1", Content: "تمرین اول"},
		{Number: "2", Content: "تمرین دوم"},
	}
	s := NewGenAISuggestor(&scriptedGenAI{reply: "2"})

	content, number, err := s.Suggest(context.Background(), candidates, "خلاصه", "beginning")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if number != "2" || content != "تمرین دوم" {
		t.Errorf("expected exercise 2, got number %q content %q", number, content)
	}
}

func TestSuggestTrimsRankerOutput(t *testing.T) {
	candidates := []Exercise{{Number: "0.1", Content: "تمرین"}}
	s := NewGenAISuggestor(&scriptedGenAI{reply: " \"0.1\".\n"})

	_, number, err := s.Suggest(context.Background(), candidates, "", "beginning")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if number != "0.1" {
		t.Errorf("expected punctuation-stripped match, got %q", number)
	}
}

func TestSuggestFallsBackOnUnknownNumber(t *testing.T) {
	candidates := []Exercise{{Number: "1", Content: "تمرین اول"}}
	s := NewGenAISuggestor(&scriptedGenAI{reply: "42"})

	content, number, err := s.Suggest(context.Background(), candidates, "", "beginning")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if number != "1" || content != "تمرین اول" {
		t.Errorf("expected fallback to a real candidate, got %q", number)
	}
}

func TestSuggestRejectsEmptyCandidates(t *testing.T) {
	s := NewGenAISuggestor(&scriptedGenAI{reply: "1"})
	if _, _, err := s.Suggest(context.Background(), nil, "", "beginning"); err == nil {
		t.Error("expected an error for an empty candidate set")
	}
}

func TestRecommendParsesSlashSeparatedSuggestions(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"three suggestions", "آره / نه / بعدا", []string{"آره", "نه", "بعدا"}},
		{"strips periods", "باشه. / حتما.", []string{"باشه", "حتما"}},
		{"caps at three", "یک / دو / سه / چهار", []string{"یک", "دو", "سه"}},
		{"skips empty parts", "آره //  نه", []string{"آره", "نه"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewGenAISuggestor(&scriptedGenAI{reply: tt.reply})
			got, err := s.Recommend(context.Background(), "پیام", "خلاصه")
			if err != nil {
				t.Fatalf("recommend failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d suggestions, got %v", len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("position %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}
