package flow

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/Hamraz/internal/classify"
	"github.com/BTreeMap/Hamraz/internal/exercise"
)

// mockGenAI is a scripted generation client. Reply returns the fixed
// response; generateFn, when set, overrides it.
type mockGenAI struct {
	mu           sync.Mutex
	reply        string
	generateFn   func(systemPrompt, userPrompt string) string
	calls        int
	lastMessages []openai.ChatCompletionMessageParamUnion
}

func (m *mockGenAI) Generate(_ context.Context, systemPrompt, userPrompt string, _ float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.generateFn != nil {
		return m.generateFn(systemPrompt, userPrompt), nil
	}
	return m.reply, nil
}

func (m *mockGenAI) GenerateWithMessages(_ context.Context, msgs []openai.ChatCompletionMessageParamUnion, _ float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMessages = msgs
	return m.reply, nil
}

func (m *mockGenAI) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// lastSystemPrompt returns the wire form of the most recent chat call's
// leading system message.
func (m *mockGenAI) lastSystemPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.lastMessages) == 0 {
		return ""
	}
	raw, err := json.Marshal(m.lastMessages[0])
	if err != nil {
		return ""
	}
	return string(raw)
}

// mockClassifier returns fixed classifications.
type mockClassifier struct {
	sufficient bool
	sentiment  classify.Sentiment
	decision   classify.Decision
}

func (m *mockClassifier) Sufficient(context.Context, string, string) (bool, error) {
	return m.sufficient, nil
}

func (m *mockClassifier) Sentiment(context.Context, string) (classify.Sentiment, error) {
	return m.sentiment, nil
}

func (m *mockClassifier) YesNo(context.Context, string, string) (classify.Decision, error) {
	return m.decision, nil
}

// mockSuggestor returns the first candidate and canned texts.
type mockSuggestor struct{}

func (mockSuggestor) Suggest(_ context.Context, candidates []exercise.Exercise, _, _ string) (string, string, error) {
	return candidates[0].Content, candidates[0].Number, nil
}

func (mockSuggestor) Explain(context.Context, string, string) (string, error) {
	return "این تمرین برای حال امروزت مناسبه", nil
}

func (mockSuggestor) Recommend(context.Context, string, string) ([]string, error) {
	return []string{"آره", "نه", "بعدا"}, nil
}
