package flow

import (
	"log/slog"
	"strings"
	"sync"
	"unicode"
)

// PhraseCategory groups bot utterances for repetition tracking, so an
// empathic opener and a follow-up question are judged against their own
// kind rather than the whole transcript.
type PhraseCategory string

const (
	CategoryEmpathy    PhraseCategory = "empathy"
	CategoryQuestion   PhraseCategory = "question"
	CategoryTransition PhraseCategory = "transition"
	CategoryGeneral    PhraseCategory = "general"
)

// Repetition guard tuning.
const (
	// phraseWindowSize is how many recent fragments per category are remembered.
	phraseWindowSize = 5
	// overuseThreshold is how many uses put a watch-list word on the avoid list.
	overuseThreshold = 2
	// minFragmentRunes is the minimum normalized fragment length worth tracking.
	minFragmentRunes = 5
)

// watchWords are stylistic filler words the generator falls back on when
// it runs out of variety. Their per-conversation frequency is tracked so
// overused ones can be called out in the avoidance context.
var watchWords = []string{
	"خب",
	"راستش",
	"متوجهم",
	"می‌فهمم",
	"درکت می‌کنم",
	"عزیزم",
	"البته",
	"واقعا",
}

// RepetitionGuard tracks the bot's recent phrasing per participant and
// session so prompts can steer the generator away from repeating itself.
// State is scoped to a single participant's current session; ending the
// session resets it.
type RepetitionGuard struct {
	mu    sync.Mutex
	users map[string]*guardState
}

type guardState struct {
	recent     map[PhraseCategory][]string
	wordCounts map[string]int
}

// NewRepetitionGuard creates an empty guard.
func NewRepetitionGuard() *RepetitionGuard {
	return &RepetitionGuard{users: make(map[string]*guardState)}
}

// Record remembers the sentence fragments of a reply the bot just sent.
// Fragments shorter than the tracking minimum are skipped; the oldest
// entry in the category is evicted once the window is full. Watch-list
// word frequencies are updated from the whole text.
func (g *RepetitionGuard) Record(participantID string, category PhraseCategory, text string) {
	fragments := splitSentences(text)
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state(participantID)

	for _, fragment := range fragments {
		norm := NormalizePhrase(fragment)
		if len([]rune(norm)) < minFragmentRunes {
			continue
		}
		window := append(st.recent[category], norm)
		if len(window) > phraseWindowSize {
			window = window[len(window)-phraseWindowSize:]
		}
		st.recent[category] = window
	}

	// Count watch words on token boundaries so a filler like "خب" does
	// not match inside longer words.
	tokens := strings.Fields(strings.ToLower(text))
	for i, tok := range tokens {
		tokens[i] = strings.TrimFunc(tok, unicode.IsPunct)
	}
	joined := " " + strings.Join(tokens, " ") + " "
	for _, w := range watchWords {
		st.wordCounts[w] += strings.Count(joined, " "+w+" ")
	}
	slog.Debug("RepetitionGuard recorded reply", "participantID", participantID, "category", category, "fragments", len(fragments))
}

// IsPhraseUsed reports whether the normalized phrase appears in the
// participant's recent window for the category.
func (g *RepetitionGuard) IsPhraseUsed(participantID string, category PhraseCategory, phrase string) bool {
	norm := NormalizePhrase(phrase)
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state(participantID)
	for _, p := range st.recent[category] {
		if p == norm {
			return true
		}
	}
	return false
}

// IsOverused reports whether a watch-list word has reached the overuse
// threshold in the participant's current session.
func (g *RepetitionGuard) IsOverused(participantID, word string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state(participantID).wordCounts[strings.ToLower(word)] >= overuseThreshold
}

// AvoidanceContext renders the participant's recent fragments for the
// category plus any overused watch-list words as an instruction block to
// prepend to the next generation prompt. Returns "" when there is
// nothing to avoid.
func (g *RepetitionGuard) AvoidanceContext(participantID string, category PhraseCategory) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.state(participantID)

	var b strings.Builder
	if recent := st.recent[category]; len(recent) > 0 {
		b.WriteString("این جمله‌ها را اخیرا گفته‌ای؛ از تکرار آن‌ها خودداری کن:")
		for _, p := range recent {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
	}
	var overused []string
	for _, w := range watchWords {
		if st.wordCounts[w] >= overuseThreshold {
			overused = append(overused, w)
		}
	}
	if len(overused) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("از این کلمه‌های تکراری کمتر استفاده کن: ")
		b.WriteString(strings.Join(overused, "، "))
	}
	return b.String()
}

// Reset clears the participant's guard state, for session end.
func (g *RepetitionGuard) Reset(participantID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.users, participantID)
}

// state returns the participant's guard state, creating it if needed.
// Caller must hold g.mu.
func (g *RepetitionGuard) state(participantID string) *guardState {
	st, ok := g.users[participantID]
	if !ok {
		st = &guardState{
			recent:     make(map[PhraseCategory][]string),
			wordCounts: make(map[string]int),
		}
		g.users[participantID] = st
	}
	return st
}

// splitSentences breaks text into sentence-like fragments on
// sentence-final punctuation (Latin and Farsi) and newlines.
func splitSentences(text string) []string {
	var fragments []string
	var current strings.Builder
	for _, r := range text {
		switch r {
		case '.', '!', '?', '؟', '…', '\n':
			if s := strings.TrimSpace(current.String()); s != "" {
				fragments = append(fragments, s)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		fragments = append(fragments, s)
	}
	return fragments
}

// NormalizePhrase canonicalizes a phrase for comparison: case folded,
// whitespace runs collapsed, and terminal punctuation stripped. Farsi
// question and exclamation marks count as terminal punctuation.
func NormalizePhrase(phrase string) string {
	s := strings.Join(strings.Fields(phrase), " ")
	s = strings.TrimRightFunc(s, unicode.IsPunct)
	return strings.ToLower(strings.TrimSpace(s))
}
