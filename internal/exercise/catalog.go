// Package exercise provides the self-attachment exercise catalog, the
// calendar-day unlock gating, and the GenAI-backed suggestion collaborator.
package exercise

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "embed"
)

//go:embed catalog.json
var catalogJSON []byte

// Exercise is one entry of the program catalog. Numbers are strings
// because the warm-up bucket uses fractional identifiers ("0.1", "0.2").
type Exercise struct {
	Number       string `json:"number"`
	Task         string `json:"task"`
	Stage        string `json:"stage"`
	Circumstance string `json:"circumstance,omitempty"`
	Content      string `json:"content"`
}

// Catalog holds the full ordered exercise list.
type Catalog struct {
	exercises []Exercise
}

// Day-gating policy constants.
const (
	// UnlocksPerDay is how many numbered exercises each calendar day unlocks.
	UnlocksPerDay = 3
	// AllUnlockedDay is the day index from which the full catalog is available.
	AllUnlockedDay = 8
)

// LoadCatalog parses the embedded exercise catalog.
func LoadCatalog() (*Catalog, error) {
	var exercises []Exercise
	if err := json.Unmarshal(catalogJSON, &exercises); err != nil {
		slog.Error("LoadCatalog failed to parse embedded catalog", "error", err)
		return nil, fmt.Errorf("failed to parse exercise catalog: %w", err)
	}
	slog.Debug("LoadCatalog succeeded", "count", len(exercises))
	return &Catalog{exercises: exercises}, nil
}

// All returns every exercise in catalog order.
func (c *Catalog) All() []Exercise {
	out := make([]Exercise, len(c.exercises))
	copy(out, c.exercises)
	return out
}

// Get returns the exercise with the given number, or nil.
func (c *Catalog) Get(number string) *Exercise {
	for i := range c.exercises {
		if c.exercises[i].Number == number {
			return &c.exercises[i]
		}
	}
	return nil
}

// DayGated returns the subset of the catalog unlocked at the given day
// index. Day d (1..7) unlocks numbered exercises 1..3d; the fractional
// warm-up bucket (0.x) is always available; day 8 and later unlock the
// full catalog.
func (c *Catalog) DayGated(dayIndex int) []Exercise {
	if dayIndex < 1 {
		dayIndex = 1
	}
	var out []Exercise
	for _, ex := range c.exercises {
		if unlockedOnDay(ex.Number, dayIndex) {
			out = append(out, ex)
		}
	}
	return out
}

// Filter returns the exercises from the given set whose numbers are not
// in the completed set.
func Filter(exercises []Exercise, completed map[string]bool) []Exercise {
	var out []Exercise
	for _, ex := range exercises {
		if !completed[ex.Number] {
			out = append(out, ex)
		}
	}
	return out
}

// unlockedOnDay reports whether an exercise number is available on the
// given 1-based day index.
func unlockedOnDay(number string, dayIndex int) bool {
	if dayIndex >= AllUnlockedDay {
		return true
	}
	if strings.HasPrefix(number, "0.") {
		return true
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		// Unparseable numbers stay locked until the full-catalog day.
		return false
	}
	return n <= UnlocksPerDay*dayIndex
}
