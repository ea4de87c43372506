// Package catalog defines the domain types shared across the harvester.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports that a catalog record does not exist.
var ErrNotFound = errors.New("catalog record not found")

// Difficulty is the closed difficulty enumeration, stored lower-case.
type Difficulty string

// Difficulty values accepted by the catalog.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty lower-cases raw and maps it into the enumeration.
// Any other value is a data-quality error, not something to coerce.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(raw)); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", raw)
	}
}

// Stats holds the per-problem submission statistics.
type Stats struct {
	AcceptedCount   int64   `json:"accepted_count"`
	SubmissionCount int64   `json:"submission_count"`
	AcceptanceRate  float64 `json:"acceptance_rate"`
}

// Problem is one catalog entry, keyed by its stable external identifier.
type Problem struct {
	ProblemID       int64      `json:"problem_id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Difficulty      Difficulty `json:"difficulty"`
	IsPremium       bool       `json:"is_premium"`
	Content         string     `json:"content,omitempty"`
	AcceptanceRate  float64    `json:"acceptance_rate"`
	SubmissionCount int64      `json:"submission_count"`
	AcceptedCount   int64      `json:"accepted_count"`
	TagSlugs        []string   `json:"tags"`
}

// Tag is one distinct topic label, shared across problems by slug.
type Tag struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Result aggregates the outcome of one harvest run.
type Result struct {
	Success      bool     `json:"success"`
	Total        int      `json:"total"`
	SuccessCount int      `json:"success_count"`
	FailCount    int      `json:"fail_count"`
	Failed       []string `json:"failed,omitempty"`
	Message      string   `json:"message"`
}
