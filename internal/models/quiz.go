package models

import (
	"fmt"
	"strings"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts easy, medium or hard in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", s)
	}
}

type Option struct {
	Text      string `json:"text" msgpack:"text"`
	IsCorrect bool   `json:"is_correct" msgpack:"is_correct"`
}

// QuizQuestion has exactly one option with IsCorrect set.
type QuizQuestion struct {
	Prompt  string   `json:"prompt" msgpack:"prompt"`
	Options []Option `json:"options" msgpack:"options"`
}

// CorrectOption returns the text of the option marked correct.
func (q QuizQuestion) CorrectOption() (string, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.Text, true
		}
	}
	return "", false
}

// GradeResult is the outcome of grading one submission.
type GradeResult struct {
	Score   int    `json:"score" msgpack:"score"`
	Total   int    `json:"total" msgpack:"total"`
	Correct []bool `json:"correct" msgpack:"correct"`
	Perfect bool   `json:"perfect" msgpack:"perfect"`
}
