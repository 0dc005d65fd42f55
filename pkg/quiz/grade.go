package quiz

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xhad/fullstackgpt/internal/models"
)

var (
	ErrQuizCompleted  = errors.New("quiz already completed with a perfect score")
	ErrSelectionCount = errors.New("selection count does not match question count")
)

// Grade compares each selection with the correct option text of its question.
// An empty selection counts as unanswered.
func Grade(questions []models.QuizQuestion, selections []string) (models.GradeResult, error) {
	if len(selections) != len(questions) {
		return models.GradeResult{}, fmt.Errorf("%w: got %d, want %d", ErrSelectionCount, len(selections), len(questions))
	}

	result := models.GradeResult{
		Total:   len(questions),
		Correct: make([]bool, len(questions)),
	}
	for i, q := range questions {
		answer, ok := q.CorrectOption()
		if ok && selections[i] != "" && selections[i] == answer {
			result.Correct[i] = true
			result.Score++
		}
	}
	result.Perfect = result.Total > 0 && result.Score == result.Total
	return result, nil
}

// Attempt is one user's run through a quiz. After a perfect score it accepts no
// further submissions.
type Attempt struct {
	mu        sync.Mutex
	questions []models.QuizQuestion
	completed bool
	attempts  int
}

func NewAttempt(questions []models.QuizQuestion) *Attempt {
	return &Attempt{questions: questions}
}

func (a *Attempt) Submit(selections []string) (models.GradeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completed {
		return models.GradeResult{}, ErrQuizCompleted
	}

	result, err := Grade(a.questions, selections)
	if err != nil {
		return result, err
	}
	a.attempts++
	a.completed = result.Perfect
	return result, nil
}

func (a *Attempt) Completed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

func (a *Attempt) Attempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

func (a *Attempt) Questions() []models.QuizQuestion {
	return a.questions
}

// PublicQuestion is a question with correctness hidden.
type PublicQuestion struct {
	Prompt  string   `json:"prompt" msgpack:"prompt"`
	Options []string `json:"options" msgpack:"options"`
}

func Public(questions []models.QuizQuestion) []PublicQuestion {
	out := make([]PublicQuestion, len(questions))
	for i, q := range questions {
		opts := make([]string, len(q.Options))
		for j, o := range q.Options {
			opts[j] = o.Text
		}
		out[i] = PublicQuestion{Prompt: q.Prompt, Options: opts}
	}
	return out
}
