package llmtest

import (
	"encoding/json"
	"fmt"
)

type quizAnswer struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
}

type quizQuestion struct {
	Question string       `json:"question"`
	Answers  []quizAnswer `json:"answers"`
}

// QuizJSON builds create_quiz arguments with the given shape. The correct
// answer of question i is "Q<i> correct"; wrong ones are "Q<i> wrong <j>".
// correctPerQuestion sets how many answers are marked correct.
func QuizJSON(questions, answers, correctPerQuestion int) string {
	payload := struct {
		Questions []quizQuestion `json:"questions"`
	}{}
	for i := 0; i < questions; i++ {
		q := quizQuestion{Question: fmt.Sprintf("Question %d?", i+1)}
		for j := 0; j < answers; j++ {
			if j < correctPerQuestion {
				text := fmt.Sprintf("Q%d correct", i+1)
				if j > 0 {
					text = fmt.Sprintf("Q%d correct %d", i+1, j)
				}
				q.Answers = append(q.Answers, quizAnswer{Answer: text, Correct: true})
				continue
			}
			q.Answers = append(q.Answers, quizAnswer{Answer: fmt.Sprintf("Q%d wrong %d", i+1, j), Correct: false})
		}
		payload.Questions = append(payload.Questions, q)
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// ValidQuizJSON is a 10 question, 4 answer quiz with one correct answer each.
func ValidQuizJSON() string {
	return QuizJSON(10, 4, 1)
}
