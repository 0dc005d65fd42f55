package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/pkg/pipeline"
	"github.com/xhad/fullstackgpt/pkg/quiz"
)

var quizFlags struct {
	file       string
	topic      string
	difficulty string
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate a ten question quiz from a file or a Wikipedia topic and take it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := quizSource(quizFlags.file, quizFlags.topic)
		if err != nil {
			return err
		}
		difficulty, err := models.ParseDifficulty(quizFlags.difficulty)
		if err != nil {
			return err
		}

		svc, err := pipeline.Build(cmd.Context(), currentConfig)
		if err != nil {
			return err
		}
		defer svc.Close()

		spinner := getSpinner("📝 Generating quiz...")
		result, err := svc.Pipeline.Quiz(cmd.Context(), src, difficulty)
		spinner.Finish()
		fmt.Print("\r")
		if err != nil {
			return err
		}

		color.Blue("\n%s quiz on %s\n", strings.ToUpper(string(difficulty)), result.Source)
		return takeQuiz(newPrompter(os.Stdin, os.Stdout), os.Stdout, quiz.NewAttempt(result.Questions))
	},
}

func init() {
	quizCmd.Flags().StringVarP(&quizFlags.file, "file", "f", "", "Document to quiz on (.pdf, .txt, .md, .docx)")
	quizCmd.Flags().StringVarP(&quizFlags.topic, "topic", "t", "", "Wikipedia topic to quiz on")
	quizCmd.Flags().StringVarP(&quizFlags.difficulty, "difficulty", "d", "easy", "easy, medium or hard")
	quizCmd.MarkFlagsMutuallyExclusive("file", "topic")
	quizCmd.MarkFlagsOneRequired("file", "topic")
}

func quizSource(file, topic string) (pipeline.QuizSource, error) {
	if file == "" {
		return pipeline.QuizSource{Topic: topic}, nil
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return pipeline.QuizSource{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return pipeline.QuizSource{FileName: filepath.Base(file), Content: content}, nil
}

// takeQuiz asks every question until the user scores perfectly or stops.
func takeQuiz(p *prompter, out io.Writer, attempt *quiz.Attempt) error {
	questions := quiz.Public(attempt.Questions())

	for {
		selections := make([]string, len(questions))
		for i, q := range questions {
			fmt.Fprintf(out, "\nQ%d. %s\n", i+1, q.Prompt)
			for j, opt := range q.Options {
				fmt.Fprintf(out, "  %d) %s\n", j+1, opt)
			}
			for {
				input, ok := p.ask(fmt.Sprintf("Answer (1-%d): ", len(q.Options)))
				if !ok {
					return nil
				}
				choice, err := selectOption(q, input)
				if err != nil {
					color.New(color.FgRed).Fprintf(out, "%v\n", err)
					continue
				}
				selections[i] = choice
				break
			}
		}

		result, err := attempt.Submit(selections)
		if err != nil {
			return err
		}

		if result.Perfect {
			color.New(color.FgGreen).Fprintf(out, "\n✓ Perfect score: %d/%d\n", result.Score, result.Total)
			return nil
		}

		color.New(color.FgYellow).Fprintf(out, "\nScore: %d/%d\n", result.Score, result.Total)
		for i, correct := range result.Correct {
			if !correct {
				fmt.Fprintf(out, "  ✗ Q%d\n", i+1)
			}
		}

		again, ok := p.ask("Try again? (y/n): ")
		if !ok || !strings.HasPrefix(strings.ToLower(again), "y") {
			return nil
		}
	}
}

// selectOption maps a 1-based option number to the option text.
func selectOption(q quiz.PublicQuestion, input string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(q.Options) {
		return "", fmt.Errorf("enter a number between 1 and %d", len(q.Options))
	}
	return q.Options[n-1], nil
}
