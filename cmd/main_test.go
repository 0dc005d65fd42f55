package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/pkg/config"
	"github.com/xhad/fullstackgpt/pkg/quiz"
	"github.com/xhad/fullstackgpt/pkg/research"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func twoQuestions() []models.QuizQuestion {
	return []models.QuizQuestion{
		{Prompt: "Q1?", Options: []models.Option{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		{Prompt: "Q2?", Options: []models.Option{{Text: "c"}, {Text: "d", IsCorrect: true}}},
	}
}

func TestSelectOption(t *testing.T) {
	q := quiz.PublicQuestion{Prompt: "Q?", Options: []string{"a", "b", "c", "d"}}

	got, err := selectOption(q, " 3 ")
	require.NoError(t, err)
	assert.Equal(t, "c", got)

	for _, bad := range []string{"0", "5", "c", ""} {
		_, err := selectOption(q, bad)
		assert.Error(t, err, bad)
	}
}

func TestTakeQuizUntilPerfect(t *testing.T) {
	in := strings.NewReader("1\n1\ny\n5\n1\n2\n")
	var out bytes.Buffer
	attempt := quiz.NewAttempt(twoQuestions())

	require.NoError(t, takeQuiz(newPrompter(in, &out), &out, attempt))

	assert.Contains(t, out.String(), "Score: 1/2")
	assert.Contains(t, out.String(), "✗ Q2")
	assert.Contains(t, out.String(), "enter a number between 1 and 2")
	assert.Contains(t, out.String(), "Perfect score: 2/2")
	assert.True(t, attempt.Completed())
	assert.Equal(t, 2, attempt.Attempts())
}

func TestTakeQuizStopsOnExit(t *testing.T) {
	var out bytes.Buffer
	attempt := quiz.NewAttempt(twoQuestions())

	require.NoError(t, takeQuiz(newPrompter(strings.NewReader("1\nexit\n"), &out), &out, attempt))
	assert.Equal(t, 0, attempt.Attempts())

	require.NoError(t, takeQuiz(newPrompter(strings.NewReader("2\n1\nn\n"), &out), &out, attempt))
	assert.Equal(t, 1, attempt.Attempts())
	assert.False(t, attempt.Completed())
}

func TestQuizSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Cells"), 0o644))

	src, err := quizSource(path, "")
	require.NoError(t, err)
	assert.Equal(t, "notes.md", src.FileName)
	assert.Equal(t, []byte("# Cells"), src.Content)

	src, err = quizSource("", "Photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", src.Topic)

	_, err = quizSource(filepath.Join(t.TempDir(), "missing.txt"), "")
	assert.Error(t, err)
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	emit := printEvent(&out)

	emit(research.Event{Type: research.EventStatus, Content: "Calling function: get_term"})
	emit(research.Event{Type: research.EventStream, Content: "The XZ "})
	emit(research.Event{Type: research.EventStream, Content: "backdoor"})
	emit(research.Event{Type: research.EventResponse, Content: "The XZ backdoor"})
	emit(research.Event{Type: research.EventResponse, Content: "Unstreamed"})

	text := out.String()
	assert.Contains(t, text, "• Calling function: get_term")
	assert.Contains(t, text, "The XZ backdoor\n")
	assert.Equal(t, 1, strings.Count(text, "The XZ backdoor"))
	assert.Contains(t, text, "Assistant: Unstreamed\n")
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n  api_key: sk-test\n"), 0o644))

	require.NoError(t, rootCmd.ParseFlags([]string{
		"--config", path,
		"--provider", "ollama",
		"--ollama-url", "http://127.0.0.1:11434",
		"--log-file", filepath.Join(dir, "run.log"),
	}))
	t.Cleanup(func() {
		for _, name := range []string{"config", "provider", "ollama-url", "log-file"} {
			f := rootCmd.PersistentFlags().Lookup(name)
			_ = f.Value.Set("")
			f.Changed = false
		}
	})

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "", cfg.LLM.Model, "model default is left to the provider")
	assert.Equal(t, "http://127.0.0.1:11434", cfg.LLM.BaseURL)
	assert.Equal(t, filepath.Join(dir, "run.log"), cfg.Logging.File)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_BASE_URL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n"), 0o644))

	require.NoError(t, rootCmd.ParseFlags([]string{"--config", path}))
	t.Cleanup(func() {
		f := rootCmd.PersistentFlags().Lookup("config")
		_ = f.Value.Set("")
		f.Changed = false
	})

	_, err := loadConfig(rootCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")
}

func TestSiteFiltersKeepCommas(t *testing.T) {
	cfg := &config.Config{}
	cfg.Scraper.FilterPatterns = []string{"/blog/"}

	assert.Equal(t, []string{"/blog/"}, siteFilters(siteCmd, cfg))

	require.NoError(t, siteCmd.ParseFlags([]string{"--filter", "^/blog/.{1,3}$", "--filter", "/docs/"}))
	t.Cleanup(func() {
		siteFlags.filters = nil
		siteCmd.Flags().Lookup("filter").Changed = false
	})

	assert.Equal(t, []string{"^/blog/.{1,3}$", "/docs/"}, siteFilters(siteCmd, cfg))
}
