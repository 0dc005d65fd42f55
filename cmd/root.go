package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/fullstackgpt/internal/logging"
	"github.com/xhad/fullstackgpt/pkg/config"
)

var (
	configPath string
	overrides  struct {
		provider  string
		model     string
		ollamaURL string
		dbURL     string
		index     string
		logFile   string
	}
	currentConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "fullstackgpt",
	Short:         "Quizzes from documents, answers from websites and guided web research",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := logging.Init(cfg.Logging.File); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		currentConfig = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to config file")
	flags.StringVar(&overrides.provider, "provider", "", "LLM provider (openai or ollama)")
	flags.StringVar(&overrides.model, "model", "", "LLM model to use")
	flags.StringVar(&overrides.ollamaURL, "ollama-url", "", "Ollama server URL")
	flags.StringVar(&overrides.dbURL, "db-url", "", "PostgreSQL connection string")
	flags.StringVar(&overrides.index, "index", "", "Index backend (memory or pgvector)")
	flags.StringVar(&overrides.logFile, "log-file", "", "Also write logs to this file")

	rootCmd.AddCommand(quizCmd, siteCmd, researchCmd, serveCmd)
}

// loadConfig reads the config file, lets explicitly set flags override it and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") && overrides.provider != cfg.LLM.Provider {
		cfg.LLM.Provider = overrides.provider
		// the defaults belong to the previous provider
		cfg.LLM.Model = ""
		cfg.LLM.EmbeddingModel = ""
	}
	if flags.Changed("model") {
		cfg.LLM.Model = overrides.model
	}
	if flags.Changed("ollama-url") {
		cfg.LLM.BaseURL = overrides.ollamaURL
	}
	if flags.Changed("db-url") {
		cfg.Database.URL = overrides.dbURL
	}
	if flags.Changed("index") {
		cfg.Index.Backend = overrides.index
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = overrides.logFile
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}
	return cfg, nil
}

// prompter reads one trimmed line per call. It returns false at end of input or on exit.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *prompter) ask(label string) (string, bool) {
	color.New(color.FgGreen).Fprintf(p.out, "%s", label)
	if !p.scanner.Scan() {
		return "", false
	}
	line := strings.TrimSpace(p.scanner.Text())
	if strings.EqualFold(line, "exit") {
		return "", false
	}
	return line, true
}
