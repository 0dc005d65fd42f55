package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/fullstackgpt/pkg/pipeline"
	"github.com/xhad/fullstackgpt/pkg/research"
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Research a query with Wikipedia, web search and page extraction",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := pipeline.Build(cmd.Context(), currentConfig)
		if err != nil {
			return err
		}
		defer svc.Close()

		run := func(question string) error {
			fmt.Print("\n")
			_, err := svc.Assistant.Run(cmd.Context(), question, printEvent(os.Stdout))
			return err
		}

		if len(args) > 0 {
			return run(strings.Join(args, " "))
		}

		color.Cyan("\nAsk for research on anything (type 'exit' to quit)")
		p := newPrompter(os.Stdin, os.Stdout)
		for {
			question, ok := p.ask("\nYou: ")
			if !ok {
				return nil
			}
			if question == "" {
				continue
			}
			if err := run(question); err != nil {
				color.Red("Error: %v\n", err)
			}
		}
	},
}

// printEvent shows tool calls as status lines and streams the reply as it arrives.
func printEvent(out io.Writer) func(research.Event) {
	streamed := false
	return func(e research.Event) {
		switch e.Type {
		case research.EventStatus:
			color.New(color.FgYellow).Fprintf(out, "• %s\n", e.Content)
		case research.EventStream:
			if !streamed {
				color.New(color.FgCyan).Fprint(out, "Assistant: ")
				streamed = true
			}
			fmt.Fprint(out, e.Content)
		case research.EventResponse:
			if !streamed {
				color.New(color.FgCyan).Fprintf(out, "Assistant: %s", e.Content)
			}
			fmt.Fprint(out, "\n")
			streamed = false
		}
	}
}
