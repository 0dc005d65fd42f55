package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/pkg/config"
	"github.com/xhad/fullstackgpt/pkg/llm"
	"github.com/xhad/fullstackgpt/pkg/pipeline"
)

var siteFlags struct {
	sitemap  string
	filters  []string
	question string
}

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Index a website from its sitemap and answer questions about it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig
		sitemap := siteFlags.sitemap
		if sitemap == "" {
			sitemap = cfg.Scraper.SitemapURL
		}
		if sitemap == "" {
			return fmt.Errorf("a sitemap URL is required (--sitemap or scraper.sitemap_url)")
		}
		filters := siteFilters(cmd, cfg)

		var bar *progressbar.ProgressBar
		svc, err := pipeline.Build(cmd.Context(), cfg, pipeline.WithPageProgress(func(string) {
			if bar != nil {
				_ = bar.Add(1)
			}
		}))
		if err != nil {
			return err
		}
		defer svc.Close()

		color.Blue("\nLoading %s\n", sitemap)
		bar = getProgressBar(-1, "📄 Scraping pages...")
		_, err = svc.Pipeline.SiteIndex(cmd.Context(), sitemap, filters)
		_ = bar.Finish()
		if err != nil {
			return err
		}
		color.Green("\n✓ Site indexed\n")

		ask := func(question string) error {
			spinner := getSpinner("🔍 Searching the site...")
			answer, err := svc.Pipeline.AskSite(cmd.Context(), sitemap, filters, question)
			_ = spinner.Finish()
			fmt.Print("\r")
			if err != nil {
				return err
			}
			printSiteAnswer(os.Stdout, answer)
			return nil
		}

		if siteFlags.question != "" {
			return ask(siteFlags.question)
		}

		color.Cyan("\nAsk questions about the site (type 'exit' to quit)")
		p := newPrompter(os.Stdin, os.Stdout)
		for {
			question, ok := p.ask("\nYou: ")
			if !ok {
				return nil
			}
			if question == "" {
				continue
			}
			if err := ask(question); err != nil {
				color.Red("Error: %v\n", err)
			}
		}
	},
}

func init() {
	siteCmd.Flags().StringVarP(&siteFlags.sitemap, "sitemap", "s", "", "Sitemap URL of the site")
	siteCmd.Flags().StringArrayVar(&siteFlags.filters, "filter", nil, "Only index URLs matching this pattern (repeatable)")
	siteCmd.Flags().StringVarP(&siteFlags.question, "question", "q", "", "Answer one question and exit")
}

// siteFilters keeps each --filter value whole, commas included, and falls back to the config list.
func siteFilters(cmd *cobra.Command, cfg *config.Config) []string {
	if !cmd.Flags().Changed("filter") {
		return cfg.Scraper.FilterPatterns
	}
	return siteFlags.filters
}

func printSiteAnswer(out io.Writer, answer models.SiteAnswer) {
	color.New(color.FgCyan).Fprintf(out, "\nAssistant: %s\n", answer.Text)

	sources := make([]string, len(answer.Candidates))
	for i, c := range answer.Candidates {
		sources[i] = c.Source
	}
	if s := llm.FormatSources(sources); s != "" {
		fmt.Fprintln(out, color.HiBlackString(s))
	}
}
