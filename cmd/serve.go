package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xhad/fullstackgpt/pkg/pipeline"
	"github.com/xhad/fullstackgpt/server"
)

var serveFlags struct {
	port       string
	logRequest bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the quiz, site and research API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serveFlags.port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := pipeline.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		srv := server.NewFromServices(server.Config{
			SitemapURL:     cfg.Scraper.SitemapURL,
			Filters:        cfg.Scraper.FilterPatterns,
			RequestLogging: serveFlags.logRequest,
		}, svc)
		return srv.Run(ctx, ":"+cfg.Server.Port)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "Port to listen on (default server.port or $PORT)")
	serveCmd.Flags().BoolVar(&serveFlags.logRequest, "log-requests", true, "Log every request")
}
