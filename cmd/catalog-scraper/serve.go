package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/catalog-scraper/catalog-scraper/pkg/classify"
	"github.com/catalog-scraper/catalog-scraper/pkg/mcp"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/record"
)

// newServeCmd exposes the catalog over MCP. The protocol owns stdout with the
// stdio transport, so logs always go to stderr.
func newServeCmd(logger loggerFunc) *cobra.Command {
	var (
		configPath string
		transport  string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an MCP server with catalog tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger(cmd)
			cfg, err := loadAndValidate(configPath, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rt, err := openRuntime(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			server, err := mcp.NewServer(mcp.ServerConfig{Transport: transport, Port: port, Version: version}, mcp.Backend{
				Fetcher:    rt.fetcher,
				Dispatcher: classify.NewDispatcher(record.NewAssembler(time.Now), log),
				Records:    rt.store,
				Crawl: func(ctx context.Context) (*models.CrawlSummary, error) {
					if _, err := rt.store.ResetPages(); err != nil {
						return nil, err
					}
					return rt.crawl(ctx, false)
				},
			}, log)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
				defer cancelShutdown()
				server.Shutdown(shutdownCtx)
			}()
			return server.Run()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to YAML config file")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio, sse)")
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port for the sse transport")
	return cmd
}
