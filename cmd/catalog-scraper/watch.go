package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/watch"
)

// newWatchCmd re-crawls the catalog on a fixed interval. Page state is reset
// before every run while stored records are kept, so price changes show up
// as new fingerprints on the same product keys.
func newWatchCmd(logger loggerFunc) *cobra.Command {
	var (
		configPath string
		interval   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-crawl the catalog every interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger(cmd)
			every, err := watch.ParseInterval(interval)
			if err != nil {
				return err
			}
			cfg, err := loadAndValidate(configPath, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stopSignals := handleSignals(cancel, log)
			defer stopSignals()

			rt, err := openRuntime(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			scheduler := watch.NewScheduler(cfg.StateDir, every, func(ctx context.Context) (*models.CrawlSummary, error) {
				if _, err := rt.store.ResetPages(); err != nil {
					return nil, err
				}
				return rt.crawl(ctx, false)
			}, log)
			return scheduler.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to YAML config file")
	cmd.Flags().StringVar(&interval, "interval", "24h", "Time between crawls (e.g. 30m, 24h, 7d)")
	return cmd
}
