package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/storage"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// newExportCmd dumps the latest stored record of every product as JSON lines
func newExportCmd(logger loggerFunc) *cobra.Command {
	var (
		configPath string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored product records as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger(cmd)
			cfg, err := loadAndValidate(configPath, log)
			if err != nil {
				return err
			}

			store, err := storage.NewBadgerStore(cmd.Context(), cfg.StateDir, stateKey(cfg), true, log.WithField("component", "store"))
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("%w: creating '%s': %w", utils.ErrFilesystem, outPath, err)
				}
				defer f.Close()
				out = f
			}

			n, err := exportRecords(cmd.Context(), store, out)
			if err != nil {
				return err
			}
			log.Infof("Exported %d record(s)", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to YAML config file")
	cmd.Flags().StringVar(&outPath, "out", "-", "Output file, '-' for stdout")
	return cmd
}

func exportRecords(ctx context.Context, store storage.RecordStore, out io.Writer) (int, error) {
	enc := json.NewEncoder(out)
	n := 0
	err := store.ForEachRecord(ctx, func(_ string, entry models.RecordDBEntry) error {
		n++
		return enc.Encode(entry.Record)
	})
	return n, err
}
