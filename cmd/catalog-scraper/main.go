package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "catalog-scraper",
		Short: "Crawl the kiwoko.pt catalog into normalized product records",
		Long: `catalog-scraper walks the store's sitemaps, category menus and product
listings, follows every product variant and stores one normalized record per product.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")

	logger := func(cmd *cobra.Command) *logrus.Entry {
		return newLogger(cmd.ErrOrStderr(), logLevel)
	}

	root.AddCommand(
		newCrawlCmd(logger),
		newClassifyCmd(logger),
		newExportCmd(logger),
		newWatchCmd(logger),
		newServeCmd(logger),
		newVersionCmd(),
	)
	return root
}

// newLogger builds the process logger. An unknown level falls back to info.
func newLogger(out io.Writer, level string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", level, err)
	} else {
		log.SetLevel(parsed)
	}
	return logrus.NewEntry(log)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catalog-scraper %s\n", version)
		},
	}
}
