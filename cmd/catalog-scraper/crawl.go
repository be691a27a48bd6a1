package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/catalog-scraper/catalog-scraper/pkg/config"
	"github.com/catalog-scraper/catalog-scraper/pkg/parse"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const gracefulShutdownTimeout = 30 * time.Second

type loggerFunc func(cmd *cobra.Command) *logrus.Entry

func newCrawlCmd(logger loggerFunc) *cobra.Command {
	var (
		configPath      string
		resume          bool
		writeVisitedLog bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a full catalog crawl",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, logger(cmd), configPath, resume, writeVisitedLog)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to YAML config file")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume crawl using existing state DB")
	cmd.Flags().BoolVar(&writeVisitedLog, "write-visited-log", false, "Write a log file of all visited URLs from the DB")
	return cmd
}

// loadAndValidate reads the config file and applies defaults, logging every warning
func loadAndValidate(path string, log *logrus.Entry) (*config.AppConfig, error) {
	log.Infof("Loading configuration from %s", path)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// stateKey names the crawl database after the host of the first valid start URL
func stateKey(cfg *config.AppConfig) string {
	for _, raw := range cfg.StartURLs {
		if _, u, err := parse.ParseAndNormalize(raw); err == nil {
			return u.Hostname()
		}
	}
	return "catalog"
}

func runCrawl(cmd *cobra.Command, log *logrus.Entry, configPath string, resume, writeVisitedLog bool) error {
	cfg, err := loadAndValidate(configPath, log)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"concurrency": cfg.Concurrency,
		"scope":       cfg.Scope,
		"rps":         cfg.RequestsPerSecond,
		"state_dir":   cfg.StateDir,
		"seed_db":     cfg.EffectiveUseSeedDatabase(),
	}).Info("Effective configuration")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopSignals := handleSignals(cancel, log)
	defer stopSignals()

	rt, err := openRuntime(ctx, cfg, log, resume)
	if err != nil {
		return err
	}
	defer rt.Close()

	_, runErr := rt.crawl(ctx, resume)

	if writeVisitedLog {
		visitedPath := filepath.Join(cfg.StateDir, utils.SanitizeFilename(stateKey(cfg))+"-visited.txt")
		if err := rt.store.WriteVisitedLog(visitedPath); err != nil {
			log.Errorf("Error writing visited log: %v", err)
		}
	}

	switch {
	case runErr == nil:
		log.Info("Crawl completed successfully.")
		return nil
	case errors.Is(runErr, context.Canceled):
		log.Warn("Crawl cancelled gracefully.")
		return nil
	case errors.Is(runErr, context.DeadlineExceeded):
		return fmt.Errorf("crawl timed out (global timeout): %w", runErr)
	default:
		return fmt.Errorf("crawl finished with error: %w", runErr)
	}
}

// handleSignals cancels the crawl on SIGINT/SIGTERM and forces exit on a second
// signal or when the graceful period runs out. The returned func stops listening.
func handleSignals(cancel context.CancelFunc, log *logrus.Entry) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(gracefulShutdownTimeout):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
