package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/classify"
	"github.com/catalog-scraper/catalog-scraper/pkg/config"
	"github.com/catalog-scraper/catalog-scraper/pkg/crawler"
	"github.com/catalog-scraper/catalog-scraper/pkg/fetch"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/record"
	"github.com/catalog-scraper/catalog-scraper/pkg/seed"
	"github.com/catalog-scraper/catalog-scraper/pkg/sink"
	"github.com/catalog-scraper/catalog-scraper/pkg/storage"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// crawlRuntime owns the components that outlive a single crawl run:
// the state store, the HTTP stack, the record sinks and the seed pool.
type crawlRuntime struct {
	cfg     *config.AppConfig
	log     *logrus.Entry
	store   *storage.BadgerStore
	fetcher *fetch.Fetcher
	sinks   sink.MultiSink
	seeds   *seed.PostgresStore
}

// openRuntime builds the runtime for cfg. Background maintenance goroutines stop with ctx.
func openRuntime(ctx context.Context, cfg *config.AppConfig, log *logrus.Entry, resume bool) (*crawlRuntime, error) {
	store, err := storage.NewBadgerStore(ctx, cfg.StateDir, stateKey(cfg), resume, log.WithField("component", "store"))
	if err != nil {
		return nil, err
	}
	go store.RunGC(ctx, 10*time.Minute)
	rt := &crawlRuntime{cfg: cfg, log: log, store: store}

	httpClient := fetch.NewClient(cfg.HTTPClientSettings, log.WithField("component", "http"))
	limiter := fetch.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, log.WithField("component", "ratelimit"))
	rt.fetcher = fetch.NewFetcher(httpClient, cfg, limiter, log)
	if hosts := fetch.NewHostLimiter(cfg.MaxRequestsPerHost, log); hosts != nil {
		rt.fetcher.WithHostLimiter(hosts)
		go hosts.RunEviction(ctx, 5*time.Minute)
	}

	rt.sinks = sink.MultiSink{sink.NewStoreSink(store, log)}
	if cfg.OutputFile != "" {
		jsonl, err := sink.NewJSONLSink(cfg.OutputFile, resume, log.WithField("sink", "jsonl"))
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.sinks = append(rt.sinks, jsonl)
	}

	if cfg.EffectiveUseSeedDatabase() {
		if dsn := cfg.EffectiveSeedDatabaseURL(); dsn != "" {
			seeds, err := seed.NewPostgresStore(ctx, dsn, cfg.EffectiveSeedTable(), cfg.SeedMaxConns, log)
			if err != nil {
				log.WithField("category", utils.CategorizeError(err)).Errorf("Seed store unavailable, continuing without it: %v", err)
			} else {
				rt.seeds = seeds
			}
		}
	}
	return rt, nil
}

// crawl runs one crawl and writes its summary. Robots data is fetched fresh for every run.
func (rt *crawlRuntime) crawl(ctx context.Context, resume bool) (*models.CrawlSummary, error) {
	deps := crawler.Dependencies{
		Store:      rt.store,
		Fetcher:    rt.fetcher,
		Dispatcher: classify.NewDispatcher(record.NewAssembler(time.Now), rt.log),
		Sink:       rt.sinks,
	}
	robots := fetch.NewRobotsHandler(rt.fetcher, rt.cfg.UserAgent, rt.log)
	if rt.cfg.EffectiveRespectRobots() {
		deps.Robots = robots
	}
	if rt.cfg.EffectiveDiscoverSitemaps() {
		deps.Sitemaps = robots
	}
	if rt.seeds != nil {
		deps.Seeds = rt.seeds
	}

	c, err := crawler.New(rt.cfg, deps, rt.log)
	if err != nil {
		return nil, err
	}
	summary, runErr := c.Run(ctx, resume)

	summaryPath := rt.cfg.SummaryFile
	if summaryPath == "" {
		summaryPath = filepath.Join(rt.cfg.StateDir, "crawl_summary.yaml")
	}
	if err := crawler.WriteSummary(summaryPath, summary, rt.log); err != nil {
		rt.log.Errorf("Failed to write crawl summary: %v", err)
	}
	return summary, runErr
}

// Close releases everything openRuntime acquired
func (rt *crawlRuntime) Close() {
	if err := rt.sinks.Close(); err != nil {
		rt.log.Errorf("Closing record sinks: %v", err)
	}
	if rt.seeds != nil {
		rt.seeds.Close()
	}
	if err := rt.store.Close(); err != nil {
		rt.log.Errorf("Closing store: %v", err)
	}
}
