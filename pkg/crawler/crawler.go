package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/catalog-scraper/catalog-scraper/pkg/config"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/parse"
	"github.com/catalog-scraper/catalog-scraper/pkg/queue"
	"github.com/catalog-scraper/catalog-scraper/pkg/seed"
	"github.com/catalog-scraper/catalog-scraper/pkg/sink"
	"github.com/catalog-scraper/catalog-scraper/pkg/storage"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const defaultProgressInterval = 30 * time.Second

// Fetcher turns a URL into a decoded resource
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.FetchedResource, error)
}

// RobotsChecker decides whether a URL may be fetched
type RobotsChecker interface {
	Allowed(ctx context.Context, targetURL *url.URL) bool
}

// SitemapSource lists the sitemaps advertised for a host
type SitemapSource interface {
	Sitemaps(ctx context.Context, targetURL *url.URL) []string
}

// Dispatcher routes a fetched resource to its handler
type Dispatcher interface {
	Dispatch(ctx context.Context, res *models.FetchedResource) (models.HandlerResult, error)
}

// Dependencies are the components a Crawler drives. Robots, Sitemaps and Seeds are optional.
type Dependencies struct {
	Store      storage.VisitedStore
	Fetcher    Fetcher
	Robots     RobotsChecker
	Sitemaps   SitemapSource
	Dispatcher Dispatcher
	Sink       sink.RecordSink
	Seeds      seed.Store
}

// Crawler runs one crawl over the catalog: it schedules URLs, fetches them and
// hands each resource to the dispatcher.
type Crawler struct {
	log        *logrus.Entry
	cfg        *config.AppConfig
	scope      *regexp.Regexp
	disallowed []*regexp.Regexp

	store      storage.VisitedStore
	fetcher    Fetcher
	robots     RobotsChecker
	sitemaps   SitemapSource
	dispatcher Dispatcher
	sink       sink.RecordSink
	seeds      seed.Store

	frontier *queue.Frontier
	stats    *runStats

	progressInterval time.Duration
}

// New creates a Crawler. cfg must already be validated.
func New(cfg *config.AppConfig, deps Dependencies, logger *logrus.Entry) (*Crawler, error) {
	if deps.Store == nil || deps.Fetcher == nil || deps.Dispatcher == nil || deps.Sink == nil {
		return nil, fmt.Errorf("%w: crawler needs a store, fetcher, dispatcher and sink", utils.ErrConfigValidation)
	}
	scope, err := utils.CompileScope(cfg.Scope)
	if err != nil {
		return nil, err
	}
	disallowed, err := utils.CompileRegexPatterns(cfg.DisallowedPatterns)
	if err != nil {
		return nil, err
	}

	log := logger.WithField("component", "crawler")
	if len(disallowed) > 0 {
		log.Infof("Compiled %d disallowed URL patterns.", len(disallowed))
	}

	return &Crawler{
		log:              log,
		cfg:              cfg,
		scope:            scope,
		disallowed:       disallowed,
		store:            deps.Store,
		fetcher:          deps.Fetcher,
		robots:           deps.Robots,
		sitemaps:         deps.Sitemaps,
		dispatcher:       deps.Dispatcher,
		sink:             deps.Sink,
		seeds:            deps.Seeds,
		frontier:         queue.NewFrontier(logger),
		stats:            newRunStats(),
		progressInterval: defaultProgressInterval,
	}, nil
}

// Run crawls until the frontier drains or ctx ends.
// The returned summary is always filled in; the error is the context error, if any.
func (c *Crawler) Run(ctx context.Context, resume bool) (*models.CrawlSummary, error) {
	summary := &models.CrawlSummary{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	runLog := c.log.WithFields(logrus.Fields{"run_id": summary.RunID, "resume": resume})

	if c.cfg.GlobalCrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.GlobalCrawlTimeout)
		defer cancel()
	}

	startURLs := c.cfg.StartURLs
	if c.seeds != nil && c.cfg.EffectiveUseSeedDatabase() {
		startURLs = seed.MergeSeeds(ctx, c.seeds, startURLs, c.scope, runLog.WithField("component", "seed"))
		summary.SeedURLs = len(startURLs) - len(c.cfg.StartURLs)
	}

	requeued := 0
	if resume {
		requeued = c.requeueIncomplete(ctx, runLog)
		if err := ctx.Err(); err != nil {
			return c.finish(summary, runLog), err
		}
	}

	seeded := c.seedStartURLs(startURLs, runLog)
	summary.StartURLs = seeded
	summary.SitemapURLs = c.discoverSitemaps(ctx, startURLs, runLog)
	if seeded == 0 && requeued == 0 && summary.SitemapURLs == 0 {
		if resume {
			runLog.Info("Nothing left to resume")
			return c.finish(summary, runLog), nil
		}
		return c.finish(summary, runLog), fmt.Errorf("%w: no valid start URLs in scope %q", utils.ErrConfigValidation, c.scope.String())
	}

	runLog.Infof("Crawl starting with concurrency %d (%d start URL(s), %d requeued)", c.cfg.Concurrency, seeded, requeued)

	progressDone := make(chan struct{})
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		c.reportProgress(ctx, progressDone, runLog)
	}()

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	workerLog := runLog.WithField("component", "worker")
	for {
		item, ok := c.frontier.Pop(ctx)
		if !ok {
			break
		}
		g.Go(func() error {
			defer c.frontier.Done()
			c.processTask(ctx, item, workerLog)
			return nil
		})
	}
	_ = g.Wait()
	c.frontier.Close()

	close(progressDone)
	progressWG.Wait()

	return c.finish(summary, runLog), ctx.Err()
}

// seedStartURLs deduplicates and validates the start URLs and adds them at depth 0.
// A start URL already finished in a resumed store is not queued again.
func (c *Crawler) seedStartURLs(startURLs []string, runLog *logrus.Entry) int {
	seen := make(map[string]bool, len(startURLs))
	added := 0
	for i, raw := range startURLs {
		startLog := runLog.WithFields(logrus.Fields{"index": i, "url": raw})
		normalized, _, err := parse.ParseAndNormalize(raw)
		if err != nil {
			startLog.Warnf("Invalid start URL, skipping: %v", err)
			continue
		}
		if seen[normalized] {
			startLog.Debug("Duplicate start URL, skipping")
			continue
		}
		seen[normalized] = true
		if !parse.IsInScope(c.scope, raw) {
			startLog.Warn("Start URL out of scope, skipping")
			continue
		}

		if _, err := c.store.MarkPageVisited(normalized); err != nil {
			startLog.Errorf("Failed to mark start URL visited: %v", err)
		}
		if status, _, err := c.store.CheckPageStatus(normalized); err == nil && status.IsTerminal() {
			startLog.Infof("Start URL already %s, skipping", status)
			continue
		}
		c.frontier.Add(models.WorkItem{URL: raw, Depth: 0})
		added++
	}
	return added
}

// discoverSitemaps queues the robots.txt sitemaps of every start URL host at depth 0.
// Each host is asked once; already known sitemap URLs are not queued again.
func (c *Crawler) discoverSitemaps(ctx context.Context, startURLs []string, runLog *logrus.Entry) int {
	if c.sitemaps == nil || !c.cfg.EffectiveDiscoverSitemaps() {
		return 0
	}
	smLog := runLog.WithField("component", "sitemap")
	hosts := make(map[string]bool)
	added := 0
	for _, raw := range startURLs {
		_, u, err := parse.ParseAndNormalize(raw)
		if err != nil || !parse.IsInScope(c.scope, raw) {
			continue
		}
		hostKey := u.Scheme + "://" + u.Host
		if hosts[hostKey] {
			continue
		}
		hosts[hostKey] = true

		for _, sm := range c.sitemaps.Sitemaps(ctx, u) {
			if c.schedule(sm, 0, smLog) {
				added++
			}
		}
	}
	if added > 0 {
		smLog.Infof("Queued %d sitemap(s) from robots.txt", added)
	}
	return added
}

// requeueIncomplete moves pending and failed pages from the store back into the frontier
func (c *Crawler) requeueIncomplete(ctx context.Context, runLog *logrus.Entry) int {
	runLog.Info("Resume mode: scanning database for incomplete pages...")
	requeueChan := make(chan models.WorkItem, 100)
	added := 0
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for item := range requeueChan {
			if c.frontier.Add(item) {
				added++
			}
		}
	}()

	_, scanErrors, err := c.store.RequeueIncomplete(ctx, requeueChan)
	close(requeueChan)
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		runLog.Errorf("Error during resume scan: %v", err)
	}
	if scanErrors > 0 {
		runLog.Warnf("Resume scan hit %d unreadable entries", scanErrors)
	}
	runLog.Infof("Requeued %d incomplete page(s)", added)
	return added
}

// schedule adds a follow-up URL to the frontier once: it must parse, be in
// scope, not match a disallowed pattern and not be known to the store.
func (c *Crawler) schedule(raw string, depth int, taskLog *logrus.Entry) bool {
	normalized, _, err := parse.ParseAndNormalize(raw)
	if err != nil {
		taskLog.WithField("link", raw).Debugf("Ignoring follow-up: %v", err)
		return false
	}
	if !parse.IsInScope(c.scope, raw) {
		taskLog.WithField("link", raw).Trace("Follow-up out of scope")
		return false
	}
	if utils.MatchesAny(c.disallowed, normalized) {
		taskLog.WithField("link", raw).Debug("Follow-up matches a disallowed pattern")
		return false
	}
	if c.cfg.MaxDepth > 0 && depth > c.cfg.MaxDepth {
		taskLog.WithField("link", raw).Trace("Follow-up beyond max depth")
		return false
	}

	added, err := c.store.MarkPageVisited(normalized)
	if err != nil {
		taskLog.WithField("link", raw).Errorf("Failed to mark follow-up visited: %v", err)
		return false
	}
	if !added {
		return false
	}
	return c.frontier.Add(models.WorkItem{URL: raw, Depth: depth})
}

// reportProgress logs crawl progress until done is closed or ctx ends
func (c *Crawler) reportProgress(ctx context.Context, done <-chan struct{}, runLog *logrus.Entry) {
	ticker := time.NewTicker(c.progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			visited, _ := c.store.GetVisitedCount()
			runLog.WithFields(logrus.Fields{
				"visited_db":        visited,
				"queue_len":         c.frontier.Len(),
				"in_flight":         c.frontier.InFlight(),
				"resources_handled": c.stats.resources.Load(),
				"records_pushed":    c.stats.records.Load(),
			}).Info("Crawl Progress")
		}
	}
}

// finish fills in the summary totals and logs them
func (c *Crawler) finish(summary *models.CrawlSummary, runLog *logrus.Entry) *models.CrawlSummary {
	summary.FinishedAt = time.Now().UTC()
	c.stats.fill(summary)

	visited, err := c.store.GetVisitedCount()
	if err != nil {
		runLog.Warnf("Could not get final visited count from DB: %v", err)
		visited = -1
	}
	runLog.WithFields(logrus.Fields{
		"duration":          summary.FinishedAt.Sub(summary.StartedAt).String(),
		"visited_db":        visited,
		"resources_handled": summary.ResourcesHandled,
		"records_pushed":    summary.RecordsPushed,
		"follow_ups_queued": summary.FollowUpsQueued,
	}).Info("CRAWL FINISHED")
	return summary
}
