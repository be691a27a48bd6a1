package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/catalog-scraper/catalog-scraper/pkg/classify"
	"github.com/catalog-scraper/catalog-scraper/pkg/config"
	"github.com/catalog-scraper/catalog-scraper/pkg/fetch"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/record"
	"github.com/catalog-scraper/catalog-scraper/pkg/storage"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// memorySink collects pushed records
type memorySink struct {
	mu      sync.Mutex
	records []models.ProductRecord
	err     error
}

func (s *memorySink) Push(_ context.Context, rec models.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, r := range s.records {
		ids = append(ids, fmt.Sprint(r.ID))
	}
	sort.Strings(ids)
	return ids
}

type staticSeeds struct {
	rows []models.SeedRow
	err  error
}

func (s staticSeeds) FetchAll(context.Context) ([]models.SeedRow, error) { return s.rows, s.err }

// catalogServer serves a tiny store: home -> listing (2 pages) -> product pages -> variant JSON
func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><div class="home-promo"></div>
<ul><li class="mega-toggle"><ul>
  <li class="is-link"><a href="/perros/">Perros</a></li>
  <li class="is-link"><a href="https://elsewhere.example/gatos/">Gatos</a></li>
</ul></li></ul></body></html>`)
	})
	mux.HandleFunc("/perros/", func(w http.ResponseWriter, r *http.Request) {
		tile := "/p/racao-1.html"
		count := `<div class="result-count"><span>60 Resultados</span></div>`
		if r.URL.Query().Get("page") == "2" {
			tile = "/p/racao-2.html"
			count = ""
		}
		fmt.Fprintf(w, `<html><body><div id="product-search-results">%s
<a class="js-product-tile-anchor kwk-product-card__image-content" href="%s">x</a>
<a class="js-product-tile-anchor kwk-product-card__image-content" href="/p/gone.html">x</a>
</div></body></html>`, count, tile)
	})
	mux.HandleFunc("/p/{name}", func(w http.ResponseWriter, r *http.Request) {
		var pid string
		switch r.PathValue("name") {
		case "racao-1.html":
			pid = "1"
		case "racao-2.html":
			pid = "2"
		default:
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><body><div data-action="Product-Show">
<input class="js-isk-radio-button-modal" value="/Product-Variation?pid=%s">
</div></body></html>`, pid)
	})
	mux.HandleFunc("/sitemap_0.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset><url><loc>http://%s/Product-Variation?pid=97</loc></url></urlset>`, r.Host)
	})
	mux.HandleFunc("/Product-Variation", func(w http.ResponseWriter, r *http.Request) {
		pid := r.URL.Query().Get("pid")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"product":{"id":%q,"productNameWithoutName":"Ração %s","productPageURL":"/p/racao-%s.html",
"price":{"sales":{"value":9.99,"currency":"EUR"}},"itemCategory":"Perros-Comida"}}`, pid, pid, pid)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type harness struct {
	cfg   *config.AppConfig
	store *storage.BadgerStore
	sink  *memorySink
}

func newHarness(t *testing.T, server *httptest.Server) *harness {
	t.Helper()
	cfg := &config.AppConfig{
		StartURLs:         []string{server.URL + "/"},
		Concurrency:       3,
		Scope:             "^" + regexp.QuoteMeta(server.URL) + "/.*",
		UseSeedDatabase:   boolPtr(false),
		StateDir:          t.TempDir(),
		MaxRetries:        0,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     time.Millisecond,
	}
	_, err := cfg.Validate()
	require.NoError(t, err)

	store, err := storage.NewBadgerStore(context.Background(), cfg.StateDir, "127.0.0.1", false, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &harness{cfg: cfg, store: store, sink: &memorySink{}}
}

func (h *harness) crawler(t *testing.T, d Dispatcher, seeds *staticSeeds) *Crawler {
	t.Helper()
	log := discardLogger()
	if d == nil {
		now := func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }
		d = classify.NewDispatcher(record.NewAssembler(now), log)
	}
	deps := Dependencies{
		Store:      h.store,
		Fetcher:    fetch.NewFetcher(&http.Client{Timeout: 5 * time.Second}, h.cfg, nil, log),
		Dispatcher: d,
		Sink:       h.sink,
	}
	if seeds != nil {
		deps.Seeds = seeds
	}
	c, err := New(h.cfg, deps, log)
	require.NoError(t, err)
	return c
}

func boolPtr(b bool) *bool { return &b }

func TestRun_CrawlsCatalog(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)

	summary, err := h.crawler(t, nil, nil).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, h.sink.ids())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.StartURLs)
	assert.Equal(t, int64(2), summary.RecordsPushed)
	// home, 2 listing pages, 2 product pages, 2 variants
	assert.Equal(t, int64(7), summary.ResourcesHandled)
	assert.Equal(t, map[string]int{
		"home":            1,
		"listing":         2,
		"product_options": 2,
		"product_json":    2,
	}, summary.ByHandler)
	assert.Equal(t, map[string]int{"HTTP_404": 1}, summary.ErrorsByCategory, "the gone tile is fetched once")

	status, entry, err := h.store.CheckPageStatus(server.URL + "/perros/?page=2&start=24")
	require.NoError(t, err)
	assert.Equal(t, models.PageStatusSuccess, status)
	assert.Equal(t, models.PageListing, entry.Handler)
	assert.Equal(t, 2, entry.Depth)

	status, entry, err = h.store.CheckPageStatus(server.URL + "/p/gone.html")
	require.NoError(t, err)
	assert.Equal(t, models.PageStatusFailure, status)
	assert.Equal(t, "HTTP_404", entry.ErrorType)

	status, _, err = h.store.CheckPageStatus("https://elsewhere.example/gatos/")
	require.NoError(t, err)
	assert.Equal(t, models.PageStatusNotFound, status, "out of scope links are never scheduled")

	rec := h.sink.records[0]
	assert.Equal(t, "Ração "+fmt.Sprint(rec.ID), rec.Name)
	assert.Contains(t, rec.RequestURL, "/Product-Variation?pid=")
}

func TestRun_ResumeRequeuesFailedPagesOnly(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)

	_, err := h.crawler(t, nil, nil).Run(context.Background(), false)
	require.NoError(t, err)

	summary, err := h.crawler(t, nil, nil).Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.StartURLs, "finished start URL is not queued again")
	assert.Equal(t, int64(0), summary.ResourcesHandled)
	assert.Equal(t, map[string]int{"HTTP_404": 1}, summary.ErrorsByCategory)
	assert.Len(t, h.sink.records, 2)
}

func TestRun_MergesSeeds(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.UseSeedDatabase = boolPtr(true)
	h.cfg.StartURLs = nil

	seeds := &staticSeeds{rows: []models.SeedRow{
		{Value: server.URL + "/Product-Variation?pid=7"},
		{Value: "not a url"},
		{Value: "https://elsewhere.example/p/1.html"},
	}}
	summary, err := h.crawler(t, nil, seeds).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SeedURLs)
	assert.Equal(t, 1, summary.StartURLs)
	assert.Equal(t, []string{"7"}, h.sink.ids())
}

func TestRun_SeedFailureKeepsStartURLs(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.UseSeedDatabase = boolPtr(true)
	h.cfg.StartURLs = []string{server.URL + "/Product-Variation?pid=3"}

	summary, err := h.crawler(t, nil, &staticSeeds{err: utils.ErrSeedFetch}).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SeedURLs)
	assert.Equal(t, []string{"3"}, h.sink.ids())
}

func TestRun_NoValidStartURLs(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.StartURLs = []string{"https://elsewhere.example/", "::bad::"}

	_, err := h.crawler(t, nil, nil).Run(context.Background(), false)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestRun_MaxDepth(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.MaxDepth = 1

	summary, err := h.crawler(t, nil, nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.ResourcesHandled, "home and first listing page only")
	assert.Empty(t, h.sink.records)
}

func TestRun_DisallowedPatterns(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.DisallowedPatterns = []string{`/p/`}

	summary, err := h.crawler(t, nil, nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"home": 1, "listing": 2}, summary.ByHandler)
	assert.Empty(t, summary.ErrorsByCategory)
}

type panicDispatcher struct{}

func (panicDispatcher) Dispatch(context.Context, *models.FetchedResource) (models.HandlerResult, error) {
	panic("boom")
}

func TestRun_RecoversPanics(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)

	summary, err := h.crawler(t, panicDispatcher{}, nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Unknown": 1}, summary.ErrorsByCategory)

	status, _, err := h.store.CheckPageStatus(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, models.PageStatusFailure, status)
}

type denyRobots struct{}

func (denyRobots) Allowed(context.Context, *url.URL) bool { return false }

func TestRun_RobotsDisallowSkipsPage(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	c := h.crawler(t, nil, nil)
	c.robots = denyRobots{}

	summary, err := c.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.ResourcesHandled)

	status, entry, err := h.store.CheckPageStatus(server.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, models.PageStatusSkipped, status)
	assert.Equal(t, "Policy_Robots", entry.ErrorType)
}

type staticSitemaps struct {
	urls  []string
	calls int
}

func (s *staticSitemaps) Sitemaps(context.Context, *url.URL) []string {
	s.calls++
	return s.urls
}

func TestRun_DiscoversSitemaps(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.StartURLs = []string{server.URL + "/Product-Variation?pid=8", server.URL + "/Product-Variation?pid=9"}
	c := h.crawler(t, nil, nil)
	sitemaps := &staticSitemaps{urls: []string{server.URL + "/sitemap_0.xml", "https://elsewhere.example/sitemap.xml"}}
	c.sitemaps = sitemaps

	summary, err := c.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, sitemaps.calls, "one lookup per host")
	assert.Equal(t, 1, summary.SitemapURLs, "out of scope sitemaps are dropped")
	assert.Equal(t, []string{"8", "9", "97"}, h.sink.ids())
	assert.Equal(t, 1, summary.ByHandler["sitemap"])
}

func TestRun_SitemapDiscoveryDisabled(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.StartURLs = []string{server.URL + "/Product-Variation?pid=8"}
	h.cfg.DiscoverSitemaps = boolPtr(false)
	c := h.crawler(t, nil, nil)
	sitemaps := &staticSitemaps{urls: []string{server.URL + "/sitemap_0.xml"}}
	c.sitemaps = sitemaps

	summary, err := c.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, sitemaps.calls)
	assert.Zero(t, summary.SitemapURLs)
}

func TestRun_SinkErrorMarksPageFailed(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	h.cfg.StartURLs = []string{server.URL + "/Product-Variation?pid=4"}
	h.sink.err = fmt.Errorf("%w: disk full", utils.ErrFilesystem)

	summary, err := h.crawler(t, nil, nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.RecordsPushed)
	assert.Equal(t, map[string]int{"Filesystem_Other": 1}, summary.ErrorsByCategory)
}

func TestRun_CancelledContext(t *testing.T) {
	server := catalogServer(t)
	h := newHarness(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.crawler(t, nil, nil).Run(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, summary)
	assert.Equal(t, int64(0), summary.ResourcesHandled)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(&config.AppConfig{Scope: ".*"}, Dependencies{}, discardLogger())
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.yaml")
	summary := &models.CrawlSummary{RunID: "abc", RecordsPushed: 3, ByHandler: map[string]int{"listing": 2}}

	require.NoError(t, WriteSummary(path, summary, discardLogger()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded models.CrawlSummary
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "abc", decoded.RunID)
	assert.Equal(t, int64(3), decoded.RecordsPushed)
	assert.Equal(t, 2, decoded.ByHandler["listing"])
}
