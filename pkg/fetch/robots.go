package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsHandler manages fetching, parsing, caching, and checking robots.txt data
type RobotsHandler struct {
	fetcher     *Fetcher
	userAgent   string
	robotsCache map[string]*robotstxt.RobotsData // scheme://host -> parsed data (or nil)
	cacheMu     sync.Mutex
	group       singleflight.Group
	log         *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(fetcher *Fetcher, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		userAgent:   userAgent,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log.WithField("component", "robots"),
	}
}

// GetRobotsData retrieves robots.txt data for the targetURL's host, using cache or fetching.
// Returns nil on any error, 4xx or missing file. Concurrent callers for the same host share one fetch.
func (rh *RobotsHandler) GetRobotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	scheme := targetURL.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	key := scheme + "://" + targetURL.Host

	rh.cacheMu.Lock()
	data, found := rh.robotsCache[key]
	rh.cacheMu.Unlock()
	if found {
		return data
	}

	v, _, _ := rh.group.Do(key, func() (any, error) {
		rh.cacheMu.Lock()
		cached, ok := rh.robotsCache[key]
		rh.cacheMu.Unlock()
		if ok {
			return cached, nil
		}
		data := rh.fetchRobots(ctx, &url.URL{Scheme: scheme, Host: targetURL.Host, Path: "/robots.txt"})
		if ctx.Err() == nil {
			rh.cacheMu.Lock()
			rh.robotsCache[key] = data
			rh.cacheMu.Unlock()
		}
		return data, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data
}

func (rh *RobotsHandler) fetchRobots(ctx context.Context, robotsURL *url.URL) *robotstxt.RobotsData {
	robotsLog := rh.log.WithField("robots_url", robotsURL.String())
	robotsLog.Info("Fetching robots.txt...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rh.userAgent)

	resp, err := rh.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		drain(resp)
		robotsLog.Warnf("Fetching robots.txt failed, allowing all: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		robotsLog.Errorf("Error reading body: %v", err)
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Errorf("Error parsing content: %v", err)
		return nil
	}
	robotsLog.WithField("sitemaps", len(data.Sitemaps)).Info("Successfully fetched and parsed robots.txt")
	return data
}

// Allowed reports whether the configured user agent may fetch targetURL.
// Returns true when robots data could not be obtained.
func (rh *RobotsHandler) Allowed(ctx context.Context, targetURL *url.URL) bool {
	data := rh.GetRobotsData(ctx, targetURL)
	if data == nil {
		return true
	}
	return data.TestAgent(targetURL.RequestURI(), rh.userAgent)
}

// Sitemaps returns the sitemap directives of the host's robots.txt
func (rh *RobotsHandler) Sitemaps(ctx context.Context, targetURL *url.URL) []string {
	data := rh.GetRobotsData(ctx, targetURL)
	if data == nil {
		return nil
	}
	return data.Sitemaps
}
