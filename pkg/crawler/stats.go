package crawler

import (
	"sync"
	"sync/atomic"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
)

// runStats collects counters for the crawl summary. Safe for concurrent use.
type runStats struct {
	resources atomic.Int64
	records   atomic.Int64
	followUps atomic.Int64

	mu        sync.Mutex
	byHandler map[string]int
	byError   map[string]int
}

func newRunStats() *runStats {
	return &runStats{
		byHandler: make(map[string]int),
		byError:   make(map[string]int),
	}
}

func (s *runStats) handled(kind models.PageKind) {
	s.mu.Lock()
	s.byHandler[kind.String()]++
	s.mu.Unlock()
}

func (s *runStats) recordError(category string) {
	s.mu.Lock()
	s.byError[category]++
	s.mu.Unlock()
}

// fill copies the counters into summary
func (s *runStats) fill(summary *models.CrawlSummary) {
	summary.ResourcesHandled = s.resources.Load()
	summary.RecordsPushed = s.records.Load()
	summary.FollowUpsQueued = s.followUps.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.byHandler) > 0 {
		summary.ByHandler = make(map[string]int, len(s.byHandler))
		for k, v := range s.byHandler {
			summary.ByHandler[k] = v
		}
	}
	if len(s.byError) > 0 {
		summary.ErrorsByCategory = make(map[string]int, len(s.byError))
		for k, v := range s.byError {
			summary.ErrorsByCategory[k] = v
		}
	}
}
