package watch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// CrawlFunc runs one complete crawl
type CrawlFunc func(ctx context.Context) (*models.CrawlSummary, error)

// Scheduler re-runs a crawl every interval. The time of the last run survives
// restarts, so a restarted watcher waits for the remainder of the interval.
type Scheduler struct {
	interval time.Duration
	crawl    CrawlFunc
	state    *StateManager
	log      *logrus.Entry
	now      func() time.Time
}

// NewScheduler creates a scheduler keeping its state in stateDir
func NewScheduler(stateDir string, interval time.Duration, crawl CrawlFunc, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		interval: interval,
		crawl:    crawl,
		state:    NewStateManager(stateDir),
		log:      log.WithField("component", "watch"),
		now:      time.Now,
	}
}

// State exposes the persisted run state
func (s *Scheduler) State() *StateManager { return s.state }

// Run blocks until ctx is done, crawling whenever a run is due
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive", utils.ErrConfigValidation)
	}
	if err := s.state.Load(); err != nil {
		s.log.Warnf("Failed to load watch state, starting fresh: %v", err)
	}
	if last, ok := s.state.Last(); ok {
		s.log.WithFields(logrus.Fields{
			"last_run": last.LastRunTime.Format(time.RFC3339),
			"success":  last.Success,
			"records":  last.RecordsPushed,
		}).Info("Loaded watch state")
	}
	s.log.Infof("Watching every %s", FormatInterval(s.interval))

	for {
		wait := s.state.NextRun(s.interval, s.now()).Sub(s.now())
		if wait > 0 {
			s.log.Infof("Next crawl in %v", wait.Round(time.Second))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.log.Info("Watch scheduler shutting down...")
				return nil
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		s.runOnce(ctx)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.log.Info("Starting scheduled crawl")
	summary, err := s.crawl(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.log.Warn("Scheduled crawl interrupted, not recording it")
		return
	}

	s.state.Record(summary, err, s.now())
	if err != nil {
		s.log.WithField("category", utils.CategorizeError(err)).Errorf("Scheduled crawl failed: %v", err)
	}
	if err := s.state.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
}

// FormatInterval renders d with day, hour and minute units, e.g. "1d12h"
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}

	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60

	out := ""
	if days > 0 {
		out += fmt.Sprintf("%dd", days)
	}
	if hours > 0 {
		out += fmt.Sprintf("%dh", hours)
	}
	if mins > 0 && days == 0 {
		out += fmt.Sprintf("%dm", mins)
	}
	return out
}

// ParseInterval accepts time.ParseDuration syntax plus a leading day count ("7d", "1d12h")
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if dayPart, rest, ok := strings.Cut(s, "d"); ok {
		if days, err := strconv.Atoi(dayPart); err == nil && days >= 0 {
			d := time.Duration(days) * 24 * time.Hour
			if rest == "" {
				return d, nil
			}
			if extra, err := time.ParseDuration(rest); err == nil {
				return d + extra, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: invalid interval %q (examples: 30m, 24h, 7d)", utils.ErrConfigValidation, s)
}
