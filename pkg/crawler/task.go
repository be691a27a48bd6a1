package crawler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/parse"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// processTask runs the pipeline for a single URL: status check, robots, fetch,
// dispatch, follow-up scheduling and record delivery. It never returns an error;
// the outcome is logged and written to the page store.
func (c *Crawler) processTask(ctx context.Context, item models.WorkItem, workerLog *logrus.Entry) {
	taskLog := workerLog.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth})
	startTime := time.Now()

	taskCtx := ctx
	if c.cfg.PerResourceTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.cfg.PerResourceTimeout)
		defer cancel()
	}

	var (
		taskErr    error
		status     models.PageStatus
		handler    models.PageKind
		normalized string
		skipped    bool // Already finished in the store, no DB update
	)

	defer func() {
		panicked := false
		if r := recover(); r != nil {
			panicked = true
			skipped = false
			taskErr = fmt.Errorf("panic: %v", r)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"duration":    time.Since(startTime).String(),
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in processTask")
		}
		if skipped {
			return
		}

		logFields := logrus.Fields{"duration": time.Since(startTime).String(), "handler": handler.String()}
		errorType := ""
		switch {
		case taskErr != nil && status == models.PageStatusSkipped:
			errorType = utils.CategorizeError(taskErr)
			logFields["category"] = errorType
			taskLog.WithFields(logFields).Infof("Task skipped: %v", taskErr)
		case taskErr != nil:
			status = models.PageStatusFailure
			errorType = utils.CategorizeError(taskErr)
			logFields["category"] = errorType
			c.stats.recordError(errorType)
			if !panicked {
				taskLog.WithFields(logFields).Warnf("Task failed: %v", taskErr)
			}
		case status == models.PageStatusSkipped:
			taskLog.WithFields(logFields).Info("Task skipped, no handler matched")
		default:
			status = models.PageStatusSuccess
			taskLog.WithFields(logFields).Debug("Task completed successfully")
		}

		if normalized == "" {
			return
		}
		entry := &models.PageDBEntry{
			Status:      status,
			Handler:     handler,
			ErrorType:   errorType,
			LastAttempt: time.Now().UTC(),
			Depth:       item.Depth,
		}
		if status == models.PageStatusSuccess {
			entry.ProcessedAt = entry.LastAttempt
		}
		if err := c.store.UpdatePageStatus(normalized, entry); err != nil {
			taskLog.Errorf("Failed to update DB status for '%s' to '%s': %v", normalized, status, err)
		}
	}()

	norm, parsedURL, err := parse.ParseAndNormalize(item.URL)
	if err != nil {
		taskErr = err
		return
	}
	normalized = norm
	taskLog = taskLog.WithField("host", parsedURL.Hostname())

	if st, _, err := c.store.CheckPageStatus(normalized); err != nil {
		taskLog.Errorf("DB error checking status, proceeding: %v", err)
	} else if st.IsTerminal() {
		taskLog.Debugf("Skipping page already %s in DB", st)
		skipped = true
		return
	} else if st == models.PageStatusFailure {
		taskLog.Info("Retrying previously failed page")
	}

	if c.robots != nil && c.cfg.EffectiveRespectRobots() && !c.robots.Allowed(taskCtx, parsedURL) {
		status = models.PageStatusSkipped
		taskErr = fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, parsedURL.RequestURI())
		return
	}

	res, err := c.fetcher.Fetch(taskCtx, item.URL)
	if err != nil {
		taskErr = err
		return
	}

	result, dispatchErr := c.dispatcher.Dispatch(taskCtx, res)
	handler = result.Handler
	c.stats.resources.Add(1)
	if handler == models.PageUnclassified && dispatchErr == nil {
		status = models.PageStatusSkipped
		return
	}
	c.stats.handled(handler)

	// Partial results of a failed handler are still used.
	queued := 0
	for _, link := range result.FollowUps {
		if c.schedule(link, item.Depth+1, taskLog) {
			queued++
		}
	}
	c.stats.followUps.Add(int64(queued))

	for _, rec := range result.Records {
		if err := c.sink.Push(taskCtx, rec); err != nil {
			taskLog.WithField("category", utils.CategorizeError(err)).Errorf("Failed to push record: %v", err)
			if taskErr == nil {
				taskErr = err
			}
			continue
		}
		c.stats.records.Add(1)
	}

	taskLog.WithFields(logrus.Fields{
		"follow_ups": len(result.FollowUps),
		"queued":     queued,
		"records":    len(result.Records),
	}).Debug("Resource handled")

	if dispatchErr != nil {
		taskErr = errors.Join(dispatchErr, taskErr)
	}
}
