package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/log"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const (
	pageKeyPrefix   = "page:"     // Visited state per normalized page URL
	recordKeyPrefix = "product:"  // Latest record per product key
	crawlDBDir      = "crawl_db"  // Subdirectory name within stateDir for Badger DB files
	defaultGCPeriod = 10 * time.Minute
)

// BadgerStore implements VisitedStore using BadgerDB
type BadgerStore struct {
	db        *badger.DB
	log       *logrus.Entry
	ctx       context.Context
	pageCount atomic.Int64 // Page keys only; kept in step with writes
}

var _ VisitedStore = (*BadgerStore)(nil)

// NewBadgerStore opens the crawl database of siteHost below stateDir.
// Without resume any existing database is removed first.
func NewBadgerStore(ctx context.Context, stateDir, siteHost string, resume bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger, ctx: ctx}

	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteHost)+"_"+crawlDBDir)

	if !resume {
		logger.Warnf("Resume flag is false. REMOVING existing state directory: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	logger.Infof("Opening crawl database at: %s (Resume: %v)", dbPath, resume)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	store.db = db

	if resume {
		count, err := store.countPrefix(pageKeyPrefix)
		if err != nil {
			logger.Warnf("Failed to count existing page keys on resume: %v", err)
		} else {
			store.pageCount.Store(int64(count))
			logger.Infof("Loaded existing page count on resume: %d", count)
		}
	}

	return store, nil
}

// countPrefix performs a key-only scan of one key space
func (s *BadgerStore) countPrefix(prefix string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Workers touching the same key conflict only briefly.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// GetVisitedCount returns the number of page keys
func (s *BadgerStore) GetVisitedCount() (int, error) {
	return int(s.pageCount.Load()), nil
}

// RunGC runs value log garbage collection every interval until ctx is done
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultGCPeriod
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			} else {
				s.log.Debug("BadgerDB GC finished (no rewrite needed).")
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close closes the database; closing twice is a no-op
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing crawl DB: %v", err)
		return fmt.Errorf("%w: close: %w", utils.ErrDatabase, err)
	}
	s.log.Info("Crawl DB closed.")
	return nil
}
