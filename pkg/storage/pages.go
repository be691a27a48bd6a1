package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// MarkPageVisited adds the page key with an empty (pending) value.
// Returns false when the key already existed.
func (s *BadgerStore) MarkPageVisited(normalizedPageURL string) (bool, error) {
	added := false
	key := []byte(pageKeyPrefix + normalizedPageURL)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, []byte{})); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet
	})
	if err != nil {
		return false, fmt.Errorf("%w: marking page key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.pageCount.Add(1)
	}
	return added, nil
}

// ResetPages drops every page key and keeps the stored records, so the next
// run starts with an empty frontier state but still compares against earlier captures.
func (s *BadgerStore) ResetPages() (int, error) {
	dropped := int(s.pageCount.Load())
	if err := s.db.DropPrefix([]byte(pageKeyPrefix)); err != nil {
		return 0, fmt.Errorf("%w: dropping page keys: %w", utils.ErrDatabase, err)
	}
	s.pageCount.Store(0)
	s.log.Infof("Reset %d page key(s); stored records kept", dropped)
	return dropped, nil
}

// CheckPageStatus reads the stored entry of a page.
// An empty or undecodable value reads as pending.
func (s *BadgerStore) CheckPageStatus(normalizedPageURL string) (models.PageStatus, *models.PageDBEntry, error) {
	status := models.PageStatusNotFound
	var entry *models.PageDBEntry
	key := []byte(pageKeyPrefix + normalizedPageURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				status = models.PageStatusPending
				return nil
			}
			var decoded models.PageDBEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to unmarshal PageDBEntry for key '%s': %v. Treating as 'pending'.", string(key), errJSON)
				status = models.PageStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if errView != nil {
		return models.PageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdatePageStatus overwrites the entry of a page
func (s *BadgerStore) UpdatePageStatus(normalizedPageURL string, entry *models.PageDBEntry) error {
	key := []byte(pageKeyPrefix + normalizedPageURL)

	entryBytes, errJSON := json.Marshal(entry)
	if errJSON != nil {
		return fmt.Errorf("%w: JSON encoding PageDBEntry for key '%s': %w", utils.ErrParsing, string(key), errJSON)
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		return fmt.Errorf("%w: setting page status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.pageCount.Add(1)
	}
	s.log.Debugf("Page '%s' -> %s", normalizedPageURL, entry.Status)
	return nil
}

// RequeueIncomplete sends every pending or failed page to workChan with its stored depth
func (s *BadgerStore) RequeueIncomplete(ctx context.Context, workChan chan<- models.WorkItem) (int, int, error) {
	requeued := 0
	scanErrors := 0
	started := time.Now()
	prefix := []byte(pageKeyPrefix)

	scanErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			pageURL := string(item.Key()[len(prefix):])

			val, err := item.ValueCopy(nil)
			if err != nil {
				s.log.Errorf("Resume Scan: Error reading value for '%s': %v", pageURL, err)
				scanErrors++
				continue
			}

			depth := 0
			if len(val) > 0 {
				var entry models.PageDBEntry
				if errJSON := json.Unmarshal(val, &entry); errJSON != nil {
					s.log.Errorf("Resume Scan: Failed unmarshal PageDBEntry for '%s': %v. Skipping.", pageURL, errJSON)
					scanErrors++
					continue
				}
				if entry.Status != models.PageStatusFailure && entry.Status != models.PageStatusPending {
					continue
				}
				depth = entry.Depth
			}

			select {
			case workChan <- models.WorkItem{URL: pageURL, Depth: depth}:
				requeued++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	s.log.Infof("Resume Scan Complete: Requeued %d tasks in %v. Errors: %d.", requeued, time.Since(started), scanErrors)
	return requeued, scanErrors, scanErr
}

// WriteVisitedLog writes every page URL known to the store, one per line
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	prefix := []byte(pageKeyPrefix)
	written := 0

	iterErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := s.ctx.Err(); err != nil {
				return err
			}
			if _, err := writer.Write(append(it.Item().KeyCopy(nil)[len(prefix):], '\n')); err != nil {
				return fmt.Errorf("%w: writing visited log: %w", utils.ErrFilesystem, err)
			}
			written++
		}
		return nil
	})
	if iterErr != nil {
		return iterErr
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flushing visited log: %w", utils.ErrFilesystem, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing visited log: %w", utils.ErrFilesystem, err)
	}
	s.log.Infof("Wrote %d URLs to visited log: %s", written, filePath)
	return nil
}
