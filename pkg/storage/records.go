package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// RecordFingerprint hashes a record without its capture time, so the same
// product data captured twice yields the same fingerprint.
func RecordFingerprint(rec models.ProductRecord) (string, error) {
	rec.CapturedAt = models.Timestamp{}
	return utils.CalculateJSONSHA256(rec)
}

// PutRecord stores rec as the latest capture of key and bumps its capture count
func (s *BadgerStore) PutRecord(key string, rec models.ProductRecord) (bool, error) {
	fingerprint, err := RecordFingerprint(rec)
	if err != nil {
		return false, err
	}
	dbKey := []byte(recordKeyPrefix + key)

	changed := true
	err = s.dbUpdate(func(txn *badger.Txn) error {
		entry := models.RecordDBEntry{Record: rec, Fingerprint: fingerprint, Captures: 1}
		changed = true

		item, errGet := txn.Get(dbKey)
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
		case errGet != nil:
			return errGet
		default:
			var prev models.RecordDBEntry
			errVal := item.Value(func(val []byte) error { return json.Unmarshal(val, &prev) })
			if errVal != nil {
				s.log.Warnf("Overwriting undecodable record entry '%s': %v", key, errVal)
				break
			}
			entry.Captures = prev.Captures + 1
			changed = prev.Fingerprint != fingerprint
		}

		data, errJSON := json.Marshal(entry)
		if errJSON != nil {
			return fmt.Errorf("%w: JSON encoding record '%s': %w", utils.ErrParsing, key, errJSON)
		}
		return txn.SetEntry(badger.NewEntry(dbKey, data))
	})
	if err != nil {
		if errors.Is(err, utils.ErrParsing) {
			return false, err
		}
		return false, fmt.Errorf("%w: storing record '%s': %w", utils.ErrDatabase, key, err)
	}
	return changed, nil
}

// GetRecord returns the stored entry of key
func (s *BadgerStore) GetRecord(key string) (*models.RecordDBEntry, bool, error) {
	var entry *models.RecordDBEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get([]byte(recordKeyPrefix + key))
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		return item.Value(func(val []byte) error {
			var decoded models.RecordDBEntry
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("%w: JSON decoding record '%s': %w", utils.ErrParsing, key, err)
			}
			entry = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading record '%s': %w", utils.ErrDatabase, key, err)
	}
	return entry, entry != nil, nil
}

// ForEachRecord iterates the stored records in key order.
// Iteration stops at the first error returned by fn.
func (s *BadgerStore) ForEachRecord(ctx context.Context, fn func(key string, entry models.RecordDBEntry) error) error {
	prefix := []byte(recordKeyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			var entry models.RecordDBEntry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
				s.log.Warnf("Skipping undecodable record '%s': %v", key, err)
				continue
			}
			if err := fn(key, entry); err != nil {
				return err
			}
		}
		return nil
	})
}
