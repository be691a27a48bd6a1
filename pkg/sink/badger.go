package sink

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/storage"
)

// StoreSink keeps the latest record of every product in a RecordStore.
// The store's lifecycle belongs to the caller; Close does nothing.
type StoreSink struct {
	store storage.RecordStore
	log   *logrus.Entry
}

// NewStoreSink creates a sink backed by store
func NewStoreSink(store storage.RecordStore, logger *logrus.Entry) *StoreSink {
	return &StoreSink{store: store, log: logger.WithField("sink", "store")}
}

// Push implements RecordSink
func (s *StoreSink) Push(ctx context.Context, rec models.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := RecordKey(rec)
	changed, err := s.store.PutRecord(key, rec)
	if err != nil {
		return err
	}
	if changed {
		s.log.WithField("record_key", key).Debug("Stored new product data")
	} else {
		s.log.WithField("record_key", key).Debug("Product data unchanged since last capture")
	}
	return nil
}

// Close implements RecordSink
func (s *StoreSink) Close() error { return nil }
