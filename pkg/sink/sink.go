// Package sink receives finished product records.
package sink

import (
	"context"
	"errors"

	"github.com/catalog-scraper/catalog-scraper/pkg/extract"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/parse"
)

// RecordSink accepts one record per call. Order is not guaranteed.
type RecordSink interface {
	Push(ctx context.Context, rec models.ProductRecord) error
	Close() error
}

// RecordKey identifies the product a record describes: the normalized
// canonical URL (the request URL when upstream has none) and the product id.
func RecordKey(rec models.ProductRecord) string {
	raw, _ := rec.URL.(string)
	if raw == "" {
		raw = rec.RequestURL
	}
	key := raw
	if normalized, _, err := parse.ParseAndNormalize(raw); err == nil {
		key = normalized
	}
	if rec.ID != nil {
		key += "|" + extract.ScalarString(rec.ID)
	}
	return key
}

// MultiSink fans each record out to every sink
type MultiSink []RecordSink

// Push delivers rec to every sink and joins their errors
func (m MultiSink) Push(ctx context.Context, rec models.ProductRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Push(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
