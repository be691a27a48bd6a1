package storage

import (
	"context"
	"time"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
)

// PageStore handles page visitation state
type PageStore interface {
	// MarkPageVisited marks a page URL as visited (pending state)
	// Returns true if the URL was newly added, false if it already existed
	MarkPageVisited(normalizedPageURL string) (bool, error)

	// CheckPageStatus retrieves the status and details of a page URL
	CheckPageStatus(normalizedPageURL string) (status models.PageStatus, entry *models.PageDBEntry, err error)

	// UpdatePageStatus updates the status and details for a page URL
	UpdatePageStatus(normalizedPageURL string, entry *models.PageDBEntry) error
}

// RecordStore keeps the latest product record per product key
type RecordStore interface {
	// PutRecord stores rec under key. changed is false when the stored record
	// only differs by its capture time.
	PutRecord(key string, rec models.ProductRecord) (changed bool, err error)

	// GetRecord returns the stored entry for key, if any
	GetRecord(key string) (*models.RecordDBEntry, bool, error)

	// ForEachRecord calls fn for every stored record in key order
	ForEachRecord(ctx context.Context, fn func(key string, entry models.RecordDBEntry) error) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetVisitedCount returns an approximate count of page keys in the store
	GetVisitedCount() (int, error)

	// RequeueIncomplete sends pending and failed pages to workChan. Resume only.
	RequeueIncomplete(ctx context.Context, workChan chan<- models.WorkItem) (requeuedCount int, scanErrors int, err error)

	// ResetPages removes all page state and keeps the records
	ResetPages() (int, error)

	// WriteVisitedLog writes all page URLs to filePath, one per line
	WriteVisitedLog(filePath string) error

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// VisitedStore combines all store interfaces for components that need full access
type VisitedStore interface {
	PageStore
	RecordStore
	StoreAdmin
}
