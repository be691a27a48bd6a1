package models

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// WorkItem represents a URL and its depth to be processed by a worker
type WorkItem struct {
	URL   string
	Depth int
}

// ContentKind tells the classifier which body of a FetchedResource is populated
type ContentKind int

const (
	KindMarkup ContentKind = iota // Doc holds a parsed HTML/XML tree
	KindJSON                      // JSON holds a decoded JSON value
)

// String implements fmt.Stringer for logging
func (k ContentKind) String() string {
	switch k {
	case KindMarkup:
		return "markup"
	case KindJSON:
		return "json"
	}
	return "unknown"
}

// FetchedResource is one already-fetched page or JSON document.
// It is never mutated after construction.
type FetchedResource struct {
	URL  string            // Original request URL
	Kind ContentKind       // Which of Doc / JSON is set
	Doc  *goquery.Document // Parsed markup (KindMarkup only)
	JSON any               // Decoded JSON value (KindJSON only)
}

// PageKind names the handler a resource was routed to
type PageKind string

const (
	PageUnclassified   PageKind = ""
	PageProductJSON    PageKind = "product_json"
	PageSitemap        PageKind = "sitemap"
	PageHome           PageKind = "home"
	PageListing        PageKind = "listing"
	PageProductOptions PageKind = "product_options"
)

// String implements fmt.Stringer for logging
func (k PageKind) String() string {
	if k == PageUnclassified {
		return "unclassified"
	}
	return string(k)
}

// HandlerResult carries both kinds of output a handler can produce.
// Follow-up URLs are absolute; no deduplication has been applied.
type HandlerResult struct {
	Handler   PageKind        `json:"handler"`
	FollowUps []string        `json:"follow_ups,omitempty"`
	Records   []ProductRecord `json:"records,omitempty"`
}

// PageDBEntry stores the result of processing a page URL in the database
type PageDBEntry struct {
	Status      PageStatus `json:"status"`                 // "success" or "failure"
	Handler     PageKind   `json:"handler,omitempty"`      // Handler the page was routed to
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	ProcessedAt time.Time  `json:"processed_at,omitempty"` // Timestamp of successful processing
	LastAttempt time.Time  `json:"last_attempt"`           // Timestamp of the last processing attempt
	Depth       int        `json:"depth"`                  // Depth at which this page was processed/attempted
}

// RecordDBEntry stores the last product record pushed for a product key
type RecordDBEntry struct {
	Record      ProductRecord `json:"record"`
	Fingerprint string        `json:"fingerprint"` // SHA-256 of the record without its capture time
	Captures    int           `json:"captures"`    // Number of times the record was pushed
}

// SeedRow is one row of the external seed table
type SeedRow struct {
	Value string `json:"value"`
}

// CrawlSummary is written as YAML when a crawl run ends.
type CrawlSummary struct {
	RunID            string         `yaml:"run_id"`
	StartedAt        time.Time      `yaml:"started_at"`
	FinishedAt       time.Time      `yaml:"finished_at"`
	StartURLs        int            `yaml:"start_urls"`
	SeedURLs         int            `yaml:"seed_urls"`
	SitemapURLs      int            `yaml:"sitemap_urls"`
	ResourcesHandled int64          `yaml:"resources_handled"`
	RecordsPushed    int64          `yaml:"records_pushed"`
	FollowUpsQueued  int64          `yaml:"follow_ups_queued"`
	ByHandler        map[string]int `yaml:"by_handler,omitempty"`
	ErrorsByCategory map[string]int `yaml:"errors_by_category,omitempty"`
}
