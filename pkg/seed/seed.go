// Package seed loads candidate start URLs from an external seed table.
package seed

import (
	"context"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/parse"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// Store is a source of seed rows
type Store interface {
	FetchAll(ctx context.Context) ([]models.SeedRow, error)
}

// MergeSeeds returns start followed by every seed row that is a valid URL
// inside scope. start is never modified.
//
// A failing store is logged and leaves the result equal to start.
func MergeSeeds(ctx context.Context, store Store, start []string, scope *regexp.Regexp, logger *logrus.Entry) []string {
	merged := make([]string, len(start))
	copy(merged, start)

	rows, err := store.FetchAll(ctx)
	if err != nil {
		logger.WithField("error_category", utils.CategorizeError(utils.ErrSeedFetch)).
			Errorf("Error fetching seed URLs, continuing with %d start URL(s): %v", len(start), err)
		return merged
	}

	added := 0
	for _, row := range rows {
		switch {
		case !parse.IsValidURL(row.Value):
			logger.Warnf("Seed ignored due to invalid URL: %s", row.Value)
		case !parse.IsInScope(scope, row.Value):
			logger.Warnf("Seed ignored due to being out of scope: %s", row.Value)
		default:
			merged = append(merged, row.Value)
			added++
		}
	}
	logger.Infof("URLs added from seed store: %d (total start URLs: %d)", added, len(merged))
	return merged
}
