package classify

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/paginate"
	"github.com/catalog-scraper/catalog-scraper/pkg/record"
)

// handleSitemap emits every <loc> of a sitemap or sitemap index
func handleSitemap(_ context.Context, res *models.FetchedResource, _ *logrus.Entry) (models.HandlerResult, error) {
	var locs []string
	res.Doc.FindMatcher(sitemapLocSel).Each(func(_ int, s *goquery.Selection) {
		if loc := strings.TrimSpace(s.Text()); loc != "" {
			locs = append(locs, loc)
		}
	})
	return models.HandlerResult{FollowUps: resolveAll(baseURL(res), locs)}, nil
}

// handleHome emits the category links of the mega menu
func handleHome(_ context.Context, res *models.FetchedResource, _ *logrus.Entry) (models.HandlerResult, error) {
	hrefs := attrs(res.Doc.FindMatcher(menuLinkSel), "href")
	return models.HandlerResult{FollowUps: resolveAll(baseURL(res), hrefs)}, nil
}

// handleListing plans the remaining listing pages on a first page and emits
// the product tiles of the current page. A missing result count stops only
// the pagination step.
func handleListing(_ context.Context, res *models.FetchedResource, log *logrus.Entry) (models.HandlerResult, error) {
	var result models.HandlerResult
	var expandErr error

	base := baseURL(res)
	if paginate.ShouldExpand(base) {
		countText := res.Doc.FindMatcher(resultCountSel).Text()
		total, err := paginate.ParseResultCount(countText)
		if err != nil {
			expandErr = err
		} else {
			if pt := paginate.PageTotal(total); pt > paginate.MaxPageTotal {
				log.WithField("result_count", total).Warnf("Listing claims %d pages, planning only %d", pt, paginate.MaxPageTotal)
			}
			pages := paginate.PlanPages(base, total)
			log.WithField("result_count", total).Debugf("Planned %d listing page(s)", len(pages))
			result.FollowUps = append(result.FollowUps, pages...)
		}
	}

	tiles := attrs(res.Doc.FindMatcher(productTileSel), "href")
	result.FollowUps = append(result.FollowUps, resolveAll(base, tiles)...)
	return result, expandErr
}

// handleProductOptions emits the variant URLs held by the option radio inputs
func handleProductOptions(_ context.Context, res *models.FetchedResource, log *logrus.Entry) (models.HandlerResult, error) {
	values := attrs(res.Doc.FindMatcher(productOptionsSel), "value")
	if len(values) == 0 {
		log.Warn("No valid options found on product page")
		return models.HandlerResult{}, nil
	}
	return models.HandlerResult{FollowUps: resolveAll(baseURL(res), values)}, nil
}

// productJSONHandler turns a product JSON document into one record
func productJSONHandler(assembler *record.Assembler) HandlerFunc {
	return func(_ context.Context, res *models.FetchedResource, log *logrus.Entry) (models.HandlerResult, error) {
		rec, err := assembler.Assemble(res.JSON, res.URL)
		if err != nil {
			return models.HandlerResult{}, err
		}
		log.WithFields(logrus.Fields{"product_id": rec.ID, "product_url": rec.URL}).Info("Product data extracted")
		return models.HandlerResult{Records: []models.ProductRecord{*rec}}, nil
	}
}

func baseURL(res *models.FetchedResource) *url.URL {
	u, err := url.Parse(res.URL)
	if err != nil || !u.IsAbs() {
		return nil
	}
	return u
}
