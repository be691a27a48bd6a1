// Package classify routes a fetched resource to exactly one page handler.
package classify

import (
	"context"

	"github.com/andybalholm/cascadia"
	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/record"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// HandlerFunc processes a resource already matched to a page kind
type HandlerFunc func(ctx context.Context, res *models.FetchedResource, log *logrus.Entry) (models.HandlerResult, error)

// Route pairs a structural predicate with the handler it selects
type Route struct {
	Kind   models.PageKind
	Match  func(res *models.FetchedResource) bool
	Handle HandlerFunc
}

// Dispatcher evaluates its routes in order; the first match wins.
// It is safe for concurrent use.
type Dispatcher struct {
	routes []Route
	log    *logrus.Entry
}

// NewDispatcher builds the catalog route table:
// product JSON, sitemap, home menu, listing, product options.
func NewDispatcher(assembler *record.Assembler, logger *logrus.Entry) *Dispatcher {
	if assembler == nil {
		assembler = record.NewAssembler(nil)
	}
	return &Dispatcher{
		routes: []Route{
			{Kind: models.PageProductJSON, Match: isJSON, Handle: productJSONHandler(assembler)},
			{Kind: models.PageSitemap, Match: markupHas(sitemapLocSel), Handle: handleSitemap},
			{Kind: models.PageHome, Match: markupHas(homePromoSel), Handle: handleHome},
			{Kind: models.PageListing, Match: markupHas(listingSel), Handle: handleListing},
			{Kind: models.PageProductOptions, Match: markupHas(productShowSel), Handle: handleProductOptions},
		},
		log: logger.WithField("component", "classifier"),
	}
}

// Routes returns a copy of the route table in evaluation order
func (d *Dispatcher) Routes() []Route {
	out := make([]Route, len(d.routes))
	copy(out, d.routes)
	return out
}

// Classify returns the kind of the first matching route, or PageUnclassified
func (d *Dispatcher) Classify(res *models.FetchedResource) models.PageKind {
	if r, ok := d.match(res); ok {
		return r.Kind
	}
	return models.PageUnclassified
}

func (d *Dispatcher) match(res *models.FetchedResource) (Route, bool) {
	if res == nil {
		return Route{}, false
	}
	for _, r := range d.routes {
		if r.Match(res) {
			return r, true
		}
	}
	return Route{}, false
}

// Dispatch runs the handler selected for res.
//
// A resource that matches no route is logged and yields an empty result and a
// nil error. A handler error is logged and returned together with whatever the
// handler still produced; it only concerns this resource.
func (d *Dispatcher) Dispatch(ctx context.Context, res *models.FetchedResource) (models.HandlerResult, error) {
	if err := ctx.Err(); err != nil {
		return models.HandlerResult{}, err
	}

	r, ok := d.match(res)
	if !ok {
		u := ""
		if res != nil {
			u = res.URL
		}
		d.log.WithFields(logrus.Fields{
			"url":            u,
			"error_category": utils.CategorizeError(utils.ErrClassificationMiss),
		}).Warn("Unable to classify resource")
		return models.HandlerResult{}, nil
	}

	hlog := d.log.WithFields(logrus.Fields{"url": res.URL, "handler": r.Kind})
	hlog.Debug("Resource classified")

	result, err := r.Handle(ctx, res, hlog)
	result.Handler = r.Kind
	if err != nil {
		hlog.WithField("error_category", utils.CategorizeError(err)).Errorf("Handler failed: %v", err)
		return result, err
	}
	hlog.Debugf("Handler produced %d follow-up(s) and %d record(s)", len(result.FollowUps), len(result.Records))
	return result, nil
}

func isJSON(res *models.FetchedResource) bool {
	return res.Kind == models.KindJSON
}

func markupHas(sel cascadia.Selector) func(*models.FetchedResource) bool {
	return func(res *models.FetchedResource) bool {
		return res.Kind == models.KindMarkup && has(res.Doc, sel)
	}
}
