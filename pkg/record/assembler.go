// Package record assembles normalized product records from upstream product JSON.
package record

import (
	"strings"
	"time"

	"github.com/catalog-scraper/catalog-scraper/pkg/extract"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/pricing"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// Assembler builds ProductRecords. It holds no mutable state and may be shared.
type Assembler struct {
	now func() time.Time
}

// NewAssembler returns an Assembler stamping records with now().
// A nil clock falls back to time.Now.
func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Assemble builds the record of the top-level product object of doc.
// It fails with ErrMalformedProduct when that object is missing; every other
// missing field degrades to null or an empty list.
func (a *Assembler) Assemble(doc any, requestURL string) (*models.ProductRecord, error) {
	product, ok := extract.SafeGet(doc, "product", nil).(map[string]any)
	if !ok {
		return nil, utils.WrapErrorf(utils.ErrMalformedProduct, "request %s", requestURL)
	}

	description, _ := extract.GetString(product, "longDescription")

	rec := &models.ProductRecord{
		ID:                   extract.SafeGet(product, "id", nil),
		EAN:                  extract.SafeGet(product, "ean", nil),
		Name:                 extract.SafeGet(product, "productNameWithoutName", nil),
		Brand:                extract.SafeGet(product, "brand", nil),
		URL:                  extract.SafeGet(product, "productPageURL", nil),
		RequestURL:           requestURL,
		Pricing:              pricing.Normalize(product),
		Contents:             extract.SafeGet(product, "variationAttributes.0.displayValue", nil),
		Categories:           categories(product),
		Promotions:           promotions(product),
		Ingredients:          extract.Ingredients(description),
		AnalyticalComponents: extract.AnalyticalComponents(description),
		KeyFeatures:          extract.KeyFeatures(description),
		CapturedAt:           NewTimestamp(a.now()),
	}
	return rec, nil
}

// categories splits itemCategory on "-" and drops empty segments
func categories(product map[string]any) []string {
	out := []string{}
	raw, ok := extract.GetString(product, "itemCategory")
	if !ok {
		return out
	}
	for _, part := range strings.Split(raw, "-") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func promotions(product map[string]any) []models.Promotion {
	list, ok := product["promotions"].([]any)
	if !ok {
		return []models.Promotion{}
	}
	out := make([]models.Promotion, 0, len(list))
	for _, promo := range list {
		out = append(out, models.Promotion{
			Callout: extract.SafeGet(promo, "calloutMsg", nil),
			Details: extract.SafeGet(promo, "details", nil),
		})
	}
	return out
}
