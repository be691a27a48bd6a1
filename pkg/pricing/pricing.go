// Package pricing derives the canonical regular/promo/unit price structure of a product.
package pricing

import (
	"github.com/catalog-scraper/catalog-scraper/pkg/extract"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
)

const unitPricePath = "variationAttributes.0.values.0.pricePerUnit"

// Normalize maps the upstream price slots of a product onto a PricingResult.
//
// When price.list is present the list slot is the regular price and the sales
// slot is the promotion. Without it the sales slot is the regular price and the
// promotion stays null. The unit price never depends on that branch.
func Normalize(product map[string]any) models.PricingResult {
	var result models.PricingResult

	if extract.SafeGet(product, "price.list", nil) != nil {
		result.RegularPrice = quoteAt(product, "price.list")
		result.PromoPrice = quoteAt(product, "price.sales")
	} else {
		result.RegularPrice = quoteAt(product, "price.sales")
	}

	result.UnitPrice = models.UnitPriceQuote{
		PriceQuote: models.PriceQuote{
			Value:    floatAt(product, unitPricePath+".value"),
			Currency: stringAt(product, unitPricePath+".currencyCode"),
		},
		Unit: stringAt(product, unitPricePath+".unit"),
	}
	return result
}

func quoteAt(product map[string]any, path string) models.PriceQuote {
	return models.PriceQuote{
		Value:    floatAt(product, path+".value"),
		Currency: stringAt(product, path+".currency"),
	}
}

func floatAt(obj map[string]any, path string) *float64 {
	f, ok := extract.GetFloat(obj, path)
	if !ok {
		return nil
	}
	return &f
}

func stringAt(obj map[string]any, path string) *string {
	s, ok := extract.GetString(obj, path)
	if !ok {
		return nil
	}
	return &s
}
