package models

// RawProduct is the upstream product object as decoded from JSON.
// Nothing about its shape is trusted.
type RawProduct = map[string]any

// PriceQuote is always present as a structure even when both fields are null.
type PriceQuote struct {
	Value    *float64 `json:"value"`
	Currency *string  `json:"currency"`
}

// IsNull reports whether neither field is set
func (q PriceQuote) IsNull() bool {
	return q.Value == nil && q.Currency == nil
}

// UnitPriceQuote is a PriceQuote with the measuring unit it refers to.
type UnitPriceQuote struct {
	PriceQuote
	Unit *string `json:"unit"`
}

// PricingResult is the canonical price structure of a product record.
// RegularPrice is the list price whenever upstream exposes one; otherwise it is
// the sales price and PromoPrice stays null.
type PricingResult struct {
	RegularPrice PriceQuote     `json:"regularPrice"`
	PromoPrice   PriceQuote     `json:"promoPrice"`
	UnitPrice    UnitPriceQuote `json:"unitPrice"`
}

// Promotion is one promotional callout attached to a product
type Promotion struct {
	Callout any `json:"callout"`
	Details any `json:"details"`
}

// ProductRecord is the normalized output schema pushed to the result sink.
// Scalar upstream fields keep their JSON type since ids and EANs arrive as
// either numbers or strings.
type ProductRecord struct {
	ID                   any           `json:"id"`
	EAN                  any           `json:"ean"`
	Name                 any           `json:"name"`
	Brand                any           `json:"brand"`
	URL                  any           `json:"url"`
	RequestURL           string        `json:"requestUrl"`
	Pricing              PricingResult `json:"pricing"`
	Contents             any           `json:"contents"`
	Categories           []string      `json:"categories"`
	Promotions           []Promotion   `json:"promotions"`
	Ingredients          *string       `json:"ingredients"`
	AnalyticalComponents *string       `json:"analyticalComponents"`
	KeyFeatures          []string      `json:"keyFeatures"` // nil when the features heading is absent
	CapturedAt           Timestamp     `json:"capturedAt"`
}

// Timestamp is the capture time of a record broken into calendar fields (UTC).
type Timestamp struct {
	ISOInstant    string `json:"isoInstant"`
	Year          int    `json:"year"`
	Month         int    `json:"month"` // 1-12
	Day           int    `json:"day"`
	Hour          int    `json:"hour"`
	Minute        int    `json:"minute"`
	Second        int    `json:"second"`
	Millisecond   int    `json:"millisecond"`
	WeekdayIndex  int    `json:"weekdayIndex"` // 0=Sunday..6
	ISOWeekOfYear int    `json:"isoWeekOfYear"`
}
