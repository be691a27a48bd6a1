package classify

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Page markers and link selectors of the catalog site, compiled once
var (
	sitemapLocSel     = cascadia.MustCompile("url loc, sitemap loc")
	homePromoSel      = cascadia.MustCompile("div.home-promo")
	listingSel        = cascadia.MustCompile("div#product-search-results")
	productShowSel    = cascadia.MustCompile(`div[data-action="Product-Show"]`)
	menuLinkSel       = cascadia.MustCompile("li.mega-toggle > ul > li.is-link > a[href]")
	resultCountSel    = cascadia.MustCompile("div.result-count span")
	productTileSel    = cascadia.MustCompile("a.js-product-tile-anchor.kwk-product-card__image-content[href]")
	productOptionsSel = cascadia.MustCompile("input.js-isk-radio-button-modal")
)

// has reports whether any node of doc matches sel
func has(doc *goquery.Document, sel cascadia.Selector) bool {
	if doc == nil {
		return false
	}
	for _, root := range doc.Nodes {
		if sel.MatchFirst(root) != nil {
			return true
		}
	}
	return false
}

// attrs collects the non-empty values of attr across s
func attrs(s *goquery.Selection, attr string) []string {
	var out []string
	s.Each(func(_ int, el *goquery.Selection) {
		if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	})
	return out
}

// resolveAll makes every href absolute against base.
// Unparseable hrefs are dropped; with a nil base they are returned as given.
func resolveAll(base *url.URL, hrefs []string) []string {
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if base == nil {
			out = append(out, href)
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		out = append(out, base.ResolveReference(ref).String())
	}
	return out
}
