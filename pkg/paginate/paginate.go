// Package paginate plans the follow-up listing pages of a category or search result.
package paginate

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// PageSize is the number of product tiles the site renders per listing page
const PageSize = 24

// MaxPageTotal bounds the page count taken from a single listing, so a bogus
// result count cannot flood the frontier.
const MaxPageTotal = 2000

var resultCountRe = regexp.MustCompile(`(\d+)\s*Resultados`)

// ShouldExpand reports whether u is a first listing page.
// Pages already carrying page or start are never expanded again.
func ShouldExpand(u *url.URL) bool {
	if u == nil {
		return false
	}
	q := u.Query()
	return q.Get("page") == "" && q.Get("start") == ""
}

// ParseResultCount reads the total from a "<n> Resultados" fragment.
func ParseResultCount(text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, utils.WrapErrorf(utils.ErrExtraction, "result count text is empty")
	}
	flat := strings.ReplaceAll(text, "\n", "")
	m := resultCountRe.FindStringSubmatch(flat)
	if m == nil {
		return 0, utils.WrapErrorf(utils.ErrExtraction, "no result count in %q", strings.TrimSpace(flat))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, utils.WrapErrorf(utils.ErrExtraction, "result count %q (%v)", m[1], err)
	}
	return n, nil
}

// PageTotal is ceil(total / PageSize)
func PageTotal(total int) int {
	if total <= 0 {
		return 0
	}
	pages := total / PageSize
	if total%PageSize != 0 {
		pages++
	}
	return pages
}

// PlanPages returns the URLs of listing pages 2 up to, but excluding, the last page.
// The page count is capped at MaxPageTotal.
// Each carries page=<index> and start=PageSize*(index-1); other query
// parameters of u are kept. u is not modified.
func PlanPages(u *url.URL, total int) []string {
	if u == nil {
		return nil
	}
	pageTotal := min(PageTotal(total), MaxPageTotal)
	var pages []string
	for index := 2; index < pageTotal; index++ {
		next := *u
		q := next.Query()
		q.Set("page", strconv.Itoa(index))
		q.Set("start", strconv.Itoa(PageSize*(index-1)))
		next.RawQuery = q.Encode()
		pages = append(pages, next.String())
	}
	return pages
}
