// Package parse holds URL helpers shared by the crawl runtime.
package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// NormalizeURL builds the deduplication key of a URL.
// Scheme and host are lowercased, default ports dropped, an empty path becomes
// "/", the fragment is removed and query parameters are sorted. The query is
// kept because listing pages and product variants differ only by it.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	if host, port, err := net.SplitHostPort(normalized.Host); err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
		normalized.RawPath = ""
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""
	if normalized.RawQuery != "" {
		normalized.RawQuery = normalized.Query().Encode()
	}
	normalized.ForceQuery = false

	return normalized.String()
}

// ParseAndNormalize parses an absolute http(s) URL and returns its NormalizeURL key
// together with the parsed URL.
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := parseAbsolute(urlStr)
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}

func parseAbsolute(urlStr string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return nil, fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, urlStr, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("%w: URL '%s' is not absolute", utils.ErrParsing, urlStr)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: URL '%s' has unsupported scheme '%s'", utils.ErrParsing, urlStr, parsed.Scheme)
	}
	return parsed, nil
}
