package parse

import "regexp"

// IsValidURL reports whether s is an absolute http(s) URL with a host
func IsValidURL(s string) bool {
	_, err := parseAbsolute(s)
	return err == nil
}

// IsInScope reports whether s matches the crawl scope pattern.
// The pattern is applied as a search, not anchored, the way the scope is configured.
func IsInScope(scope *regexp.Regexp, s string) bool {
	return scope != nil && scope.MatchString(s)
}
