package utils

import (
	"regexp"
)

// CompileScope compiles the crawl scope expression matched against absolute URLs.
// An empty pattern is a configuration error.
func CompileScope(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, WrapErrorf(ErrConfigValidation, "scope pattern is empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, WrapErrorf(ErrConfigValidation, "invalid scope pattern '%s' (%v)", pattern, err)
	}
	return re, nil
}

// CompileRegexPatterns compiles regex strings into usable *regexp.Regexp objects.
// Returns an error if any pattern is invalid.
func CompileRegexPatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" { // Skip empty patterns silently
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, WrapErrorf(ErrConfigValidation, "invalid regex pattern #%d ('%s')", i+1, pattern)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// MatchesAny reports whether s matches at least one of patterns.
func MatchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
