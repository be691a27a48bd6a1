package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	// Resource-scoped failures of the classification/extraction core
	ErrClassificationMiss = errors.New("no handler matched resource")
	ErrExtraction         = errors.New("required element missing or unparseable")
	ErrMalformedProduct   = errors.New("product document lacks top-level product object")
	ErrSeedFetch          = errors.New("seed store unavailable")

	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrScopeViolation   = errors.New("URL out of scope")
	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger/postgres errors
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf prefixes err with a formatted message, keeping it matchable by errors.Is.
// Returns nil when err is nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrClassificationMiss):
		return "Core_ClassificationMiss"
	case errors.Is(err, ErrExtraction):
		return "Core_Extraction"
	case errors.Is(err, ErrMalformedProduct):
		return "Core_MalformedProduct"
	case errors.Is(err, ErrSeedFetch):
		return "Seed_FetchFailure"
	case errors.Is(err, ErrRetryFailed):
		return categorizeRetryCause(retryCause(err))
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrScopeViolation):
		return "Policy_Scope"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "URL"):
			return "Content_ParsingURL"
		case strings.Contains(errMsg, "JSON"):
			return "Content_ParsingJSON"
		case strings.Contains(errMsg, "HTML"):
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "broken pipe"):
		return "Network_BrokenPipe"
	}

	return "Unknown"
}

// retryCause finds the error ErrRetryFailed was joined with. The fetcher wraps
// both with a single "%w: %w", so the cause is a sibling, not a child.
func retryCause(err error) error {
	for err != nil && err != ErrRetryFailed {
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			next := error(nil)
			for _, e := range u.Unwrap() {
				if !errors.Is(e, ErrRetryFailed) {
					return e
				}
				if next == nil {
					next = e
				}
			}
			err = next
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return nil
		}
	}
	return nil
}

func categorizeRetryCause(cause error) string {
	if cause == nil {
		return "RetryFailed_Unknown"
	}
	if errors.Is(cause, ErrServerHTTPError) {
		return "RetryFailed_HTTPServer"
	}
	if errors.Is(cause, ErrClientHTTPError) {
		return "RetryFailed_HTTPClient"
	}
	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return "RetryFailed_NetworkTimeout"
	}
	errMsg := strings.ToLower(cause.Error())
	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return "RetryFailed_NetworkTimeout"
	case strings.Contains(errMsg, "connection refused"):
		return "RetryFailed_ConnectionRefused"
	case strings.Contains(errMsg, "no such host"):
		return "RetryFailed_DNSLookup"
	}
	return "RetryFailed_NetworkOther"
}
