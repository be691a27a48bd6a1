package utils

import (
	"regexp"
	"strings"
)

var (
	unsafePathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// maxFilenameBytes keeps state files such as "<host>-visited.txt" well under
// common filesystem name limits.
const maxFilenameBytes = 100

// SanitizeFilename turns a host or other label into a single safe path element.
// An input with nothing usable left becomes "untitled".
func SanitizeFilename(name string) string {
	clean := underscoreRuns.ReplaceAllString(unsafePathChars.ReplaceAllString(name, "_"), "_")
	clean = strings.Trim(clean, "_ ")
	if len(clean) > maxFilenameBytes {
		clean = strings.Trim(clean[:maxFilenameBytes], "_ ")
	}
	if clean == "" {
		return "untitled"
	}
	return clean
}
