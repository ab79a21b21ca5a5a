package sync

import (
	"regexp"
	"strings"
)

// Members book practice slots with a "<name> - <phone>" first line in the
// description. The phone part is digits, spaces, and an optional leading +.
var organizerPattern = regexp.MustCompile(`^(.+) - ([0-9+][0-9 ]*)$`)

// ExtractOrganizer returns the booking member's name from an activity
// description, or "" when the convention is not followed. Only the first
// line is inspected; the pattern appearing on a later line does not count.
// This is a heuristic, not a classifier: it can mis-extract and callers must
// treat the result as best-effort enrichment only.
func ExtractOrganizer(description string) string {
	if description == "" {
		return ""
	}
	firstLine := description
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	firstLine = strings.TrimRight(firstLine, "\r")

	m := organizerPattern.FindStringSubmatch(firstLine)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
