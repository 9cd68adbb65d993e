// Package daterange parses the "DD-MM-YYYY to DD-MM-YYYY" input of the
// order-by-date query.
package daterange

import (
	"regexp"
	"strings"
)

// Format is shown to users when asking for a range.
const Format = "DD-MM-YYYY to DD-MM-YYYY"

var rangePattern = regexp.MustCompile(`(?i)(\d{2})-(\d{2})-(\d{4})\s*(?:至|to)\s*(\d{2})-(\d{2})-(\d{4})`)

// Range holds ISO-8601 UTC bounds covering whole days.
type Range struct {
	Start string
	End   string
}

// Parse extracts a range from input. Calendar validity is not checked:
// 31-02-2024 yields 2024-02-31, and the order service rejects it.
func Parse(input string) (Range, bool) {
	m := rangePattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return Range{}, false
	}
	return Range{
		Start: m[3] + "-" + m[2] + "-" + m[1] + "T00:00:00Z",
		End:   m[6] + "-" + m[5] + "-" + m[4] + "T23:59:59Z",
	}, true
}
