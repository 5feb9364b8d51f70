package svg

import (
	"regexp"
	"strconv"
	"strings"
)

var multiSpace = regexp.MustCompile(` {2,}`)

// CollapseSpaces replaces runs of spaces with a single space.
func CollapseSpaces(s string) string {
	return multiSpace.ReplaceAllString(s, " ")
}

// ParseNumber parses an SVG length, ignoring a trailing px unit. Missing or
// malformed values return ok == false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
