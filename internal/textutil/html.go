// Package textutil holds the pure text-extraction helpers shared by every
// provider adapter: HTML cleanup, XML/RSS field extraction, iCal unfolding
// and loose date/time parsing. Nothing in this package performs I/O.
package textutil

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	multiSpaceRe = regexp.MustCompile(`[ \t\x{00a0}]+`)
	multiLineRe  = regexp.MustCompile(`\n{3,}`)
)

// DecodeEntities resolves named and numeric HTML entities.
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}

// StripTags replaces any <...> markup with whitespace and decodes entities,
// collapsing the runs of blanks the removal leaves behind.
func StripTags(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = DecodeEntities(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = multiLineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
