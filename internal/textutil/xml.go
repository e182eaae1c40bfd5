package textutil

import (
	"regexp"
	"strings"
	"sync"
)

var (
	cdataRe = regexp.MustCompile(`(?s)^\s*<!\[CDATA\[(.*)\]\]>\s*$`)

	tagReCache   = make(map[string]*regexp.Regexp)
	tagReCacheMu sync.Mutex
)

func tagPattern(tag string) *regexp.Regexp {
	tagReCacheMu.Lock()
	defer tagReCacheMu.Unlock()
	if re, ok := tagReCache[tag]; ok {
		return re
	}
	re := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(tag) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	tagReCache[tag] = re
	return re
}

// TagContent extracts the text of the first <tag>...</tag> occurrence,
// unwrapping CDATA. The second return is false when the tag is absent.
func TagContent(doc, tag string) (string, bool) {
	m := tagPattern(tag).FindStringSubmatch(doc)
	if m == nil {
		return "", false
	}
	return unwrapCDATA(m[1]), true
}

// AllTagContents extracts every <tag>...</tag> occurrence in document order,
// each unwrapped from CDATA.
func AllTagContents(doc, tag string) []string {
	ms := tagPattern(tag).FindAllStringSubmatch(doc, -1)
	if ms == nil {
		return nil
	}
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, unwrapCDATA(m[1]))
	}
	return out
}

// TagBlocks returns the raw inner content of up to limit <tag> blocks.
// Used to pull <item>/<entry> elements out of a feed without a full XML
// parse; a limit bounds worst-case work on hostile or broken feeds.
func TagBlocks(doc, tag string, limit int) []string {
	ms := tagPattern(tag).FindAllStringSubmatch(doc, limit)
	if ms == nil {
		return nil
	}
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m[1])
	}
	return out
}

// TagAttr extracts the value of an attribute from the first occurrence of
// <tag ...> in doc (self-closing tags included), e.g. Atom's
// <link href="..."/>.
func TagAttr(doc, tag, attr string) (string, bool) {
	openRe := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(tag) + `\s[^>]*>`)
	m := openRe.FindString(doc)
	if m == "" {
		return "", false
	}
	attrRe := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(attr) + `\s*=\s*["']([^"']*)["']`)
	am := attrRe.FindStringSubmatch(m)
	if am == nil {
		return "", false
	}
	return DecodeEntities(am[1]), true
}

func unwrapCDATA(s string) string {
	if m := cdataRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}
