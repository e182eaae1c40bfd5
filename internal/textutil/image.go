package textutil

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	metaTagRe     = regexp.MustCompile(`(?is)<meta\s[^>]*>`)
	linkTagRe     = regexp.MustCompile(`(?is)<link\s[^>]*>`)
	imgTagRe      = regexp.MustCompile(`(?is)<img\s[^>]*>`)
	attrValRe     = regexp.MustCompile(`(?i)([a-z-]+)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	placeholderRe = regexp.MustCompile(`(?i)logo|avatar|watermark|placeholder|default[-_]?image|spacer|blank|icon[-_]?only`)
)

// FindImageURL scans raw page HTML for the best representative image and
// returns it as an absolute URL, or "" when nothing qualifies. Preference
// order: Open Graph / Twitter Card meta tags, then <link rel="image_src">,
// then the highest-scoring <img> candidate.
func FindImageURL(doc, baseURL string) string {
	if u := metaImage(doc); u != "" {
		return absoluteURL(u, baseURL)
	}
	if u := linkImage(doc); u != "" {
		return absoluteURL(u, baseURL)
	}
	if u := bestImgTag(doc); u != "" {
		return absoluteURL(u, baseURL)
	}
	return ""
}

// IsPlaceholderImage reports whether an image URL matches the known
// logo/avatar/watermark patterns that make it useless as an event image.
func IsPlaceholderImage(u string) bool {
	return placeholderRe.MatchString(u)
}

func metaImage(doc string) string {
	for _, tag := range metaTagRe.FindAllString(doc, -1) {
		attrs := tagAttrs(tag)
		key := attrs["property"]
		if key == "" {
			key = attrs["name"]
		}
		switch strings.ToLower(key) {
		case "og:image", "og:image:url", "og:image:secure_url", "twitter:image", "twitter:image:src":
			if c := strings.TrimSpace(attrs["content"]); c != "" {
				return DecodeEntities(c)
			}
		}
	}
	return ""
}

func linkImage(doc string) string {
	for _, tag := range linkTagRe.FindAllString(doc, -1) {
		attrs := tagAttrs(tag)
		if strings.EqualFold(attrs["rel"], "image_src") {
			if h := strings.TrimSpace(attrs["href"]); h != "" {
				return DecodeEntities(h)
			}
		}
	}
	return ""
}

// bestImgTag scores every <img> on the page and returns the winner's src.
// Scoring penalizes chrome (logos, icons, SVGs, tracking pixels) and rewards
// content-area class names and real pixel dimensions.
func bestImgTag(doc string) string {
	best := ""
	bestScore := 0
	for _, tag := range imgTagRe.FindAllString(doc, -1) {
		attrs := tagAttrs(tag)
		src := strings.TrimSpace(attrs["src"])
		if src == "" || strings.HasPrefix(src, "data:") {
			continue
		}

		score := 10
		lower := strings.ToLower(src + " " + attrs["class"] + " " + attrs["alt"] + " " + attrs["id"])
		if placeholderRe.MatchString(lower) {
			score -= 30
		}
		if strings.HasSuffix(strings.ToLower(src), ".svg") {
			score -= 20
		}
		for _, hint := range []string{"hero", "event", "show", "poster", "featured", "banner", "main", "content"} {
			if strings.Contains(lower, hint) {
				score += 15
				break
			}
		}

		w := atoiAttr(attrs["width"])
		h := atoiAttr(attrs["height"])
		switch {
		case w >= 240 && h >= 180:
			score += 25
		case (w > 0 && w < 80) || (h > 0 && h < 80):
			score -= 25
		}

		if score > bestScore {
			bestScore = score
			best = DecodeEntities(src)
		}
	}
	return best
}

func tagAttrs(tag string) map[string]string {
	out := make(map[string]string)
	for _, m := range attrValRe.FindAllStringSubmatch(tag, -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		out[strings.ToLower(m[1])] = val
	}
	return out
}

func atoiAttr(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func absoluteURL(href, base string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return href
	}
	return b.ResolveReference(u).String()
}
