package provider

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/textutil"
)

// The scraping adapters convert raw venue-calendar HTML into a flat,
// order-preserving token stream, then run a small state machine over it.
// Keeping the fragile part in the tokenizer isolates provider-format churn:
// a venue redesign usually means new markup, not a new page structure.

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenLink
	tokenImage
)

type token struct {
	Kind tokenKind
	Text string // text content (empty for images)
	URL  string // href/src for link and image tokens
}

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<(script|style|noscript)\b.*?</(script|style|noscript)>`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	imgMarkerRe   = regexp.MustCompile(`(?is)<img\s[^>]*>`)
	srcAttrRe     = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']([^"']+)["']`)
	linkMarkerRe  = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a>`)
	anyTagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
)

const (
	markImg  = "\x00IMG\x1f"
	markLink = "\x00LNK\x1f"
	markSep  = "\x1f"
	markEnd  = "\x00"
)

// tokenizeHTML flattens doc into ordered text, link and image tokens.
// Images and anchors become bracketed markers before all remaining markup
// collapses to line breaks, so document order survives.
func tokenizeHTML(doc string) []token {
	doc = scriptBlockRe.ReplaceAllString(doc, "\n")
	doc = commentRe.ReplaceAllString(doc, "\n")

	doc = imgMarkerRe.ReplaceAllStringFunc(doc, func(tag string) string {
		if m := srcAttrRe.FindStringSubmatch(tag); m != nil {
			return "\n" + markImg + m[1] + markEnd + "\n"
		}
		return "\n"
	})

	doc = linkMarkerRe.ReplaceAllStringFunc(doc, func(tag string) string {
		m := linkMarkerRe.FindStringSubmatch(tag)
		inner := strings.TrimSpace(anyTagRe.ReplaceAllString(m[2], " "))
		return "\n" + markLink + m[1] + markSep + inner + markEnd + "\n"
	})

	doc = anyTagRe.ReplaceAllString(doc, "\n")

	var tokens []token
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(textutil.DecodeEntities(line))
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, markImg):
			src := strings.TrimSuffix(strings.TrimPrefix(line, markImg), markEnd)
			if src != "" {
				tokens = append(tokens, token{Kind: tokenImage, URL: src})
			}
		case strings.HasPrefix(line, markLink):
			body := strings.TrimSuffix(strings.TrimPrefix(line, markLink), markEnd)
			href, text, _ := strings.Cut(body, markSep)
			tokens = append(tokens, token{Kind: tokenLink, Text: strings.TrimSpace(text), URL: href})
		default:
			tokens = append(tokens, token{Kind: tokenText, Text: line})
		}
	}
	return tokens
}

var dateHeadingRe = regexp.MustCompile(`(?i)^(?:(?:mon|tues?|wed(?:nes)?|thu(?:rs)?|fri|sat(?:ur)?|sun)(?:day)?\.?,?\s+)?(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)

// parseDateHeading recognizes a calendar date heading such as
// "Friday, June 14" or "June 14, 2024". Headings without a year are pinned
// to the occurrence nearest now (venue calendars roll over at year end).
func parseDateHeading(line string, now time.Time, loc *time.Location) (time.Time, bool) {
	m := dateHeadingRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return time.Time{}, false
	}
	month := monthForHeading(m[1])
	if month == 0 {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}

	if m[3] != "" {
		year, _ := strconv.Atoi(m[3])
		return time.Date(year, month, day, 0, 0, 0, 0, loc), true
	}

	d := time.Date(now.Year(), month, day, 0, 0, 0, 0, loc)
	if d.Before(now.AddDate(0, -2, 0)) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

func monthForHeading(name string) time.Month {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || (len(name) >= 3 && strings.HasPrefix(full, name[:3]) && len(name) <= 4) {
			return m
		}
	}
	return 0
}

// venueInfo is the static identity of a scraped venue: its fixed location
// and the fallback show time used when a listing has no explicit time line.
type venueInfo struct {
	Venue        domain.Venue
	Lat, Lon     float64
	Segment      string
	FallbackHour int
	FallbackMin  int
	Timezone     string
}

var ticketLinkRe = regexp.MustCompile(`(?i)^(buy\s+)?tickets?$|^more\s+info$|^details$|^rsvp$|^info$`)

type showInProgress struct {
	name     string
	url      string
	alt      []string
	clockH   int
	clockM   int
	hasClock bool
	details  []string
	image    string
}

// parseVenueTokens runs the forward-scanning state machine: a date heading
// opens a day, each titled link under it opens a show, and time lines,
// detail lines and image tokens attach to the open show until the next
// heading or link.
func parseVenueTokens(tokens []token, providerID string, info venueInfo, now time.Time) []domain.Event {
	loc := time.UTC
	if info.Timezone != "" {
		if z, err := time.LoadLocation(info.Timezone); err == nil {
			loc = z
		}
	}

	var (
		events      []domain.Event
		currentDate time.Time
		haveDate    bool
		show        *showInProgress
	)

	flush := func() {
		if show == nil || !haveDate || show.name == "" {
			show = nil
			return
		}
		h, m := info.FallbackHour, info.FallbackMin
		if show.hasClock {
			h, m = show.clockH, show.clockM
		}
		start := time.Date(currentDate.Year(), currentDate.Month(), currentDate.Day(), h, m, 0, 0, loc)
		local, utc := textutil.FormatLocalUTC(start, loc)

		ev := domain.Event{
			Name:           show.name,
			Start:          domain.EventTime{Local: local, UTC: utc},
			URL:            show.url,
			AlternateLinks: show.alt,
			Venue:          info.Venue,
			Segment:        info.Segment,
			Summary:        strings.Join(show.details, " "),
			Source:         providerID,
		}
		ev.ID = domain.EventID(providerID, "", show.name, ev.Start, show.url)
		if show.image != "" {
			ev.Images = []domain.Image{{URL: show.image}}
		}
		events = append(events, ev)
		show = nil
	}

	for _, tok := range tokens {
		switch tok.Kind {
		case tokenText:
			if d, ok := parseDateHeading(tok.Text, now, loc); ok {
				flush()
				currentDate = d
				haveDate = true
				continue
			}
			if show == nil {
				continue
			}
			if h, m, ok := textutil.ExtractClock(tok.Text); ok && !show.hasClock {
				show.clockH, show.clockM, show.hasClock = h, m, true
				continue
			}
			if len(show.details) < 3 && len(tok.Text) > 2 {
				show.details = append(show.details, tok.Text)
			}
		case tokenLink:
			if !haveDate {
				continue
			}
			if ticketLinkRe.MatchString(tok.Text) {
				if show != nil && tok.URL != "" {
					show.alt = append(show.alt, tok.URL)
				}
				continue
			}
			if tok.Text == "" {
				continue
			}
			flush()
			show = &showInProgress{name: tok.Text, url: tok.URL}
		case tokenImage:
			if show != nil && show.image == "" && !textutil.IsPlaceholderImage(tok.URL) {
				show.image = tok.URL
			}
		}
	}
	flush()

	// Venue pages list whole months; anything already over is noise.
	cutoff := now.Add(-12 * time.Hour)
	kept := events[:0]
	for _, ev := range events {
		if t, ok := ev.StartInstant(); ok && t.Before(cutoff) {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}
