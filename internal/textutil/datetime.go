package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts tried by ParseFlexibleTime after RFC3339. Zoneless layouts are
// interpreted in the caller's location.
var flexibleLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
}

// ParseFlexibleTime parses the date/time renderings providers actually emit:
// RFC3339 with or without sub-seconds, RFC1123-family feed dates, bare
// date-time and date-only forms, the iCal basic form and epoch seconds.
// Zoneless values are interpreted in loc (UTC when nil).
func ParseFlexibleTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := ParseICalTime(s, "", loc); err == nil {
		return t, nil
	}
	if isAllDigits(s) && len(s) >= 10 && len(s) <= 13 {
		sec, err := strconv.ParseInt(s[:10], 10, 64)
		if err == nil {
			return time.Unix(sec, 0).UTC(), nil
		}
	}
	for _, layout := range flexibleLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %q", s)
}

var icalTimeRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(?:T(\d{2})(\d{2})(\d{2})(Z|[+-]\d{4})?)?$`)

// ParseICalTime parses the iCal basic form YYYYMMDD[THHMMSS][Z|±HHMM].
// A literal with no offset is interpreted in the IANA zone named by tzid,
// falling back to loc (UTC when nil). Date-only values resolve to midnight.
func ParseICalTime(value, tzid string, loc *time.Location) (time.Time, error) {
	m := icalTimeRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return time.Time{}, fmt.Errorf("not an iCal time: %q", value)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, min, sec := 0, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		min, _ = strconv.Atoi(m[5])
		sec, _ = strconv.Atoi(m[6])
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || min > 59 || sec > 60 {
		return time.Time{}, fmt.Errorf("out-of-range iCal time: %q", value)
	}

	switch offset := m[7]; {
	case offset == "Z":
		return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
	case offset != "":
		sign := 1
		if offset[0] == '-' {
			sign = -1
		}
		oh, _ := strconv.Atoi(offset[1:3])
		om, _ := strconv.Atoi(offset[3:5])
		zone := time.FixedZone(offset, sign*(oh*3600+om*60))
		return time.Date(year, time.Month(month), day, hour, min, sec, 0, zone), nil
	}

	if tzid != "" {
		if z, err := time.LoadLocation(tzid); err == nil {
			loc = z
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, loc), nil
}

var freeTextDateRe = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})(?:[,\s]+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm|AM|PM))?`)

// ExtractFreeTextTime finds the first "Month D, YYYY[, H:MMam/pm]" pattern
// in unstructured text. The result is in loc; the second return is false
// when no pattern matches.
func ExtractFreeTextTime(text string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	m := freeTextDateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	month := monthByName(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month == 0 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	hour, min := 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		if m[5] != "" {
			min, _ = strconv.Atoi(m[5])
		}
		if strings.EqualFold(m[6], "pm") && hour < 12 {
			hour += 12
		}
		if strings.EqualFold(m[6], "am") && hour == 12 {
			hour = 0
		}
	}
	return time.Date(year, month, day, hour, min, 0, 0, loc), true
}

var clockRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

// ExtractClock finds the first "H[:MM]am/pm" clock reading in s.
func ExtractClock(s string) (hour, min int, ok bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		min, _ = strconv.Atoi(m[2])
	}
	if hour < 1 || hour > 12 || min > 59 {
		return 0, 0, false
	}
	if strings.EqualFold(m[3], "pm") && hour < 12 {
		hour += 12
	}
	if strings.EqualFold(m[3], "am") && hour == 12 {
		hour = 0
	}
	return hour, min, true
}

// FormatLocalUTC renders t as the canonical {local, utc} pair: the local
// side in loc without an offset, the UTC side as RFC3339.
func FormatLocalUTC(t time.Time, loc *time.Location) (local, utc string) {
	if loc == nil {
		loc = t.Location()
	}
	return t.In(loc).Format("2006-01-02T15:04:05"), t.UTC().Format(time.RFC3339)
}

// LooksLikeDate reports whether s reads as a date rather than a category
// label. Feeds occasionally stuff dates into <category> tags.
func LooksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, err := ParseFlexibleTime(s, time.UTC); err == nil {
		return true
	}
	if _, ok := ExtractFreeTextTime(s, time.UTC); ok {
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func monthByName(name string) time.Month {
	switch strings.ToLower(name) {
	case "january", "jan":
		return time.January
	case "february", "feb":
		return time.February
	case "march", "mar":
		return time.March
	case "april", "apr":
		return time.April
	case "may":
		return time.May
	case "june", "jun":
		return time.June
	case "july", "jul":
		return time.July
	case "august", "aug":
		return time.August
	case "september", "sep", "sept":
		return time.September
	case "october", "oct":
		return time.October
	case "november", "nov":
		return time.November
	case "december", "dec":
		return time.December
	}
	return 0
}
