package textutil

import (
	"strings"
)

// ICalProperty is one parsed iCalendar content line:
// NAME;PARAM=VALUE;...:value
type ICalProperty struct {
	Name   string
	Params map[string]string
	Value  string
}

// Param returns the named parameter, case-insensitively.
func (p ICalProperty) Param(name string) string {
	return p.Params[strings.ToUpper(name)]
}

// UnfoldICalLines joins iCalendar continuation lines (lines starting with a
// space or tab continue the previous line) and drops empties.
func UnfoldICalLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	raw := strings.Split(body, "\n")

	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	return out
}

// ParseICalProperty splits an unfolded content line into name, parameters
// and value. The second return is false for lines with no colon. Parameter
// values may be quoted; quotes are stripped. The property value keeps its
// escaped characters decoded (\n, \, \; \,).
func ParseICalProperty(line string) (ICalProperty, bool) {
	// Find the first colon outside a quoted parameter value.
	inQuotes := false
	colon := -1
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon < 0 {
		return ICalProperty{}, false
	}

	head := line[:colon]
	value := line[colon+1:]

	parts := strings.Split(head, ";")
	prop := ICalProperty{
		Name:   strings.ToUpper(strings.TrimSpace(parts[0])),
		Params: make(map[string]string),
		Value:  decodeICalText(value),
	}
	if prop.Name == "" {
		return ICalProperty{}, false
	}
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		prop.Params[strings.ToUpper(strings.TrimSpace(k))] = strings.Trim(v, `"`)
	}
	return prop, true
}

// ICalEvent is the accumulated property set of one VEVENT block. Repeated
// properties (ATTACH, CATEGORIES) are all kept, in order.
type ICalEvent struct {
	Props []ICalProperty
}

// Get returns the first property with the given name.
func (e ICalEvent) Get(name string) (ICalProperty, bool) {
	name = strings.ToUpper(name)
	for _, p := range e.Props {
		if p.Name == name {
			return p, true
		}
	}
	return ICalProperty{}, false
}

// Value returns the first value for name, or "".
func (e ICalEvent) Value(name string) string {
	if p, ok := e.Get(name); ok {
		return p.Value
	}
	return ""
}

// All returns every property with the given name, in order.
func (e ICalEvent) All(name string) []ICalProperty {
	name = strings.ToUpper(name)
	var out []ICalProperty
	for _, p := range e.Props {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// ParseICalEvents unfolds body and accumulates BEGIN:VEVENT...END:VEVENT
// blocks. Properties outside any VEVENT are ignored. An unterminated final
// block is kept; truncated feeds are common enough that dropping it loses
// real events.
func ParseICalEvents(body string) []ICalEvent {
	lines := UnfoldICalLines(body)

	var events []ICalEvent
	var current *ICalEvent
	for _, line := range lines {
		prop, ok := ParseICalProperty(line)
		if !ok {
			continue
		}
		switch {
		case prop.Name == "BEGIN" && strings.EqualFold(prop.Value, "VEVENT"):
			current = &ICalEvent{}
		case prop.Name == "END" && strings.EqualFold(prop.Value, "VEVENT"):
			if current != nil {
				events = append(events, *current)
				current = nil
			}
		default:
			if current != nil {
				current.Props = append(current.Props, prop)
			}
		}
	}
	if current != nil && len(current.Props) > 0 {
		events = append(events, *current)
	}
	return events
}

// decodeICalText resolves the TEXT escapes of RFC 5545 §3.3.11.
func decodeICalText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case ',', ';', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
