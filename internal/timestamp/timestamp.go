// Package timestamp converts between the storefront's display date text
// ("DD-MM-YYYY, hh:mm:ss AM|PM") and canonical instants.
package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout is the Go layout of the storefront display format.
const DisplayLayout = "02-01-2006, 03:04:05 PM"

var displayPattern = regexp.MustCompile(`(?i)(\d{2})-(\d{2})-(\d{4}),\s*(\d{1,2}):(\d{2})(?::(\d{2}))?\s*(AM|PM)`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Normalizer parses and formats display timestamps in a fixed location.
// Display text carries no zone, so both directions must agree on one.
//
// Format then Parse returns the same instant except during the hour a DST
// change repeats: "01:30 AM" on such a day names two instants and Parse may
// return either. The display text itself always survives Parse then Format.
// Zones without DST, UTC included, have no such hour.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer for loc; nil means time.Local.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Location returns the zone display text is interpreted in.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Parse returns the instant described by s and true, or false when s matches
// neither the ISO-8601 shape nor the display shape.
func (n *Normalizer) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, "T") {
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
				return t, true
			}
		}
	}
	return n.parseDisplay(s)
}

func (n *Normalizer) parseDisplay(s string) (time.Time, bool) {
	m := displayPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}

	switch strings.ToUpper(m[7]) {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, n.loc), true
}

// Format renders t in the display shape, seconds included.
func (n *Normalizer) Format(t time.Time) string {
	return t.In(n.loc).Format(DisplayLayout)
}
