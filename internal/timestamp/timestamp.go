// Package timestamp normalizes the many ways a chat UI renders message
// timestamps into one canonical, comparable "<unix seconds>.<fraction>" string.
package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// secondsDigits is the width of the integer-seconds part of a canonical ts.
const secondsDigits = 10

var (
	rawPattern       = regexp.MustCompile(`^\d{10}(\.\d+)?$`)
	digitsPattern    = regexp.MustCompile(`^\d{11,}$`)
	embeddedPattern  = regexp.MustCompile(`\d{10}\.\d+`)
	permalinkPattern = regexp.MustCompile(`p(\d{11,})`)
)

// isoLayouts are tried in order for ISO-8601-like input.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize converts s into a canonical timestamp string. The second return
// value is false when s holds nothing that can be read as a timestamp; no
// value is ever made up in that case.
func Normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if rawPattern.MatchString(s) {
		return s, true
	}
	if digitsPattern.MatchString(s) {
		return splitCompact(s), true
	}
	// A permalink's own id wins over any thread_ts carried in its query.
	if m := permalinkPattern.FindStringSubmatch(s); m != nil {
		return splitCompact(m[1]), true
	}
	if m := embeddedPattern.FindString(s); m != "" {
		return m, true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), true
		}
	}
	return "", false
}

// splitCompact inserts the decimal point after the 10th digit of a scaled
// fixed-point id such as the "p1700000000123456" permalink form.
func splitCompact(digits string) string {
	return digits[:secondsDigits] + "." + digits[secondsDigits:]
}

// FromTime renders t as a canonical ts with microsecond precision.
func FromTime(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// Time converts a canonical ts back to a time.Time.
func Time(ts string) (time.Time, bool) {
	sec, frac, ok := split(ts)
	if !ok {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var nanos int64
	if frac != "" {
		padded := (frac + "000000000")[:9]
		nanos, _ = strconv.ParseInt(padded, 10, 64)
	}
	return time.Unix(n, nanos), true
}

// DateTime returns the date and clock strings for ts in loc. Both are empty
// when ts is not canonical.
func DateTime(ts string, loc *time.Location) (string, string) {
	t, ok := Time(ts)
	if !ok {
		return "", ""
	}
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return t.Format("2006-01-02"), t.Format("15:04:05")
}

// Compare returns -1, 0 or +1 comparing two canonical timestamps numerically.
// The comparison is exact: integer seconds first, then the fraction padded
// on the right. Non-canonical values sort before canonical ones.
func Compare(a, b string) int {
	as, af, aok := split(a)
	bs, bf, bok := split(b)
	switch {
	case !aok && !bok:
		return strings.Compare(a, b)
	case !aok:
		return -1
	case !bok:
		return 1
	}
	as = strings.TrimLeft(as, "0")
	bs = strings.TrimLeft(bs, "0")
	if len(as) != len(bs) {
		if len(as) < len(bs) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(as, bs); c != 0 {
		return c
	}
	width := len(af)
	if len(bf) > width {
		width = len(bf)
	}
	af += strings.Repeat("0", width-len(af))
	bf += strings.Repeat("0", width-len(bf))
	return strings.Compare(af, bf)
}

// split breaks a canonical ts into its seconds and fraction digits.
func split(ts string) (string, string, bool) {
	sec, frac, _ := strings.Cut(ts, ".")
	if sec == "" || !allDigits(sec) || !allDigits(frac) {
		return "", "", false
	}
	return sec, frac, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// dateLayout is the date-only form; it names a whole day.
const dateLayout = "2006-01-02"

// localLayouts are the forms accepted from settings for time-range bounds.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateLayout,
}

// ParseLocal reads a local date/time string (as entered in a datetime-local
// form field) in loc and returns its canonical ts. Already-canonical input is
// passed through. A bare date means the start of that day.
func ParseLocal(s string, loc *time.Location) (string, error) {
	return parseLocal(s, loc, false)
}

// ParseLocalEnd is ParseLocal for an inclusive upper bound: a bare date
// means the last microsecond of that day.
func ParseLocalEnd(s string, loc *time.Location) (string, error) {
	return parseLocal(s, loc, true)
}

func parseLocal(s string, loc *time.Location, endOfDay bool) (string, error) {
	s = strings.TrimSpace(s)
	if rawPattern.MatchString(s) {
		return s, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if endOfDay && layout == dateLayout {
			t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
		return FromTime(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FromTime(t), nil
	}
	return "", fmt.Errorf("timestamp: cannot parse %q as a local date/time", s)
}
