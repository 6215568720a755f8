package mbox

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseFromLineDate extracts the timestamp of a separator line such as
//
//	From sender@example.org Mon Jan  2 15:04:05 2006
//
// The zone token between time and year is optional and may be numeric
// (+0200) or an abbreviation, which is ignored. Lines without a usable date
// report ok == false; callers substitute the current time.
func ParseFromLineDate(line []byte) (t time.Time, ok bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(fromLiteral)) {
		return time.Time{}, false
	}
	fields := strings.Fields(string(line[len(fromLiteral):]))

	// The sender may contain spaces or be empty, so look for the
	// weekday/month pair instead of assuming a fixed position.
	for i := 0; i+3 < len(fields); i++ {
		if !weekdays[strings.ToLower(fields[i])] {
			continue
		}
		if _, isMonth := months[strings.ToLower(fields[i+1])]; !isMonth {
			continue
		}
		if t, ok := parseDateFields(fields[i+1:]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDateFields parses "Mmm dd hh:mm[:ss] [zone] yyyy".
func parseDateFields(f []string) (time.Time, bool) {
	if len(f) < 4 {
		return time.Time{}, false
	}
	month := months[strings.ToLower(f[0])]

	if !isDigits(f[1]) {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(f[1])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}

	hour, minute, sec, ok := parseClock(f[2])
	if !ok {
		return time.Time{}, false
	}

	loc := time.UTC
	yearField := f[3]
	if !isDigits(yearField) {
		if len(f) < 5 {
			return time.Time{}, false
		}
		if zone, ok := parseZone(f[3]); ok {
			loc = zone
		}
		yearField = f[4]
	}

	if !isDigits(yearField) {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(yearField)
	switch {
	case len(yearField) == 2 && year < 70:
		year += 2000
	case len(yearField) == 2:
		year += 1900
	case len(yearField) != 4:
		return time.Time{}, false
	}

	t := time.Date(year, month, day, hour, minute, sec, 0, loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func parseClock(s string) (hour, minute, sec int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, p := range parts {
		if len(p) != 2 {
			return 0, 0, 0, false
		}
		if !isDigits(p) {
			return 0, 0, 0, false
		}
		vals[i], _ = strconv.Atoi(p)
	}
	if vals[0] > 23 || vals[1] > 59 || vals[2] > 60 {
		return 0, 0, 0, false
	}
	return vals[0], vals[1], vals[2], true
}

func parseZone(s string) (*time.Location, bool) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') || !isDigits(s[1:]) {
		return nil, false
	}
	hh, _ := strconv.Atoi(s[1:3])
	mm, _ := strconv.Atoi(s[3:5])
	if hh > 23 || mm > 59 {
		return nil, false
	}
	offset := hh*3600 + mm*60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(s, offset), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
