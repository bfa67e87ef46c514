package util

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the compact YYYYMMDD form used by the market-data API.
const DateLayout = "20060102"

// ParseDate parses YYYYMMDD into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseDateDefault parses YYYYMMDD or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, err := ParseDate(s); err == nil {
		return t
	}
	return def
}

// FormatDate renders t as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseTime tries RFC3339, RFC3339Nano, YYYY-MM-DD, YYYYMMDD and unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, time.DateOnly, DateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// TruncateDay drops the clock part, keeping the calendar date in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange resolves optional YYYYMMDD bounds against now and a default lookback in days.
func DateRange(start, end string, now time.Time, lookbackDays int) (time.Time, time.Time, error) {
	to := TruncateDay(now)
	if end != "" {
		t, err := ParseDate(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	from := to.AddDate(0, 0, -lookbackDays)
	if start != "" {
		t, err := ParseDate(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s after end %s", FormatDate(from), FormatDate(to))
	}
	return from, to, nil
}
