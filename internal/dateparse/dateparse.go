// Package dateparse parses human "since" expressions into points in time
// for filtering notes and conflict history.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince parses an expression describing a past point in time, using
// the current time as the reference.
//
// Supported formats:
//   - Exact dates: "2026-03-01" (midnight, local time)
//   - Durations: "24h", "90m" (go duration syntax, counted back from now)
//   - Relative offsets: "7d", "2w", "3mo" (days, weeks, months back)
//   - Keywords: "today", "yesterday", "last-week", "last-month"
//   - Day names: "monday", "tuesday", ... (most recent occurrence)
func ParseSince(input string) (time.Time, error) {
	return ParseSinceFrom(input, time.Now())
}

// ParseSinceFrom is ParseSince with a fixed reference time.
func ParseSinceFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}

	if t, err := time.ParseInLocation("2006-01-02", input, now.Location()); err == nil {
		return t, nil
	}

	switch input {
	case "today":
		return midnight(now), nil
	case "yesterday":
		return midnight(now.AddDate(0, 0, -1)), nil
	case "last-week":
		return midnight(now.AddDate(0, 0, -7)), nil
	case "last-month":
		return midnight(now.AddDate(0, -1, 0)), nil
	}

	// Offsets like 7d, 2w, 3mo count back from now. A leading minus is
	// tolerated since "-7d" reads naturally for a lookback. Minutes keep
	// the bare "m" suffix through the duration branch below.
	offset := strings.TrimPrefix(input, "-")
	if num, ok := strings.CutSuffix(offset, "mo"); ok {
		if n, err := strconv.Atoi(num); err == nil && n >= 0 {
			return now.AddDate(0, -n, 0), nil
		}
	} else if len(offset) >= 2 {
		suffix := offset[len(offset)-1]
		if n, err := strconv.Atoi(offset[:len(offset)-1]); err == nil && n >= 0 {
			switch suffix {
			case 'd':
				return now.AddDate(0, 0, -n), nil
			case 'w':
				return now.AddDate(0, 0, -n*7), nil
			}
		}
	}

	if d, err := time.ParseDuration(input); err == nil && d > 0 {
		return now.Add(-d), nil
	}

	if target, ok := weekdays[input]; ok {
		daysBack := (int(now.Weekday()) - int(target) + 7) % 7
		if daysBack == 0 {
			daysBack = 7 // always the previous occurrence, not today
		}
		return midnight(now.AddDate(0, 0, -daysBack)), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
