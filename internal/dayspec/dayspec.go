// Package dayspec parses the day, clock and duration specifications the CLI
// accepts.
package dayspec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/dyluth/vesper/pkg/store"
)

// DateFormat is the canonical calendar-date layout used in store keys.
const DateFormat = "2006-01-02"

// ParseDay parses a day specification into a YYYY-MM-DD date string.
// Supports three forms:
//   - shorthands: "today", "tomorrow", "yesterday"
//   - literal dates: "2026-03-14"
//   - natural language: "next friday", "in 3 days"
func ParseDay(spec string, now time.Time) (string, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return "", fmt.Errorf("empty day specification")
	}

	switch s {
	case "today":
		return now.Format(DateFormat), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(DateFormat), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(DateFormat), nil
	}

	if t, err := time.Parse(DateFormat, s); err == nil {
		return t.Format(DateFormat), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(spec, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse day specification: %w", err)
	}
	if r == nil {
		return "", fmt.Errorf("invalid day specification: %q (use 'today', a date like 2026-03-14, or natural language like 'next friday')", spec)
	}

	return r.Time.Format(DateFormat), nil
}

// ParseClock parses an HH:MM wall-clock string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time: %q (expected HH:MM)", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock time: %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock time: %q", s)
	}

	return hour*60 + minute, nil
}

// ParseWindow parses an "HH:MM-HH:MM" range into a validated TimeWindow.
func ParseWindow(s string) (store.TimeWindow, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return store.TimeWindow{}, fmt.Errorf("invalid window: %q (expected HH:MM-HH:MM)", s)
	}

	start, err := ParseClock(parts[0])
	if err != nil {
		return store.TimeWindow{}, err
	}

	end, err := ParseClock(parts[1])
	if err != nil {
		return store.TimeWindow{}, err
	}

	w := store.TimeWindow{StartMinute: start, EndMinute: end}
	if err := w.Validate(); err != nil {
		return store.TimeWindow{}, err
	}

	return w, nil
}

// ParseDurationMinutes parses a duration specification into whole minutes.
// Accepts Go duration syntax ("1h30m", "45m") or a bare minute count ("45").
func ParseDurationMinutes(s string) (int, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("empty duration specification")
	}

	if n, err := strconv.Atoi(t); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %d", n)
		}
		return n, nil
	}

	if d, err := time.ParseDuration(t); err == nil {
		minutes := int(d.Minutes())
		if minutes <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %s", t)
		}
		return minutes, nil
	}

	return 0, fmt.Errorf("invalid duration: %q (use minutes like '45' or Go syntax like '1h30m')", s)
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatWindow renders a TimeWindow as HH:MM-HH:MM.
func FormatWindow(w store.TimeWindow) string {
	return FormatClock(w.StartMinute) + "-" + FormatClock(w.EndMinute)
}
