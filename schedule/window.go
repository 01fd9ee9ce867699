package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Window is a daily time-of-day interval in local time. Windows may wrap
// past midnight, e.g. "22:00-06:00". The start is inclusive, the end
// exclusive.
type Window struct {
	start int // minutes since midnight
	end   int
}

// ParseWindow parses a "HH:MM-HH:MM" interval.
func ParseWindow(s string) (Window, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("invalid window %q: expected HH:MM-HH:MM", s)
	}

	start, err := parseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return Window{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	end, err := parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return Window{}, fmt.Errorf("invalid window %q: %w", s, err)
	}
	if start == end {
		return Window{}, fmt.Errorf("invalid window %q: start and end are equal", s)
	}

	return Window{start: start, end: end}, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()

	if w.start < w.end {
		return minute >= w.start && minute < w.end
	}
	// Wraps midnight.
	return minute >= w.start || minute < w.end
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.start/60, w.start%60, w.end/60, w.end%60)
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
