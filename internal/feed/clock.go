package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GraceWindow absorbs clock skew between this process and an agency's page.
// A reported time up to this far in the future still counts as today.
const GraceWindow = 10 * time.Minute

// ParseClock parses a local time of day in "H:MM" or "HH:MM" form.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(hs) < 1 || len(hs) > 2 || len(ms) != 2 || !digits(hs) || !digits(ms) {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, _ = strconv.Atoi(hs)
	minute, _ = strconv.Atoi(ms)
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q out of range", s)
	}
	return hour, minute, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ResolveTime attaches a calendar date to a bare time of day. The date is
// today's date in now's location unless that would put the event more than
// GraceWindow after now, in which case the event happened yesterday.
func ResolveTime(now time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := now.Date()
	at := time.Date(y, mo, d, h, m, 0, 0, now.Location())
	if at.After(now.Add(GraceWindow)) {
		at = time.Date(y, mo, d-1, h, m, 0, 0, now.Location())
	}
	return at, nil
}
