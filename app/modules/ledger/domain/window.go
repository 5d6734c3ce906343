package ledgerdomain

import (
	"fmt"
	"strings"
	"time"
)

// Window selects which entries a leaderboard view considers, by submission time.
type Window string

const (
	WindowAllTime Window = "all-time"
	WindowWeekly  Window = "weekly"
	WindowDaily   Window = "daily"
)

const (
	// DefaultAllTimeLimit is the page size used when an all-time query gives no limit.
	DefaultAllTimeLimit = 100
	// DefaultWindowLimit is the page size used for weekly and daily views.
	DefaultWindowLimit = 10
	// MaxLimit caps any single top-N request.
	MaxLimit = 1000
)

// ParseWindow accepts the window names used by clients. Empty means all-time.
func ParseWindow(s string) (Window, error) {
	switch Window(strings.ToLower(strings.TrimSpace(s))) {
	case "", WindowAllTime, "alltime", "all":
		return WindowAllTime, nil
	case WindowWeekly, "week":
		return WindowWeekly, nil
	case WindowDaily, "day":
		return WindowDaily, nil
	default:
		return "", fmt.Errorf("unknown leaderboard window %q", s)
	}
}

// Since returns the earliest submission time included in w relative to now.
// The zero time means no lower bound.
func (w Window) Since(now time.Time) time.Time {
	switch w {
	case WindowWeekly:
		return now.Add(-7 * 24 * time.Hour)
	case WindowDaily:
		return now.Add(-24 * time.Hour)
	default:
		return time.Time{}
	}
}

// DefaultLimit is the page size for w when the caller does not give one.
func (w Window) DefaultLimit() int {
	if w == WindowAllTime {
		return DefaultAllTimeLimit
	}
	return DefaultWindowLimit
}
