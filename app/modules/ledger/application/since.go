package ledgerservice

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
)

// ParseSince reads a lower bound for windowed queries. It accepts RFC3339 or
// casual English such as "yesterday" or "3 days ago". Empty input means no bound.
func ParseSince(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return checkSince(t.UTC(), now)
	}

	w := when.New(nil)
	w.Add(en.All...)

	r, err := w.Parse(strings.ToLower(input), now)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse since %q: %w", input, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not recognize since %q", input)
	}
	return checkSince(r.Time.UTC(), now)
}

func checkSince(t, now time.Time) (time.Time, error) {
	if t.After(now) {
		return time.Time{}, fmt.Errorf("since must not be in the future (parsed: %s)", t.Format(time.RFC3339))
	}
	return t, nil
}
