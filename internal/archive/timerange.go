package archive

import "github.com/zulandar/skimmer/internal/timestamp"

// TimeRange bounds which messages are retained. Either end may be empty.
type TimeRange struct {
	FromTS string `json:"fromTs,omitempty"`
	ToTS   string `json:"toTs,omitempty"`
}

// Active reports whether any bound is set.
func (r TimeRange) Active() bool {
	return r.FromTS != "" || r.ToTS != ""
}

// Normalize swaps inverted bounds. The second value reports whether a swap
// happened so callers can warn about it.
func (r TimeRange) Normalize() (TimeRange, bool) {
	if r.FromTS != "" && r.ToTS != "" && timestamp.Compare(r.FromTS, r.ToTS) > 0 {
		return TimeRange{FromTS: r.ToTS, ToTS: r.FromTS}, true
	}
	return r, false
}

// Contains reports whether ts falls inside the inclusive range.
func (r TimeRange) Contains(ts string) bool {
	if r.FromTS != "" && timestamp.Compare(ts, r.FromTS) < 0 {
		return false
	}
	if r.ToTS != "" && timestamp.Compare(ts, r.ToTS) > 0 {
		return false
	}
	return true
}

// Before reports whether ts is older than the lower bound.
func (r TimeRange) Before(ts string) bool {
	return r.FromTS != "" && timestamp.Compare(ts, r.FromTS) < 0
}
