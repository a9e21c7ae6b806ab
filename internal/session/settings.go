package session

import (
	"fmt"
	"time"

	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/timestamp"
)

// Settings are supplied at Start.
type Settings struct {
	ScrollDelaySeconds float64 `json:"scrollDelaySeconds"`
	IncludeThreads     bool    `json:"includeThreads"`
	AutoSaveInterval   int     `json:"autoSaveInterval"`
	TimeRangeFrom      string  `json:"timeRangeFrom,omitempty"`
	TimeRangeTo        string  `json:"timeRangeTo,omitempty"`
}

// DefaultSettings matches the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		ScrollDelaySeconds: 2,
		IncludeThreads:     true,
		AutoSaveInterval:   100,
	}
}

// TimeRange converts the local datetime bounds into a normalized range.
// swapped reports that the bounds were given inverted.
func (s Settings) TimeRange(loc *time.Location) (r archive.TimeRange, swapped bool, err error) {
	if s.TimeRangeFrom != "" {
		if r.FromTS, err = timestamp.ParseLocal(s.TimeRangeFrom, loc); err != nil {
			return archive.TimeRange{}, false, fmt.Errorf("session: timeRangeFrom: %w", err)
		}
	}
	if s.TimeRangeTo != "" {
		if r.ToTS, err = timestamp.ParseLocalEnd(s.TimeRangeTo, loc); err != nil {
			return archive.TimeRange{}, false, fmt.Errorf("session: timeRangeTo: %w", err)
		}
	}
	r, swapped = r.Normalize()
	return r, swapped, nil
}
