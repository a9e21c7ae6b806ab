package session

import (
	"context"
	"time"
)

// Clock is the session's source of time and waiting.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock uses the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Tuning holds the controller's step sizes, timeouts and limits.
type Tuning struct {
	// Main loop step range in pixels, and the narrower range used when a
	// time range is active.
	StepMin, StepMax           float64
	RangeStepMin, RangeStepMax float64

	// LoadWait bounds the wait for the list extent to change after a step.
	LoadWait time.Duration
	LoadPoll time.Duration

	// Delay jitter and the occasional longer reading pause.
	Jitter             float64
	ReadingPauseChance float64
	ReadingPauseMin    float64
	ReadingPauseMax    float64

	// Termination.
	TopNoProgressTicks int
	NoProgressLimit    int
	BelowRangeTicks    int
	MaxFailedTicks     int

	// Jump sub-phase.
	JumpStep         float64
	JumpSettle       time.Duration
	JumpStallSamples int
	JumpDateCap      int
	JumpNewestCap    int

	// Thread panel.
	PanelOpenTimeout   time.Duration
	PanelCloseTimeout  time.Duration
	PanelPoll          time.Duration
	PanelSettle        time.Duration
	PanelStableSamples int
	PanelMaxScrolls    int
	// PanelInterval is the minimum spacing between panel opens.
	PanelInterval time.Duration

	// ObserveInterval is how often the change observer polls the page.
	ObserveInterval time.Duration
}

// DefaultTuning returns the production values.
func DefaultTuning() Tuning {
	return Tuning{
		StepMin:      300,
		StepMax:      600,
		RangeStepMin: 150,
		RangeStepMax: 300,

		LoadWait: 2 * time.Second,
		LoadPoll: 100 * time.Millisecond,

		Jitter:             0.3,
		ReadingPauseChance: 0.05,
		ReadingPauseMin:    3,
		ReadingPauseMax:    6,

		TopNoProgressTicks: 3,
		NoProgressLimit:    15,
		BelowRangeTicks:    3,
		MaxFailedTicks:     5,

		JumpStep:         2000,
		JumpSettle:       800 * time.Millisecond,
		JumpStallSamples: 5,
		JumpDateCap:      200,
		JumpNewestCap:    50,

		PanelOpenTimeout:   5 * time.Second,
		PanelCloseTimeout:  2 * time.Second,
		PanelPoll:          200 * time.Millisecond,
		PanelSettle:        500 * time.Millisecond,
		PanelStableSamples: 3,
		PanelMaxScrolls:    50,
		PanelInterval:      time.Second,

		ObserveInterval: 500 * time.Millisecond,
	}
}
