// Package schedule runs callbacks on 5-field cron expressions.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse validates and compiles a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse %q: %w", expr, err)
	}
	return sched, nil
}

// NextDelay returns the duration from now until the schedule next fires.
// Returns 0 when the next fire time is already due.
func NextDelay(sched cron.Schedule, now time.Time) time.Duration {
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run calls fn every time sched fires until ctx is cancelled.
func Run(ctx context.Context, sched cron.Schedule, fn func(context.Context)) {
	for {
		timer := time.NewTimer(NextDelay(sched, time.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			fn(ctx)
		}
	}
}
