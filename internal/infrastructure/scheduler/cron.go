package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AdvisoryDispatch/internal/ports"
)

// DailyTrigger fires the batch job once per day at a fixed local time.
type DailyTrigger struct {
	runAt    string // "HH:MM"
	location *time.Location
	stop     chan struct{}
	stopOnce sync.Once
}

var _ ports.Scheduler = (*DailyTrigger)(nil)

// NewDailyTrigger builds a trigger for the given wall-clock time.
func NewDailyTrigger(runAt string, loc *time.Location) *DailyTrigger {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyTrigger{runAt: runAt, location: loc}
}

// Start schedules the job at the next occurrence of the configured time, then
// every 24 hours.
func (d *DailyTrigger) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if d.stop != nil {
		return nil
	}

	hour, minute, err := parseRunAt(d.runAt)
	if err != nil {
		return err
	}

	d.stop = make(chan struct{})
	stop := d.stop
	go func() {
		timer := time.NewTimer(time.Until(nextRun(time.Now().In(d.location), hour, minute)))
		defer timer.Stop()
		for {
			select {
			case t := <-timer.C:
				job(t)
				timer.Reset(time.Until(nextRun(time.Now().In(d.location), hour, minute)))
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the trigger goroutine. Safe to call more than once; the stop
// channel stays closed so the goroutine always observes it.
func (d *DailyTrigger) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	d.stopOnce.Do(func() { close(d.stop) })
	return nil
}

func parseRunAt(value string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid daily run time %q: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("daily run time %q out of range", value)
	}
	return hour, minute, nil
}

func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
