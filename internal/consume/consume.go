// Package consume holds the deadline-guarded consume loops under comparison.
//
// Every strategy drains rx until it is closed and returns the sum of what it
// received. The deadline-enforcing ones panic with *DeadlineExceeded when no
// value arrives within the window: under benchmark conditions that means the
// benchmark itself is broken, so it is not an error the caller can handle.
package consume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/deadline"
	"github.com/i5heu/GoDeadlineBench/internal/timer"
)

// DefaultWindow is the inactivity deadline used when Config.Window is zero.
const DefaultWindow = 10 * time.Second

// Config is shared by all strategies. Baseline ignores it.
type Config struct {
	Window time.Duration
	Clock  deadline.Clock
	Probe  *timer.Probe
}

func (c Config) window() time.Duration {
	if c.Window <= 0 {
		return DefaultWindow
	}
	return c.Window
}

func (c Config) after() time.Time {
	if c.Clock == nil {
		return time.Now().Add(c.window())
	}
	return c.Clock.After(c.window())
}

// DeadlineExceeded is the panic value raised when the deadline wins the race.
type DeadlineExceeded struct {
	Strategy string
	Window   time.Duration
	Received uint64 // values received before the deadline
	Sum      uint64
	// Elapsed is whether the armed deadline had passed when the fire was seen.
	Elapsed bool
}

func (e *DeadlineExceeded) Error() string {
	return fmt.Sprintf("%s: no value within %v after %d received", e.Strategy, e.Window, e.Received)
}

func (c Config) exceeded(strategy string, received, sum uint64, elapsed bool) {
	c.Probe.Fired()
	panic(&DeadlineExceeded{Strategy: strategy, Window: c.window(), Received: received, Sum: sum, Elapsed: elapsed})
}

// Baseline drains rx with no deadline at all.
func Baseline(_ Config, rx <-chan uint64) uint64 {
	var sum uint64
	for no := range rx {
		sum += no
	}
	return sum
}

// recvTimeout waits for the next value from rx for at most window, using a
// context deadline created for this one call.
func recvTimeout(rx <-chan uint64, window time.Duration) (v uint64, ok bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()
	select {
	case v, ok = <-rx:
		return v, ok, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

// Timeout wraps every receive in its own context deadline. It only works on
// the runtime clock, since context.WithTimeout reads time.Now itself.
func Timeout(cfg Config, rx <-chan uint64) uint64 {
	var sum, received uint64
	window := cfg.window()
	for {
		cfg.Probe.Alloc()
		no, ok, err := recvTimeout(rx, window)
		switch {
		case err != nil:
			cfg.exceeded(TimeoutName, received, sum, errors.Is(err, context.DeadlineExceeded))
		case !ok:
			return sum
		}
		sum += no
		received++
	}
}

// Sleep races each receive against a freshly created timer.
func Sleep(cfg Config, rx <-chan uint64) uint64 {
	var sum, received uint64
	for {
		d := cfg.after()
		t := timer.Fresh(d, cfg.Probe)
		select {
		case no, ok := <-rx:
			t.Stop()
			if !ok {
				return sum
			}
			sum += no
			received++
		case <-t.C:
			cfg.exceeded(SleepName, received, sum, !time.Now().Before(d))
		}
	}
}

// ReusedSleep races each receive against one timer that lives in this frame
// and is re-armed after every value.
func ReusedSleep(cfg Config, rx <-chan uint64) uint64 {
	var sum, received uint64
	var sleep timer.Sleep
	sleep.Init(cfg.after(), cfg.Probe)
	defer sleep.Stop()

	for {
		select {
		case no, ok := <-rx:
			if !ok {
				return sum
			}
			sum += no
			received++
			sleep.Reset(cfg.after())
		case <-sleep.C():
			cfg.exceeded(ReusedSleepName, received, sum, sleep.Elapsed())
		}
	}
}

// ReusedBoxedSleep is ReusedSleep with the timer behind a heap allocation.
func ReusedBoxedSleep(cfg Config, rx <-chan uint64) uint64 {
	var sum, received uint64
	sleep := timer.NewSleep(cfg.after(), cfg.Probe)
	defer sleep.Stop()

	for {
		select {
		case no, ok := <-rx:
			if !ok {
				return sum
			}
			sum += no
			received++
			sleep.Reset(cfg.after())
		case <-sleep.C():
			cfg.exceeded(ReusedBoxedSleepName, received, sum, sleep.Elapsed())
		}
	}
}
