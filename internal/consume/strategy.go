package consume

import "github.com/i5heu/GoDeadlineBench/internal/deadline"

// Strategy names as they appear in reports and benchmark names.
const (
	BaselineName         = "baseline"
	TimeoutName          = "timeout"
	SleepName            = "sleep"
	ReusedSleepName      = "reused_sleep"
	ReusedBoxedSleepName = "reused_boxed_sleep"
)

// Func is a consume loop.
type Func func(cfg Config, rx <-chan uint64) uint64

// Strategy describes one consume loop and what it needs from the clock.
type Strategy struct {
	Name        string
	Description string
	// Deadline is false only for the control strategy.
	Deadline bool
	// NativeClockOnly strategies cannot take deadlines from an external clock.
	NativeClockOnly bool
	Run             Func
}

// Supports reports whether s can run with deadlines read from c.
func (s Strategy) Supports(c deadline.Clock) bool {
	return !s.NativeClockOnly || c == nil || c.Native()
}

// Strategies lists every strategy in report order.
func Strategies() []Strategy {
	return []Strategy{
		{
			Name:        BaselineName,
			Description: "Drains the channel without any deadline; the control.",
			Run:         Baseline,
		},
		{
			Name:            TimeoutName,
			Description:     "context.WithTimeout around every receive.",
			Deadline:        true,
			NativeClockOnly: true,
			Run:             Timeout,
		},
		{
			Name:        SleepName,
			Description: "select between receive and a new timer per wait.",
			Deadline:    true,
			Run:         Sleep,
		},
		{
			Name:        ReusedSleepName,
			Description: "select against one frame-local timer re-armed after each value.",
			Deadline:    true,
			Run:         ReusedSleep,
		},
		{
			Name:        ReusedBoxedSleepName,
			Description: "As reused_sleep, with the timer behind a heap allocation.",
			Deadline:    true,
			Run:         ReusedBoxedSleep,
		},
	}
}

// Lookup finds a strategy by name.
func Lookup(name string) (Strategy, bool) {
	for _, s := range Strategies() {
		if s.Name == name {
			return s, true
		}
	}
	return Strategy{}, false
}
