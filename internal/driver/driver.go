package driver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/consume"
	"github.com/i5heu/GoDeadlineBench/internal/deadline"
	"github.com/i5heu/GoDeadlineBench/internal/queue"
	"github.com/i5heu/GoDeadlineBench/internal/timer"
	"github.com/i5heu/GoDeadlineBench/pkg/buffered"
)

// ErrClockUnsupported is raised when a strategy cannot use the configured clock.
var ErrClockUnsupported = errors.New("strategy does not support clock")

// Config describes one trial. The zero value is a capacity-1 pipe with the
// default window on the runtime clock.
type Config struct {
	// Capacity of the pipe. Keep it at 1: a larger buffer lets the producer
	// run ahead, and the deadline strategies then rarely wait on a timer.
	Capacity uint64
	Window   time.Duration
	// ClockName selects a clock via deadline.New when Clock is nil.
	ClockName string
	Clock     deadline.Clock
	// ProducerDelay is slept before every send.
	ProducerDelay time.Duration
	// Probe receives the consumer's timer counters.
	Probe *timer.Probe
}

// Runtime is everything a trial sets up before values start flowing.
type Runtime struct {
	cfg   Config
	clock deadline.Clock
}

// NewRuntime applies defaults and builds the clock. A raw clock built here
// captures its own origin on first use, so runtimes never share one.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = consume.DefaultWindow
	}
	clock := cfg.Clock
	if clock == nil {
		var err error
		if clock, err = deadline.New(cfg.ClockName); err != nil {
			return nil, err
		}
	}
	return &Runtime{cfg: cfg, clock: clock}, nil
}

// MustRuntime is NewRuntime for configurations known to be valid.
func MustRuntime(cfg Config) *Runtime {
	rt, err := NewRuntime(cfg)
	if err != nil {
		panic(err)
	}
	return rt
}

// Clock returns the clock deadlines are read from.
func (rt *Runtime) Clock() deadline.Clock { return rt.clock }

// SumMismatch is the panic value raised when the consumer's sum is wrong,
// meaning a value was lost, duplicated or the range was miscounted.
type SumMismatch struct {
	Strategy string
	N        uint64
	Expected uint64
	Actual   uint64
}

func (e *SumMismatch) Error() string {
	return fmt.Sprintf("%s: sum of %d values is %d, expected %d", e.Strategy, e.N, e.Actual, e.Expected)
}

// ExpectedSum returns 0+1+...+(n-1).
func ExpectedSum(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return n / 2 * (n - 1)
	}
	return (n - 1) / 2 * n
}

type outcome struct {
	sum   uint64
	fault any
}

// Run pushes 0..n-1 through a fresh pipe from a producer goroutine into a
// consumer goroutine running s, waits for both and checks the sum.
//
// Run never returns an error: a consumer panic is re-raised on the calling
// goroutine with the same value, and a wrong sum panics with *SumMismatch.
func (rt *Runtime) Run(s consume.Strategy, n uint64) uint64 {
	if !s.Supports(rt.clock) {
		panic(fmt.Errorf("%s on %s clock: %w", s.Name, rt.clock.Name(), ErrClockUnsupported))
	}

	var q queue.Pipe[uint64] = buffered.New[uint64](rt.cfg.Capacity)
	abort := make(chan struct{})
	delay := rt.cfg.ProducerDelay

	var prodWg sync.WaitGroup
	prodWg.Add(1)
	go func() {
		defer prodWg.Done()
		for i := uint64(0); i < n; i++ {
			if delay > 0 {
				time.Sleep(delay)
				select {
				case <-abort:
					return
				default:
				}
			}
			if !q.Send(i, abort) {
				return
			}
		}
		q.Close()
	}()

	cfg := consume.Config{Window: rt.cfg.Window, Clock: rt.clock, Probe: rt.cfg.Probe}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.fault = r
			}
			done <- out
		}()
		out.sum = s.Run(cfg, q.Recv())
	}()

	// The consumer is gone either way; a producer still blocked on Send
	// would otherwise never return.
	out := <-done
	close(abort)
	prodWg.Wait()
	if out.fault != nil {
		panic(out.fault)
	}

	if expected := ExpectedSum(n); out.sum != expected {
		panic(&SumMismatch{Strategy: s.Name, N: n, Expected: expected, Actual: out.sum})
	}
	return out.sum
}
