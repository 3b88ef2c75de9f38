package harness

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"runtime"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/consume"
	"github.com/i5heu/GoDeadlineBench/internal/deadline"
	"github.com/i5heu/GoDeadlineBench/internal/driver"
)

// ErrNoStrategies is returned by Run when the filter leaves nothing to measure.
var ErrNoStrategies = errors.New("no strategy selected")

// Mode decides whether runtime construction is part of the timed region.
type Mode int

const (
	SetupExcluded Mode = iota
	SetupIncluded
)

func (m Mode) String() string {
	if m == SetupIncluded {
		return "setup-included"
	}
	return "setup-excluded"
}

// ParseMode is the inverse of Mode.String. The empty string is SetupExcluded.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "setup-excluded":
		return SetupExcluded, nil
	case "setup-included":
		return SetupIncluded, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Options configure a measurement.
type Options struct {
	Mode   Mode
	Driver driver.Config
	// Warmup is spent running unrecorded trials of doubling size.
	Warmup time.Duration
	// MeasureTime is split evenly across Samples recorded trials.
	MeasureTime time.Duration
	Samples     int
}

func (o Options) withDefaults() Options {
	if o.Warmup <= 0 {
		o.Warmup = time.Second
	}
	if o.MeasureTime <= 0 {
		o.MeasureTime = 3 * time.Second
	}
	if o.Samples <= 0 {
		o.Samples = 20
	}
	return o
}

// Sample is one recorded trial.
type Sample struct {
	Iters   uint64        `json:"iters"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// NsPerElement normalises the trial to one element per iteration.
func (s Sample) NsPerElement() float64 {
	if s.Iters == 0 {
		return 0
	}
	return float64(s.Elapsed.Nanoseconds()) / float64(s.Iters)
}

// Result is the outcome of measuring one strategy.
type Result struct {
	Strategy     string
	Clock        string
	Mode         Mode
	Samples      []Sample
	NsPerElement Summary
	// Throughput is elements per second over all recorded samples.
	Throughput float64
}

// IterCustom times one trial of iters elements.
func IterCustom(s consume.Strategy, iters uint64, opts Options) time.Duration {
	if opts.Mode == SetupIncluded {
		start := time.Now()
		driver.MustRuntime(opts.Driver).Run(s, iters)
		return time.Since(start)
	}
	rt := driver.MustRuntime(opts.Driver)
	start := time.Now()
	rt.Run(s, iters)
	return time.Since(start)
}

// Measure warms up, picks an iteration count and records opts.Samples trials.
// onSample, if not nil, is called after every recorded trial.
func Measure(s consume.Strategy, opts Options, onSample func(Sample)) Result {
	opts = opts.withDefaults()

	// Warm-up: nothing here is recorded, it only estimates the cost per element.
	var spent time.Duration
	var done uint64
	for iters := uint64(1); spent < opts.Warmup; iters *= 2 {
		spent += IterCustom(s, iters, opts)
		done += iters
	}
	perIter := float64(spent) / float64(done)
	target := float64(opts.MeasureTime) / float64(opts.Samples)
	iters := uint64(math.Ceil(target / perIter))
	if iters < 1 {
		iters = 1
	}

	runtime.GC()
	res := Result{Strategy: s.Name, Mode: opts.Mode, Samples: make([]Sample, 0, opts.Samples)}
	perElement := make([]float64, 0, opts.Samples)
	var total time.Duration
	var elements uint64
	for i := 0; i < opts.Samples; i++ {
		sample := Sample{Iters: iters, Elapsed: IterCustom(s, iters, opts)}
		res.Samples = append(res.Samples, sample)
		perElement = append(perElement, sample.NsPerElement())
		total += sample.Elapsed
		elements += iters
		if onSample != nil {
			onSample(sample)
		}
	}
	res.NsPerElement = Summarize(perElement)
	if total > 0 {
		res.Throughput = float64(elements) / total.Seconds()
	}
	return res
}

// Select returns the strategies whose name matches filter (nil matches all)
// and that can run on clock.
func Select(strats []consume.Strategy, filter *regexp.Regexp, clock deadline.Clock) []consume.Strategy {
	var out []consume.Strategy
	for _, s := range strats {
		if filter != nil && !filter.MatchString(s.Name) {
			continue
		}
		if !s.Supports(clock) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Run measures every selected strategy in order. Before any timing it warms
// up the external source behind the clock, if there is one. Every trial
// still builds its own clock and captures its own origin from that source.
func Run(strats []consume.Strategy, filter *regexp.Regexp, opts Options, onSample func(strategy string, s Sample)) ([]Result, error) {
	rt, err := driver.NewRuntime(opts.Driver)
	if err != nil {
		return nil, err
	}
	clock := rt.Clock()
	selected := Select(strats, filter, clock)
	if len(selected) == 0 {
		return nil, ErrNoStrategies
	}
	if ext, ok := clock.(*deadline.External); ok {
		deadline.CalibrateSource(ext.Source())
	}

	results := make([]Result, 0, len(selected))
	for _, s := range selected {
		var cb func(Sample)
		if onSample != nil {
			name := s.Name
			cb = func(sample Sample) { onSample(name, sample) }
		}
		res := Measure(s, opts, cb)
		res.Clock = clock.Name()
		results = append(results, res)
	}
	return results, nil
}
