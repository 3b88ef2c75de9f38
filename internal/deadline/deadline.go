package deadline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownClock is returned by New for a clock name it does not recognise.
var ErrUnknownClock = errors.New("unknown clock")

// Clock names accepted by New.
const (
	RuntimeName = "runtime"
	RawName     = "raw"
)

// Clock produces deadlines on the Go runtime's timeline, so whatever the
// source of "now" is, the returned instant can be handed to the runtime
// timer heap.
type Clock interface {
	// After returns the instant window from now.
	After(window time.Duration) time.Time

	// Native reports whether "now" is read from the runtime clock itself.
	Native() bool

	// Name is the short name used in reports and flags.
	Name() string
}

// Runtime is the default clock: time.Now with its monotonic reading.
type Runtime struct{}

func (Runtime) After(window time.Duration) time.Time { return time.Now().Add(window) }
func (Runtime) Native() bool                         { return true }
func (Runtime) Name() string                         { return RuntimeName }

// Source is an external monotonic high-resolution clock.
// Nanotime returns nanoseconds since an arbitrary but fixed start point.
type Source interface {
	Nanotime() int64
}

// Origin pairs one runtime reading with one external reading taken together.
// Every later external reading is translated by its offset from External.
type Origin struct {
	Runtime  time.Time
	External int64
}

// External reads "now" from a Source and translates it into the runtime
// timeline through an Origin captured on first use. Each External owns its
// own origin: construct one per execution context (one per trial) rather
// than sharing a process-wide value.
type External struct {
	src    Source
	origin func() Origin
}

// NewExternal returns a clock backed by src. The origin pair is not read
// until the first call to After or Origin.
func NewExternal(src Source) *External {
	c := &External{src: src}
	c.origin = sync.OnceValue(func() Origin {
		return Origin{Runtime: time.Now(), External: src.Nanotime()}
	})
	return c
}

// After translates src.Nanotime()+window into the runtime timeline.
func (c *External) After(window time.Duration) time.Time {
	o := c.origin()
	return o.Runtime.Add(time.Duration(c.src.Nanotime()-o.External) + window)
}

// Origin returns the origin pair, capturing it if this is the first use.
func (c *External) Origin() Origin { return c.origin() }

// Calibrate warms up the source so lazy initialisation inside it does not
// land in a timed region. Nothing depends on it having been called.
func (c *External) Calibrate() { CalibrateSource(c.src) }

// Source returns the external clock the readings come from.
func (c *External) Source() Source { return c.src }

// CalibrateSource warms up src: through its own Calibrate if it has one,
// otherwise with a single reading.
func CalibrateSource(src Source) {
	if c, ok := src.(Calibrator); ok {
		c.Calibrate()
		return
	}
	src.Nanotime()
}

func (c *External) Native() bool { return false }
func (c *External) Name() string { return RawName }

// Calibrator is implemented by clocks that offer a warm-up read.
type Calibrator interface {
	Calibrate()
}

// New builds a clock by name. Every call to New(RawName) returns a clock with
// a fresh, not yet captured origin.
func New(name string) (Clock, error) {
	switch name {
	case "", RuntimeName:
		return Runtime{}, nil
	case RawName:
		return NewExternal(RawMonotonic{}), nil
	default:
		return nil, fmt.Errorf("clock %q: %w", name, ErrUnknownClock)
	}
}
