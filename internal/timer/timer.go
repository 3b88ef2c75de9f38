package timer

import "time"

// Probe counts what a consumer loop does with the runtime timer heap.
// It is owned by a single consumer goroutine and must only be read after
// that goroutine has been joined. A nil *Probe records nothing.
type Probe struct {
	Allocs uint64 // timer slots created
	Rearms uint64 // in-place re-registrations of an existing slot
	Fires  uint64 // deadlines that elapsed before a value arrived
}

// Alloc records a timer slot created outside this package.
func (p *Probe) Alloc() {
	if p != nil {
		p.Allocs++
	}
}

func (p *Probe) rearm() {
	if p != nil {
		p.Rearms++
	}
}

// Fired records a deadline that won the race.
func (p *Probe) Fired() {
	if p != nil {
		p.Fires++
	}
}

// Fresh returns an ephemeral timer for a single wait that fires at deadline.
// The caller stops and drops it once the wait resolves.
func Fresh(deadline time.Time, p *Probe) *time.Timer {
	p.Alloc()
	return time.NewTimer(time.Until(deadline))
}

// Sleep is a sleep-until timer that is armed once and then re-armed in place.
// It owns exactly one runtime timer for its whole life. A Sleep must not be
// copied after Init.
type Sleep struct {
	t        *time.Timer
	deadline time.Time
	probe    *Probe
}

// Init allocates the timer slot and arms it for deadline. Use it on a Sleep
// declared in the caller's frame.
func (s *Sleep) Init(deadline time.Time, p *Probe) {
	s.probe = p
	s.deadline = deadline
	s.t = time.NewTimer(time.Until(deadline))
	p.Alloc()
}

// NewSleep is Init on a Sleep placed behind its own heap allocation.
//
//go:noinline
func NewSleep(deadline time.Time, p *Probe) *Sleep {
	s := new(Sleep)
	s.Init(deadline, p)
	return s
}

// Reset re-arms the existing slot for deadline. Since Go 1.23 a Reset also
// guarantees that no value from the previous deadline is received from C.
func (s *Sleep) Reset(deadline time.Time) {
	s.deadline = deadline
	s.t.Reset(time.Until(deadline))
	s.probe.rearm()
}

// C is the channel that receives once the current deadline elapses.
func (s *Sleep) C() <-chan time.Time { return s.t.C }

// Deadline is the instant the timer is currently armed for.
func (s *Sleep) Deadline() time.Time { return s.deadline }

// Elapsed reports whether the current deadline has passed.
func (s *Sleep) Elapsed() bool { return !time.Now().Before(s.deadline) }

// Stop disarms the slot. It reports whether the timer was still pending.
func (s *Sleep) Stop() bool { return s.t.Stop() }
