//go:build linux

package deadline

import "golang.org/x/sys/unix"

// RawMonotonic reads CLOCK_MONOTONIC_RAW, which is not slewed by NTP.
type RawMonotonic struct{}

func (RawMonotonic) Nanotime() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		panic("deadline: clock_gettime(CLOCK_MONOTONIC_RAW): " + err.Error())
	}
	return ts.Nano()
}

// Calibrate takes one reading; the first clock_gettime call faults in the vDSO page.
func (r RawMonotonic) Calibrate() { r.Nanotime() }
