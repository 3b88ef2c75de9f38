//go:build !linux

package deadline

import "time"

var processStart = time.Now()

// RawMonotonic falls back to the runtime monotonic clock measured from
// process start on platforms without CLOCK_MONOTONIC_RAW.
type RawMonotonic struct{}

func (RawMonotonic) Nanotime() int64 { return int64(time.Since(processStart)) }

func (r RawMonotonic) Calibrate() { r.Nanotime() }
