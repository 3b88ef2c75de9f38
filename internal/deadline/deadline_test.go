package deadline

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepSource advances by step on every reading.
type stepSource struct {
	now   atomic.Int64
	step  int64
	reads atomic.Int64
}

func (s *stepSource) Nanotime() int64 {
	s.reads.Add(1)
	return s.now.Add(s.step)
}

func TestRuntimeAfter(t *testing.T) {
	var c Runtime
	before := time.Now()
	d := c.After(10 * time.Second)
	after := time.Now()

	assert.True(t, c.Native())
	assert.Equal(t, RuntimeName, c.Name())
	assert.False(t, d.Before(before.Add(10*time.Second)))
	assert.False(t, d.After(after.Add(10*time.Second)))
}

func TestExternalOriginCapturedOnce(t *testing.T) {
	src := &stepSource{step: 1000}
	c := NewExternal(src)
	assert.Zero(t, src.reads.Load(), "origin must be captured lazily")

	first := c.Origin()
	second := c.Origin()
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), src.reads.Load())
	assert.Equal(t, int64(1000), first.External)
}

func TestExternalAfterTranslatesOffset(t *testing.T) {
	src := &stepSource{step: int64(time.Millisecond)}
	c := NewExternal(src)
	o := c.Origin()

	// Next reading is one step past the origin.
	d := c.After(5 * time.Second)
	assert.Equal(t, o.Runtime.Add(time.Millisecond+5*time.Second), d)
	assert.False(t, c.Native())
	assert.Equal(t, RawName, c.Name())
}

func TestExternalOriginIsPerClock(t *testing.T) {
	src := &stepSource{step: 1}
	a := NewExternal(src)
	b := NewExternal(src)

	assert.NotEqual(t, a.Origin().External, b.Origin().External)
}

func TestCalibrateReadsSourceOnly(t *testing.T) {
	src := &stepSource{step: 1}
	c := NewExternal(src)
	c.Calibrate()
	assert.Equal(t, int64(1), src.reads.Load())

	// The origin is still captured on first real use.
	assert.Equal(t, int64(2), c.Origin().External)
}

func TestRawMonotonicAdvances(t *testing.T) {
	var src RawMonotonic
	a := src.Nanotime()
	time.Sleep(time.Millisecond)
	b := src.Nanotime()
	assert.Greater(t, b, a)
}

func TestRawClockDeadlineTracksRuntime(t *testing.T) {
	c, err := New(RawName)
	require.NoError(t, err)

	d := c.After(time.Second)
	delta := time.Until(d)
	assert.InDelta(t, float64(time.Second), float64(delta), float64(50*time.Millisecond))
}

func TestNew(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, RuntimeName, c.Name())

	c, err = New(RawName)
	require.NoError(t, err)
	_, ok := c.(Calibrator)
	assert.True(t, ok)

	_, err = New("quartz")
	assert.ErrorIs(t, err, ErrUnknownClock)
}

// warmingSource records calibration separately from readings.
type warmingSource struct {
	stepSource
	calibrations int
}

func (s *warmingSource) Calibrate() { s.calibrations++ }

func TestCalibrateSourcePrefersOwnCalibrate(t *testing.T) {
	src := &warmingSource{stepSource: stepSource{step: 1}}
	c := NewExternal(src)
	assert.Same(t, src, c.Source())

	c.Calibrate()
	assert.Equal(t, 1, src.calibrations)
	assert.Zero(t, src.reads.Load())

	plain := &stepSource{step: 1}
	CalibrateSource(plain)
	assert.Equal(t, int64(1), plain.reads.Load())
}
