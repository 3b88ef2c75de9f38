package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/harness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
clock: raw
window: 250ms
mode: setup-included
cpus: [1, 2]
samples: 5
measure: 1s
strategies: ^reused
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "raw", cfg.Clock)
	assert.Equal(t, 250*time.Millisecond, cfg.Window)
	assert.Equal(t, []int{1, 2}, cfg.CPUs)
	assert.Equal(t, 5, cfg.Samples)
	// Unset keys keep their defaults.
	assert.Equal(t, uint64(1), cfg.Capacity)
	assert.Equal(t, time.Second, cfg.Warmup)
	assert.Equal(t, "test-results.json", cfg.JSONFile)

	re, err := cfg.Filter()
	require.NoError(t, err)
	assert.True(t, re.MatchString("reused_sleep"))
	assert.False(t, re.MatchString("sleep"))

	opts, err := cfg.HarnessOptions()
	require.NoError(t, err)
	assert.Equal(t, harness.SetupIncluded, opts.Mode)
	assert.Equal(t, "raw", opts.Driver.ClockName)
	assert.Equal(t, 250*time.Millisecond, opts.Driver.Window)
	assert.Equal(t, time.Second, opts.MeasureTime)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "colour: blue\n",
		"unknown clock": "clock: tsc\n",
		"bad mode":      "mode: always\n",
		"zero window":   "window: 0s\n",
		"bad cpu":       "cpus: [0]\n",
		"bad filter":    "strategies: \"(\"\n",
		"no samples":    "samples: 0\n",
		"capacity 64":   "capacity: 64\n",
		"capacity 0":    "capacity: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeConfig(t, "clock: tsc\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	cfg := Default()
	cfg.Capacity = 64
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.CPUs = []int{4}
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
