package main

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/consume"
	"github.com/i5heu/GoDeadlineBench/internal/report"
	"github.com/i5heu/GoDeadlineBench/internal/resultstore"
	"github.com/i5heu/GoDeadlineBench/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickConfig() config.Config {
	cfg := config.Default()
	cfg.Samples = 2
	cfg.Warmup = 2 * time.Millisecond
	cfg.Measure = 10 * time.Millisecond
	return cfg
}

func TestCPUSettings(t *testing.T) {
	assert.Equal(t, []int{4}, cpuSettings(16, nil, 4))
	assert.Equal(t, []int{2}, cpuSettings(2, []int{1, 8}, 4))
	assert.Equal(t, []int{1, 2, 3, 4}, cpuSettings(0, nil, 4))
	assert.Equal(t, []int{1, 3}, cpuSettings(0, []int{1, 3, 64}, 4))
	assert.Equal(t, []int{1}, cpuSettings(0, []int{64}, 1))
}

func TestRunSessions(t *testing.T) {
	cfg := quickConfig()
	cfg.Strategies = "^(baseline|reused_sleep)$"

	var out bytes.Buffer
	sessions, err := runSessions(cfg, []int{1}, &out, nil)
	require.NoError(t, err)

	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, 1, s.SystemInfo.SimulatedCPUCount)
	assert.Equal(t, runtime.NumCPU(), s.SystemInfo.TrueCPU)
	require.Len(t, s.Benchmarks, 2)
	assert.Equal(t, consume.BaselineName, s.Benchmarks[0].Strategy)
	assert.Equal(t, consume.ReusedSleepName, s.Benchmarks[1].Strategy)
	for _, b := range s.Benchmarks {
		assert.Equal(t, 1, b.GOMAXPROCS)
		assert.Equal(t, 2, b.Samples)
		assert.Greater(t, b.Throughput, 0.0)
	}
	assert.Contains(t, out.String(), "GOMAXPROCS = 1")
	assert.Contains(t, out.String(), "reused_sleep => median=")
}

func TestRunSessionsRawClockSkipsTimeout(t *testing.T) {
	cfg := quickConfig()
	cfg.Clock = "raw"
	cfg.Strategies = "^(timeout|sleep)$"

	sessions, err := runSessions(cfg, []int{1}, &bytes.Buffer{}, nil)
	require.NoError(t, err)
	require.Len(t, sessions[0].Benchmarks, 1)
	assert.Equal(t, consume.SleepName, sessions[0].Benchmarks[0].Strategy)
	assert.Equal(t, "raw", sessions[0].Benchmarks[0].Clock)

	total, err := totalSamples(cfg, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2*1*1*2, total)
}

func TestStoreSessions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")
	sessions := []report.FullReport{
		{SessionTime: "first", Benchmarks: []report.BenchmarkResult{{Strategy: consume.SleepName}}},
		{SessionTime: "second"},
	}
	require.NoError(t, storeSessions(ctx, path, sessions))

	// The store was closed, so it can be reopened and read back.
	store, err := resultstore.Open(path)
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "second", stored[1].SessionTime)

	assert.Error(t, storeSessions(ctx, t.TempDir(), sessions), "a directory is not a database")
}

func TestOutputMarkdownTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	assert.Error(t, outputMarkdownTable(&bytes.Buffer{}, path))

	sessions := []report.FullReport{
		{SessionTime: "old", Benchmarks: []report.BenchmarkResult{{Strategy: consume.TimeoutName}}},
		{SessionTime: "new", Benchmarks: []report.BenchmarkResult{{Strategy: consume.ReusedBoxedSleepName}}},
	}
	require.NoError(t, report.AppendSessions(path, sessions))

	var buf bytes.Buffer
	require.NoError(t, outputMarkdownTable(&buf, path))
	assert.True(t, strings.Contains(buf.String(), consume.ReusedBoxedSleepName))
	assert.False(t, strings.Contains(buf.String(), "| "+consume.TimeoutName+" "))
}
