package resultstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/i5heu/GoDeadlineBench/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer store.Close()

	first := report.FullReport{
		SessionTime: "2026-10-19T10:00:00Z",
		SystemInfo:  report.SystemInfo{NumCPU: 8, GOARCH: "amd64", CPUModel: "test cpu"},
		Benchmarks: []report.BenchmarkResult{
			{
				Strategy: "reused_sleep", Clock: "runtime", Mode: "setup-excluded", Window: "10s",
				GOMAXPROCS: 8, Iterations: 1 << 40, Samples: 20,
				NsPerElem:  report.Summary{Min5: 90, Median: 100, Max5: 120},
				Throughput: 1e7, Timestamp: 1, GoVersion: "go1.23.0",
			},
			{Strategy: "baseline", Clock: "runtime", GOMAXPROCS: 8},
		},
	}
	second := report.FullReport{SessionTime: "2026-10-19T11:00:00Z"}

	id1, err := store.Save(ctx, first)
	require.NoError(t, err)
	id2, err := store.Save(ctx, second)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first, sessions[0])
	assert.Equal(t, second.SessionTime, sessions[1].SessionTime)
	assert.Empty(t, sessions[1].Benchmarks)
}

func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Save(ctx, report.FullReport{SessionTime: "once"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "once", sessions[0].SessionTime)
}
