package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/consume"
	"github.com/i5heu/GoDeadlineBench/internal/harness"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// BenchmarkResult holds results for one strategy in one session.
type BenchmarkResult struct {
	Strategy   string  `json:"strategy"`
	Clock      string  `json:"clock"`
	Mode       string  `json:"mode"`
	Window     string  `json:"window"` // e.g. "10s"
	GOMAXPROCS int     `json:"gomaxprocs"`
	Iterations uint64  `json:"iterations"` // elements per sample
	Samples    int     `json:"samples"`
	NsPerElem  Summary `json:"ns_per_element"`
	Throughput float64 `json:"throughput_elems_sec"`
	Timestamp  int64   `json:"timestamp"`
	GoVersion  string  `json:"go_version"`
}

// Summary is harness.Summary as stored in reports.
type Summary = harness.Summary

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// FromResult converts a harness result measured with GOMAXPROCS=procs.
func FromResult(r harness.Result, window time.Duration, procs int) BenchmarkResult {
	var iters uint64
	if len(r.Samples) > 0 {
		iters = r.Samples[0].Iters
	}
	return BenchmarkResult{
		Strategy:   r.Strategy,
		Clock:      r.Clock,
		Mode:       r.Mode.String(),
		Window:     window.String(),
		GOMAXPROCS: procs,
		Iterations: iters,
		Samples:    len(r.Samples),
		NsPerElem:  r.NsPerElement,
		Throughput: r.Throughput,
		Timestamp:  time.Now().Unix(),
		GoVersion:  runtime.Version(),
	}
}

// GatherSystemInfo collects basic CPU and memory details.
func GatherSystemInfo() SystemInfo {
	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return SystemInfo{
		NumCPU:      runtime.NumCPU(),
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      runtime.GOARCH,
		TotalMemory: totalMemory,
	}
}

// LoadSessions reads a sessions file. A missing file is an empty history.
func LoadSessions(path string) ([]FullReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return sessions, nil
}

// AppendSessions adds sessions to the end of the file at path.
func AppendSessions(path string, sessions []FullReport) error {
	previous, err := LoadSessions(path)
	if err != nil {
		return err
	}
	updated := append(previous, sessions...)
	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteMarkdownTable writes the session's results as a markdown table,
// fastest median first.
func WriteMarkdownTable(w io.Writer, session FullReport) error {
	rows := append([]BenchmarkResult(nil), session.Benchmarks...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].NsPerElem.Median < rows[j].NsPerElem.Median
	})

	fmt.Fprintln(w, "## Last Session Benchmark Summary")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Strategy           | Clock   | GOMAXPROCS | Median (ns/elem) | 5% min | 5% max | Throughput (elems/sec) | Description |")
	fmt.Fprintln(w, "|--------------------|---------|------------|------------------|--------|--------|------------------------|-------------|")
	for _, r := range rows {
		var desc string
		if s, ok := consume.Lookup(r.Strategy); ok {
			desc = s.Description
		}
		_, err := fmt.Fprintf(w, "| %-18s | %-7s | %10d | %16.1f | %6.1f | %6.1f | %22.0f | %s |\n",
			r.Strategy, r.Clock, r.GOMAXPROCS, r.NsPerElem.Median, r.NsPerElem.Min5, r.NsPerElem.Max5, r.Throughput, desc)
		if err != nil {
			return err
		}
	}
	return nil
}
