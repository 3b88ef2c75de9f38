package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/consume"
	"github.com/i5heu/GoDeadlineBench/internal/deadline"
	"github.com/i5heu/GoDeadlineBench/internal/harness"
	"github.com/i5heu/GoDeadlineBench/internal/report"
	"github.com/i5heu/GoDeadlineBench/internal/resultstore"
	"github.com/i5heu/GoDeadlineBench/pkg/config"
	"github.com/schollz/progressbar/v3"
)

// commonCPUs are the GOMAXPROCS settings tried when none are configured.
var commonCPUs = []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}

// cpuSettings picks the GOMAXPROCS values to test. cpuMax wins over the
// configured list; neither may exceed the real CPU count.
func cpuSettings(cpuMax int, configured []int, trueCPU int) []int {
	if cpuMax > 0 {
		return []int{min(cpuMax, trueCPU)}
	}
	var out []int
	candidates := configured
	if len(candidates) == 0 {
		candidates = commonCPUs
	}
	for _, v := range candidates {
		if v <= trueCPU {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = []int{trueCPU}
	}
	return out
}

// outputMarkdownTable prints the last session stored in jsonFile.
func outputMarkdownTable(w io.Writer, jsonFile string) error {
	sessions, err := report.LoadSessions(jsonFile)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions found in %s", jsonFile)
	}
	return report.WriteMarkdownTable(w, sessions[len(sessions)-1])
}

// runSessions measures every selected strategy cfg.Iterations times for each
// GOMAXPROCS setting and returns one report per setting.
func runSessions(cfg config.Config, cpus []int, out io.Writer, bar *progressbar.ProgressBar) ([]report.FullReport, error) {
	opts, err := cfg.HarnessOptions()
	if err != nil {
		return nil, err
	}
	filter, err := cfg.Filter()
	if err != nil {
		return nil, err
	}

	trueCpuCount := runtime.NumCPU()
	previous := runtime.GOMAXPROCS(0)
	defer runtime.GOMAXPROCS(previous)

	var onSample func(string, harness.Sample)
	if bar != nil {
		onSample = func(string, harness.Sample) { bar.Add(1) }
	}

	var allSessions []report.FullReport
	for _, procs := range cpus {
		runtime.GOMAXPROCS(procs)
		sysInfo := report.GatherSystemInfo()
		sysInfo.NumCPU = procs
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = procs

		fmt.Fprintf(out, "\n=============================\n")
		fmt.Fprintf(out, "GOMAXPROCS = %d, clock = %s, window = %v\n", procs, cfg.Clock, cfg.Window)
		fmt.Fprintf(out, "=============================\n")

		var results []report.BenchmarkResult
		for iteration := 1; iteration <= cfg.Iterations; iteration++ {
			fmt.Fprintf(out, "    iteration %d/%d\n", iteration, cfg.Iterations)
			measured, err := harness.Run(consume.Strategies(), filter, opts, onSample)
			if err != nil {
				return nil, err
			}
			for _, r := range measured {
				br := report.FromResult(r, cfg.Window, procs)
				if bar != nil {
					fmt.Fprintf(out, "\r")
				}
				fmt.Fprintf(out, "    %s => median=%.1f ns/elem [%.1f .. %.1f], throughput=%.0f elems/s, iters=%d\n",
					br.Strategy, br.NsPerElem.Median, br.NsPerElem.Min5, br.NsPerElem.Max5, br.Throughput, br.Iterations)
				results = append(results, br)
			}
		}

		allSessions = append(allSessions, report.FullReport{
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}
	return allSessions, nil
}

// totalSamples is the number of progress steps runSessions will report.
func totalSamples(cfg config.Config, cpus []int) (int, error) {
	clock, err := deadline.New(cfg.Clock)
	if err != nil {
		return 0, err
	}
	filter, err := cfg.Filter()
	if err != nil {
		return 0, err
	}
	selected := harness.Select(consume.Strategies(), filter, clock)
	return len(cpus) * cfg.Iterations * len(selected) * cfg.Samples, nil
}

// storeSessions saves sessions to the sqlite database at path. The store is
// closed on every path, since callers exit right after an error.
func storeSessions(ctx context.Context, path string, sessions []report.FullReport) error {
	store, err := resultstore.Open(path)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if _, err := store.Save(ctx, s); err != nil {
			store.Close()
			return err
		}
	}
	return store.Close()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// Flags.
	configPath := flag.String("config", "", "YAML config file; flags given on the command line override it")
	testIterations := flag.Int("iter", 1, "Number of sessions per GOMAXPROCS setting")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test the configured or common values up to runtime.NumCPU()")
	clockFlag := flag.String("clock", deadline.RuntimeName, "Deadline clock: runtime or raw")
	windowFlag := flag.Duration("window", consume.DefaultWindow, "Inactivity deadline window")
	modeFlag := flag.String("mode", harness.SetupExcluded.String(), "setup-excluded or setup-included")
	samplesFlag := flag.Int("samples", 20, "Recorded trials per strategy")
	measureFlag := flag.Duration("measure", 3*time.Second, "Measurement time per strategy")
	warmupFlag := flag.Duration("warmup", time.Second, "Warm-up time per strategy")
	runFlag := flag.String("run", "", "Regular expression selecting strategies by name")
	jsonExport := flag.Bool("json", false, "Export results as JSON to the json file")
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file for export and markdown table")
	dbFlag := flag.String("db", "", "Also store sessions in this sqlite database")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from the json file and exit")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration as YAML and exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fail("Error loading config: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "iter":
			cfg.Iterations = *testIterations
		case "clock":
			cfg.Clock = *clockFlag
		case "window":
			cfg.Window = *windowFlag
		case "mode":
			cfg.Mode = *modeFlag
		case "samples":
			cfg.Samples = *samplesFlag
		case "measure":
			cfg.Measure = *measureFlag
		case "warmup":
			cfg.Warmup = *warmupFlag
		case "run":
			cfg.Strategies = *runFlag
		case "jsonfile":
			cfg.JSONFile = *jsonFile
		case "db":
			cfg.DBPath = *dbFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		fail("Error: %v", err)
	}

	if *printConfig {
		data, err := cfg.Marshal()
		if err != nil {
			fail("Error marshalling config: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	if *markdownTable {
		if err := outputMarkdownTable(os.Stdout, cfg.JSONFile); err != nil {
			fail("Error: %v", err)
		}
		return
	}

	cpus := cpuSettings(*cpuMaxFlag, cfg.CPUs, runtime.NumCPU())

	var bar *progressbar.ProgressBar
	if *progressFlag {
		total, err := totalSamples(cfg, cpus)
		if err != nil {
			fail("Error: %v", err)
		}
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Progress:"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetWidth(20),
		)
	}

	allSessions, err := runSessions(cfg, cpus, os.Stdout, bar)
	if err != nil {
		fail("Error: %v", err)
	}

	// After all tests, print a newline so the progress bar line is not overwritten.
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if *jsonExport {
		if err := report.AppendSessions(cfg.JSONFile, allSessions); err != nil {
			fail("Error writing JSON file: %v", err)
		}
		fmt.Printf("\nWrote results to %s\n", cfg.JSONFile)
	}

	if cfg.DBPath != "" {
		if err := storeSessions(context.Background(), cfg.DBPath, allSessions); err != nil {
			fail("Error storing sessions: %v", err)
		}
		fmt.Printf("Stored %d session(s) in %s\n", len(allSessions), cfg.DBPath)
	}
}
