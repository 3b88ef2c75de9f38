package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/i5heu/GoDeadlineBench/internal/consume"
	"github.com/i5heu/GoDeadlineBench/internal/deadline"
	"github.com/i5heu/GoDeadlineBench/internal/driver"
	"github.com/i5heu/GoDeadlineBench/internal/harness"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the bench CLI configuration. Flags override file values.
type Config struct {
	Clock    string        `yaml:"clock"`
	Window   time.Duration `yaml:"window"`
	// Capacity must be 1; any larger buffer lets the producer run ahead and
	// hides the timer cost the benchmark exists to measure.
	Capacity uint64 `yaml:"capacity"`
	Mode     string        `yaml:"mode"`
	// CPUs lists GOMAXPROCS settings; empty means the common values up to NumCPU.
	CPUs []int `yaml:"cpus,omitempty"`
	// Iterations is the number of sessions per GOMAXPROCS setting.
	Iterations int           `yaml:"iterations"`
	Samples    int           `yaml:"samples"`
	Warmup     time.Duration `yaml:"warmup"`
	Measure    time.Duration `yaml:"measure"`
	// Strategies is a regular expression on strategy names; empty selects all.
	Strategies string `yaml:"strategies,omitempty"`
	JSONFile   string `yaml:"json_file"`
	DBPath     string `yaml:"db,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Clock:      deadline.RuntimeName,
		Window:     consume.DefaultWindow,
		Capacity:   1,
		Mode:       harness.SetupExcluded.String(),
		Iterations: 1,
		Samples:    20,
		Warmup:     time.Second,
		Measure:    3 * time.Second,
		JSONFile:   "test-results.json",
	}
}

// Load reads a YAML file on top of Default and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every field that the harness would otherwise reject late.
func (c Config) Validate() error {
	if _, err := deadline.New(c.Clock); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := harness.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Capacity != 1 {
		return fmt.Errorf("%w: capacity must be 1, got %d", ErrInvalid, c.Capacity)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalid, c.Window)
	}
	if c.Iterations < 1 || c.Samples < 1 {
		return fmt.Errorf("%w: iterations and samples must be at least 1", ErrInvalid)
	}
	for _, n := range c.CPUs {
		if n < 1 {
			return fmt.Errorf("%w: cpu setting %d", ErrInvalid, n)
		}
	}
	if _, err := c.Filter(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Filter compiles Strategies. It returns nil when every strategy is selected.
func (c Config) Filter() (*regexp.Regexp, error) {
	if c.Strategies == "" {
		return nil, nil
	}
	return regexp.Compile(c.Strategies)
}

// HarnessOptions translates the configuration for harness.Run.
func (c Config) HarnessOptions() (harness.Options, error) {
	mode, err := harness.ParseMode(c.Mode)
	if err != nil {
		return harness.Options{}, err
	}
	return harness.Options{
		Mode: mode,
		Driver: driver.Config{
			Capacity:  c.Capacity,
			Window:    c.Window,
			ClockName: c.Clock,
		},
		Warmup:      c.Warmup,
		MeasureTime: c.Measure,
		Samples:     c.Samples,
	}, nil
}

// Marshal renders the configuration as YAML, e.g. to start a config file.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
