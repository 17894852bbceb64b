package gauntlet

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan is the YAML run-plan file consumed by the CLI driver. Values set on
// the command line take precedence over the plan.
type Plan struct {
	// Filters select the cases to run; each entry is a regex matched
	// against the bare case name and the "suite/name" form, with a "!"
	// prefix excluding matches.
	Filters []string `yaml:"filters"`

	// Parallelism bounds the number of cases in flight (0 = effectively
	// unbounded).
	Parallelism int `yaml:"parallelism"`

	// Serial forces sequential execution in registration order.
	Serial bool `yaml:"serial"`

	// RunInterval re-runs the suites periodically; zero means run once.
	RunInterval time.Duration `yaml:"run_interval"`

	// LogDir is the directory run logs are written under.
	LogDir string `yaml:"log_dir"`
}

// LoadPlan reads and validates a run plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan file %s: %w", path, err)
	}
	return &plan, nil
}

// Validate checks the plan for values the engine cannot honor.
func (p *Plan) Validate() error {
	if p.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", p.Parallelism)
	}
	if p.RunInterval < 0 {
		return fmt.Errorf("run_interval must not be negative, got %s", p.RunInterval)
	}
	return nil
}
