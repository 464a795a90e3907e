package orchestrator

import (
	"fmt"
	"strings"

	"github.com/koustreak/dbmeta/internal/filter"
)

// OutputMode selects the shape of a run's output.
type OutputMode int

const (
	ModeBundle OutputMode = iota
	ModePerDatabase
)

func (m OutputMode) String() string {
	if m == ModePerDatabase {
		return "per-database"
	}
	return "bundle"
}

// ParseOutputMode accepts "bundle"/"single" and "per-database"/"per-db".
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bundle", "single", "single-bundle":
		return ModeBundle, nil
	case "per-database", "per-db", "one-per-database":
		return ModePerDatabase, nil
	default:
		return ModeBundle, fmt.Errorf("unknown output mode %q (use bundle or per-database)", s)
	}
}

// Config is the input of one run. It is not modified once CollectAll starts.
type Config struct {
	MaxConcurrency  int
	IncludeSystem   bool
	Include         []string
	Exclude         []string
	ContinueOnError bool
	Mode            OutputMode
}

// DefaultConfig returns a config collecting every non-system database,
// four at a time, tolerating database failures.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  4,
		ContinueOnError: true,
		Mode:            ModeBundle,
	}
}

// Validate rejects configurations that must stop the run before any
// database is touched.
func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.Mode != ModeBundle && c.Mode != ModePerDatabase {
		return fmt.Errorf("unknown output mode %d", c.Mode)
	}
	if err := filter.Validate(c.Include); err != nil {
		return fmt.Errorf("include patterns: %w", err)
	}
	if err := filter.Validate(c.Exclude); err != nil {
		return fmt.Errorf("exclude patterns: %w", err)
	}
	return nil
}
