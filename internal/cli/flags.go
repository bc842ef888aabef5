package cli

import (
	"time"

	"btp/internal/config"
)

// Flags holds command-line flags
type Flags struct {
	ConfigFile  string
	ProjectPath string
	LogLevel    string
	Processors  int
	Exclude     []string
	Output      string
	Verbose     bool
	Echo        bool
	OpenViewer  bool
	MetricsAddr string
	Debounce    time.Duration
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Processors:  f.Processors,
		Exclude:     f.Exclude,
		Output:      f.Output,
		OpenViewer:  f.OpenViewer,
		MetricsAddr: f.MetricsAddr,
	}
}

// Apply copies the global flags that override config file locations.
func (f *Flags) Apply(cfg *config.Config) {
	if f.ConfigFile != "" {
		cfg.ConfigFile = f.ConfigFile
	}
	if f.ProjectPath != "" {
		cfg.ProjectPath = f.ProjectPath
	}
	cfg.Flags = f.ToConfigFlags()
}
