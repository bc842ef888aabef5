package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"btp/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string
	ConfigFile  string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string
	// ResultsDSN enables the MySQL run history store when set
	ResultsDSN string

	// Debug settings
	LaunchFile string

	// Discovery settings
	Processors int

	// Logging settings
	LogLevel string
	LogFile  string

	// Binaries are the configured test executables
	Binaries []BinaryConfig

	// Command flags
	Flags Flags
}

// BinaryConfig is the configuration record of one test executable.
type BinaryConfig struct {
	ID                 string          `mapstructure:"id"`
	Path               string          `mapstructure:"path"`
	Cwd                string          `mapstructure:"cwd"`
	DebugLaunchProfile string          `mapstructure:"debugLaunchProfile"`
	EnvFile            string          `mapstructure:"envFile"`
	Env                []domain.EnvVar `mapstructure:"env"`
	SourcePrefix       string          `mapstructure:"sourcePrefix"`
}

// Flags holds command-line flags
type Flags struct {
	Processors  int
	Exclude     []string
	Output      string
	OpenViewer  bool
	MetricsAddr string
}

// New creates a new Config with defaults
func New() *Config {
	return &Config{
		ProjectPath:    DefaultProjectPath,
		ConfigFile:     DefaultConfigFile,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		LaunchFile:     DefaultLaunchFile,
		Processors:     DefaultProcessors,
	}
}

// Load reads the config file into cfg. Settings can be overridden with
// BTP_-prefixed environment variables.
func (c *Config) Load() error {
	v := viper.New()
	v.SetConfigFile(c.GetConfigPath())
	v.SetEnvPrefix("BTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("processors", c.Processors)
	v.SetDefault("results.file", c.OutputJSONFile)
	v.SetDefault("results.dir", c.OutputJSONDir)
	v.SetDefault("results.dsn", c.ResultsDSN)
	v.SetDefault("launch_file", c.LaunchFile)
	v.SetDefault("log.level", c.LogLevel)
	v.SetDefault("log.file", c.LogFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", c.GetConfigPath(), err)
	}

	c.Processors = v.GetInt("processors")
	c.OutputJSONFile = v.GetString("results.file")
	c.OutputJSONDir = v.GetString("results.dir")
	c.ResultsDSN = v.GetString("results.dsn")
	c.LaunchFile = v.GetString("launch_file")
	if c.LogLevel == "" {
		c.LogLevel = v.GetString("log.level")
	}
	if c.LogFile == "" {
		c.LogFile = v.GetString("log.file")
	}
	if err := v.UnmarshalKey("binaries", &c.Binaries); err != nil {
		return fmt.Errorf("parse binaries in %s: %w", c.GetConfigPath(), err)
	}
	if c.Flags.Processors > 0 {
		c.Processors = c.Flags.Processors
	}
	return c.Validate()
}

// Validate checks the binary records.
func (c *Config) Validate() error {
	if len(c.Binaries) == 0 {
		return errors.New("no binaries configured")
	}
	for i, b := range c.Binaries {
		if strings.TrimSpace(b.Path) == "" {
			return fmt.Errorf("binaries[%d]: path is required", i)
		}
		if strings.Contains(b.ID, "/") || b.ID == domain.AllTargetsID {
			return fmt.Errorf("binaries[%d]: invalid id %q", i, b.ID)
		}
	}
	return nil
}

// GetConfigPath returns the config file path, relative paths resolved under the project.
func (c *Config) GetConfigPath() string {
	if filepath.IsAbs(c.ConfigFile) {
		return c.ConfigFile
	}
	return filepath.Join(c.ProjectPath, c.ConfigFile)
}

// GetOutputPath returns the full path to the output JSON file.
// Resolves to an absolute path so every command reads and writes the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetLaunchPath returns the debug launch profile file path.
func (c *Config) GetLaunchPath() string {
	return c.resolve(c.expand(c.LaunchFile))
}

// projectRoot returns the absolute project path.
func (c *Config) projectRoot() string {
	if abs, err := filepath.Abs(c.ProjectPath); err == nil {
		return abs
	}
	return c.ProjectPath
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.projectRoot(), p)
}
