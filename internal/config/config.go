// Package config loads CLI settings from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/output"
	"github.com/complianceguard/guard-cli/internal/utils"
)

// EnvPrefix prefixes environment overrides, e.g. COMPLIANCEGUARD_SCANNING_TIMEOUT
const EnvPrefix = "COMPLIANCEGUARD"

// ErrInvalidSetting is wrapped by every non-scoring validation failure
var ErrInvalidSetting = errors.New("invalid setting")

// Config is the full set of settings for a scan. It is built once by Load
// and passed to whatever needs it.
type Config struct {
	Scanning  ScanningConfig  `mapstructure:"scanning"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Reporting ReportingConfig `mapstructure:"reporting"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type ScanningConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	Categories  []string      `mapstructure:"categories"`
	Frameworks  []string      `mapstructure:"frameworks"`
}

type ScoringConfig struct {
	// Weights is keyed by severity name (critical, high, medium, low).
	Weights          map[string]float64 `mapstructure:"weights"`
	PassingThreshold *float64           `mapstructure:"passing_threshold"`
}

type ReportingConfig struct {
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DashboardConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultWeights is the scoring table used when no config declares one
var DefaultWeights = map[string]float64{
	"critical": 4,
	"high":     3,
	"medium":   2,
	"low":      1,
}

// DefaultPassingThreshold accompanies DefaultWeights
const DefaultPassingThreshold = 80.0

// Load reads configuration from path, or from the first file found on the
// search path when path is empty.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load over an arbitrary filesystem
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfig(fs)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// A scoring table is taken whole from the file or not at all, so a
	// partially declared table is reported instead of padded with defaults.
	if !v.InConfig("scoring") {
		for sev, weight := range DefaultWeights {
			v.SetDefault("scoring.weights."+sev, weight)
		}
		v.SetDefault("scoring.passing_threshold", DefaultPassingThreshold)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

// SearchPaths lists the files Load tries, in order, when no path is given
func SearchPaths() []string {
	paths := []string{"complianceguard.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".complianceguard", "config.yaml"))
	}
	return paths
}

func findConfig(fs afero.Fs) string {
	for _, p := range SearchPaths() {
		if ok, err := afero.Exists(fs, p); err == nil && ok {
			return p
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scanning.timeout", checks.DefaultCheckTimeout)
	v.SetDefault("scanning.concurrency", checks.DefaultConcurrency)
	v.SetDefault("scanning.categories", []string{})
	v.SetDefault("scanning.frameworks", []string{})
	v.SetDefault("reporting.format", string(output.FormatText))
	v.SetDefault("reporting.output", "")
	v.SetDefault("logging.level", string(utils.LogLevelInfo))
	v.SetDefault("logging.format", string(utils.LogFormatText))
	v.SetDefault("dashboard.addr", "127.0.0.1:8080")
	v.SetDefault("dashboard.allowed_origins", []string{})
}

// WeightTable converts the scoring section into a validated checks.WeightTable
func (c *Config) WeightTable() (checks.WeightTable, error) {
	var errs error
	table := checks.WeightTable{Weights: make(map[checks.Severity]float64, len(c.Scoring.Weights))}

	for name, weight := range c.Scoring.Weights {
		sev, err := checks.ParseSeverity(name)
		if err != nil {
			errs = multierr.Append(errs, &checks.ConfigurationError{
				Field: "scoring.weights." + name,
				Err:   fmt.Errorf("%w: %v", checks.ErrInvalidWeight, err),
			})
			continue
		}
		table.Weights[sev] = weight
	}

	if c.Scoring.PassingThreshold == nil {
		errs = multierr.Append(errs, &checks.ConfigurationError{
			Field: "scoring.passing_threshold",
			Err:   fmt.Errorf("%w: not declared", checks.ErrInvalidThreshold),
		})
	} else {
		table.PassingThreshold = *c.Scoring.PassingThreshold
	}

	if errs == nil {
		errs = table.Validate()
	}
	if errs != nil {
		return checks.WeightTable{}, errs
	}
	return table, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs error
	invalid := func(field, format string, args ...interface{}) {
		errs = multierr.Append(errs, &checks.ConfigurationError{
			Field: field,
			Err:   fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidSetting}, args...)...),
		})
	}

	if c.Scanning.Timeout <= 0 {
		invalid("scanning.timeout", "%v must be positive", c.Scanning.Timeout)
	}
	if c.Scanning.Concurrency < 1 {
		invalid("scanning.concurrency", "%d must be at least 1", c.Scanning.Concurrency)
	}
	if _, err := output.ParseFormat(c.Reporting.Format); err != nil {
		invalid("reporting.format", "%v", err)
	}
	switch utils.LogLevel(strings.ToLower(c.Logging.Level)) {
	case utils.LogLevelDebug, utils.LogLevelInfo, utils.LogLevelWarn, utils.LogLevelError:
	default:
		invalid("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch utils.LogFormat(strings.ToLower(c.Logging.Format)) {
	case utils.LogFormatText, utils.LogFormatJSON:
	default:
		invalid("logging.format", "unknown format %q", c.Logging.Format)
	}
	if strings.TrimSpace(c.Dashboard.Addr) == "" {
		invalid("dashboard.addr", "empty listen address")
	}

	if _, err := c.WeightTable(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// LoggerConfig maps the logging section onto utils.LoggerConfig
func (c *Config) LoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:  utils.LogLevel(strings.ToLower(c.Logging.Level)),
		Format: utils.LogFormat(strings.ToLower(c.Logging.Format)),
	}
}

// RunnerOptions maps the scanning section onto checks.RunnerOptions
func (c *Config) RunnerOptions(logger *utils.Logger) checks.RunnerOptions {
	return checks.RunnerOptions{
		Timeout:     c.Scanning.Timeout,
		Concurrency: c.Scanning.Concurrency,
		Logger:      logger,
	}
}
