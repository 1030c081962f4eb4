// Package config loads stepfix settings from defaults, an optional
// stepfix.yaml, STEPFIX_* environment variables and bound command flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/ormasoftchile/stepfix/pkg/profile"
)

// EnvPrefix prefixes every environment override, e.g. STEPFIX_LOGGER_LEVEL.
const EnvPrefix = "STEPFIX"

// Config is the top-level configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Rewrite RewriteConfig `mapstructure:"rewrite" yaml:"rewrite"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// RewriteConfig holds the rewrite defaults the CLI flags override.
type RewriteConfig struct {
	// Profile is a rule profile path; empty selects the embedded default.
	Profile  string `mapstructure:"profile" yaml:"profile"`
	Sentinel string `mapstructure:"sentinel" yaml:"sentinel"`
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
	Backup   bool   `mapstructure:"backup" yaml:"backup"`
	// Indent is the number of spaces per nesting level in written files.
	Indent int `mapstructure:"indent" yaml:"indent"`
	// DiffContext is the number of context lines around diff hunks.
	DiffContext int `mapstructure:"diff_context" yaml:"diff_context"`
}

// IndentString renders Indent as the codec's indent unit.
func (r RewriteConfig) IndentString() string { return strings.Repeat(" ", r.Indent) }

// NewDefaultConfig returns the configuration with only defaults applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stepfix")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "magenta")
	v.SetDefault("logger.colors.info", "cyan")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Rewrite --
	v.SetDefault("rewrite.profile", "")
	v.SetDefault("rewrite.sentinel", string(profile.SentinelAdjacent))
	v.SetDefault("rewrite.strategy", string(profile.StrategyCollapse))
	v.SetDefault("rewrite.backup", false)
	v.SetDefault("rewrite.indent", 4)
	v.SetDefault("rewrite.diff_context", 3)
}

// Load prepares v: defaults, the config file (cfgFile, or stepfix.yaml in
// the working directory when present) and environment overrides.
func Load(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("stepfix")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

// NewConfigFromViper decodes and validates the settings held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.Logger.Level); err != nil {
		errs = append(errs, fmt.Errorf("logger.level: %w", err))
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format))
	}
	if _, err := profile.ParseSentinelMode(c.Rewrite.Sentinel); err != nil {
		errs = append(errs, fmt.Errorf("rewrite.sentinel: %w", err))
	}
	if _, err := profile.ParseStrategy(c.Rewrite.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("rewrite.strategy: %w", err))
	}
	if c.Rewrite.Indent < 0 || c.Rewrite.Indent > 8 {
		errs = append(errs, fmt.Errorf("rewrite.indent must be between 0 and 8, got %d", c.Rewrite.Indent))
	}
	if c.Rewrite.DiffContext < 0 {
		errs = append(errs, fmt.Errorf("rewrite.diff_context must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadProfile resolves the rule profile: the file named by Profile, or the
// embedded default, with the configured strategy and sentinel mode applied.
func (r RewriteConfig) LoadProfile() (*profile.Profile, error) {
	p := profile.Default()
	if r.Profile != "" {
		var err error
		if p, err = profile.LoadFile(r.Profile); err != nil {
			return nil, err
		}
	}
	if r.Strategy != "" {
		s, err := profile.ParseStrategy(r.Strategy)
		if err != nil {
			return nil, err
		}
		p = p.WithStrategy(s)
	}
	if r.Sentinel != "" {
		m, err := profile.ParseSentinelMode(r.Sentinel)
		if err != nil {
			return nil, err
		}
		p = p.WithSentinel(m)
	}
	return p, nil
}
