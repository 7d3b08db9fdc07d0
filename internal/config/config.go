// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/webready/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Wait() WaitConfig
	Scroll() schemas.ScrollOptions
	Input() InputConfig
	Driver() DriverConfig
	Metrics() MetricsConfig

	SetWaitTimeout(d time.Duration)
	SetWaitInterval(d time.Duration)
	SetDriverKind(kind string)
	SetDriverHeadless(b bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig          `mapstructure:"logger" yaml:"logger"`
	WaitCfg    WaitConfig            `mapstructure:"wait" yaml:"wait"`
	ScrollCfg  schemas.ScrollOptions `mapstructure:"scroll" yaml:"scroll"`
	InputCfg   InputConfig           `mapstructure:"input" yaml:"input"`
	DriverCfg  DriverConfig          `mapstructure:"driver" yaml:"driver"`
	MetricsCfg MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig          { return c.LoggerCfg }
func (c *Config) Wait() WaitConfig              { return c.WaitCfg }
func (c *Config) Scroll() schemas.ScrollOptions { return c.ScrollCfg }
func (c *Config) Input() InputConfig            { return c.InputCfg }
func (c *Config) Driver() DriverConfig          { return c.DriverCfg }
func (c *Config) Metrics() MetricsConfig        { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetWaitTimeout(d time.Duration)  { c.WaitCfg.Timeout = d }
func (c *Config) SetWaitInterval(d time.Duration) { c.WaitCfg.Interval = d }
func (c *Config) SetDriverKind(kind string)       { c.DriverCfg.Kind = kind }
func (c *Config) SetDriverHeadless(b bool)        { c.DriverCfg.Headless = b }

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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// WaitConfig holds the default polling parameters of every session.
type WaitConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// InputConfig tunes text entry.
type InputConfig struct {
	// ClearPolicy is one of "never", "always" or "once".
	ClearPolicy string `mapstructure:"clear_policy" yaml:"clear_policy"`
}

// DriverConfig selects and configures the browser driver.
type DriverConfig struct {
	// Kind is "cdp" (Chrome DevTools Protocol) or "webdriver".
	Kind string `mapstructure:"kind" yaml:"kind"`
	// WebDriverURL is the remote end, e.g. http://localhost:9515.
	WebDriverURL string `mapstructure:"webdriver_url" yaml:"webdriver_url"`
	// BrowserName goes into the WebDriver capabilities.
	BrowserName string `mapstructure:"browser_name" yaml:"browser_name"`
	// RemoteDebuggingURL attaches the cdp driver to a running browser
	// instead of launching one.
	RemoteDebuggingURL string        `mapstructure:"remote_debugging_url" yaml:"remote_debugging_url"`
	ExecPath           string        `mapstructure:"exec_path" yaml:"exec_path"`
	Headless           bool          `mapstructure:"headless" yaml:"headless"`
	Args               []string      `mapstructure:"args" yaml:"args"`
	CommandTimeout     time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the Prometheus text exposition at exit.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webready")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Wait --
	v.SetDefault("wait.interval", "50ms")
	v.SetDefault("wait.timeout", "10s")

	// -- Scroll --
	v.SetDefault("scroll.behavior", schemas.ScrollBehaviorAuto)
	v.SetDefault("scroll.block", schemas.ScrollAlignCenter)
	v.SetDefault("scroll.inline", schemas.ScrollAlignCenter)

	// -- Input --
	v.SetDefault("input.clear_policy", "never")

	// -- Driver --
	v.SetDefault("driver.kind", "cdp")
	v.SetDefault("driver.webdriver_url", "http://localhost:9515")
	v.SetDefault("driver.browser_name", "chrome")
	v.SetDefault("driver.headless", true)
	v.SetDefault("driver.command_timeout", "30s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
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

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.WaitCfg.Interval <= 0 {
		return fmt.Errorf("wait.interval must be a positive duration")
	}
	if c.WaitCfg.Timeout < 0 {
		return fmt.Errorf("wait.timeout must not be negative")
	}
	if err := c.ScrollCfg.Validate(); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	if _, err := schemas.ParseClearPolicy(c.InputCfg.ClearPolicy); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := c.DriverCfg.Validate(); err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	return nil
}

// Validate checks the driver section.
func (d *DriverConfig) Validate() error {
	switch d.Kind {
	case "cdp":
		return nil
	case "webdriver":
		if d.WebDriverURL == "" {
			return fmt.Errorf("webdriver_url is required when kind is webdriver")
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q (supported: cdp, webdriver)", d.Kind)
	}
}
