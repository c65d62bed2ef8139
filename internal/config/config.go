package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Driver    DriverConfig    `mapstructure:"driver"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DriverConfig holds the sweep driver parameters. The defaults reproduce the
// fixed constants of the original driver script: warm-up at 2 QPS, 100 s
// measured runs, 10 s cool-down between phases.
type DriverConfig struct {
	WarmupQPS      string        `mapstructure:"warmup_qps"`
	WarmupDataset  string        `mapstructure:"warmup_dataset"`
	RunDataset     string        `mapstructure:"run_dataset"`
	DefaultQPS     string        `mapstructure:"default_qps"`
	RunDuration    time.Duration `mapstructure:"run_duration"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	LogInterval    time.Duration `mapstructure:"log_interval"`
	WarmupScratch  string        `mapstructure:"warmup_scratch"`
	ContinueOnFail bool          `mapstructure:"continue_on_fail"`
}

// GeneratorConfig describes how to invoke the external load generator.
type GeneratorConfig struct {
	Command string   `mapstructure:"command"` // e.g. "python3"
	Args    []string `mapstructure:"args"`    // e.g. ["sharegpt-qa.py"]
	WorkDir string   `mapstructure:"workdir"`
}

// ProbeConfig holds endpoint readiness probe configuration.
type ProbeConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
	APIKey   string        `mapstructure:"api_key"`
}

// DatabaseConfig holds the run-history database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds the status API server configuration.
type ServerConfig struct {
	Host      string  `mapstructure:"host"`
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests/sec, 0 disables
	RateBurst int     `mapstructure:"rate_burst"`
}

// RemoteConfig holds SSH details for running the generator on a remote host.
type RemoteConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	WorkDir        string        `mapstructure:"workdir"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Enabled reports whether remote execution is configured.
func (r RemoteConfig) Enabled() bool {
	return r.Host != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load loads configuration from an optional file and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Driver defaults reproduce the original driver constants
	v.SetDefault("driver.warmup_qps", "2")
	v.SetDefault("driver.warmup_dataset", "./datasets/warmup.json")
	v.SetDefault("driver.run_dataset", "./datasets/run.json")
	v.SetDefault("driver.default_qps", "1.0")
	v.SetDefault("driver.run_duration", 100*time.Second)
	v.SetDefault("driver.cooldown", 10*time.Second)
	v.SetDefault("driver.log_interval", 30*time.Second)
	v.SetDefault("driver.warmup_scratch", "/tmp/warmup.csv")
	v.SetDefault("driver.continue_on_fail", true)

	// Generator defaults
	v.SetDefault("generator.command", "python3")
	v.SetDefault("generator.args", []string{"sharegpt-qa.py"})

	// Probe defaults
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.timeout", 2*time.Minute)
	v.SetDefault("probe.interval", 5*time.Second)
	v.SetDefault("probe.api_key", "EMPTY")

	// Database defaults
	v.SetDefault("database.path", "./data/qps-sweep.db")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	// Remote defaults
	v.SetDefault("remote.port", 22)
	v.SetDefault("remote.connect_timeout", 30*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	// Helper to bind and log errors (BindEnv errors are non-fatal but should be logged)
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	bindEnv("driver.warmup_dataset", "QPS_SWEEP_WARMUP_DATASET")
	bindEnv("driver.run_dataset", "QPS_SWEEP_RUN_DATASET")
	bindEnv("generator.command", "QPS_SWEEP_GENERATOR")
	bindEnv("database.path", "DATABASE_PATH")
	bindEnv("server.host", "SERVER_HOST")
	bindEnv("server.port", "SERVER_PORT")
	bindEnv("remote.host", "QPS_SWEEP_REMOTE_HOST")
	bindEnv("remote.user", "QPS_SWEEP_REMOTE_USER")
	bindEnv("remote.private_key_path", "QPS_SWEEP_REMOTE_KEY")
	bindEnv("probe.api_key", "OPENAI_API_KEY")
	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := ParseQPS(c.Driver.WarmupQPS); err != nil {
		return fmt.Errorf("driver.warmup_qps: %w", err)
	}
	if _, err := ParseQPS(c.Driver.DefaultQPS); err != nil {
		return fmt.Errorf("driver.default_qps: %w", err)
	}
	if c.Driver.RunDuration <= 0 {
		return fmt.Errorf("driver.run_duration must be positive")
	}
	if c.Driver.Cooldown < 0 {
		return fmt.Errorf("driver.cooldown must not be negative")
	}
	if c.Generator.Command == "" {
		return fmt.Errorf("generator.command is required")
	}
	if c.Remote.Enabled() {
		if c.Remote.User == "" {
			return fmt.Errorf("remote.user is required when remote.host is set")
		}
		if c.Remote.PrivateKeyPath == "" {
			return fmt.Errorf("remote.private_key_path is required when remote.host is set")
		}
	}
	return nil
}

// ParseQPS validates a QPS value given as text. The text form is kept as-is
// for output-file naming, so callers only need the parse for validation.
func ParseQPS(s string) (float64, error) {
	qps, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid QPS value %q", s)
	}
	if qps <= 0 {
		return 0, fmt.Errorf("QPS value must be positive, got %q", s)
	}
	return qps, nil
}
