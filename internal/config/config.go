// Package config loads check settings from defaults, an optional YAML file
// and command line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeout bounds a single poll or request.
const DefaultTimeout = 5 * time.Second

// Seconds is a duration flag value that also accepts a bare integer
// number of seconds, so "-t 5" and "-t 5s" are equivalent.
type Seconds time.Duration

// NewSeconds returns a flag value holding d.
func NewSeconds(d time.Duration) *Seconds {
	s := Seconds(d)
	return &s
}

func (s *Seconds) Set(value string) error {
	if n, err := strconv.Atoi(value); err == nil {
		*s = Seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%q is neither seconds nor a duration", value)
	}
	*s = Seconds(d)
	return nil
}

func (s *Seconds) String() string {
	return time.Duration(*s).String()
}

func (s *Seconds) Type() string {
	return "duration"
}

// Config holds all settings shared by the checks and collectors.
type Config struct {
	Node       NodeConfig       `mapstructure:"node"`
	Cluster    ClusterConfig    `mapstructure:"cluster"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// NodeConfig selects the node polled by single-node checks.
type NodeConfig struct {
	Server  string        `mapstructure:"server"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ClusterConfig configures the Exhibitor-backed cluster check.
type ClusterConfig struct {
	Exhibitor    string `mapstructure:"exhibitor"`
	Count        int    `mapstructure:"count"`
	Port         int    `mapstructure:"port"`
	MaxRedirects int    `mapstructure:"max_redirects"`
}

// AdminConfig configures the AdminServer check.
type AdminConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// ThresholdsConfig holds the check limits.
type ThresholdsConfig struct {
	Latency         float64 `mapstructure:"latency"`
	Requests        int     `mapstructure:"requests"`
	FileDescriptors float64 `mapstructure:"file_descriptors"`
	Followers       int     `mapstructure:"followers"`
}

// MetricsConfig configures the collectors.
type MetricsConfig struct {
	Scheme string `mapstructure:"scheme"`
	Format string `mapstructure:"format"`
}

// JournalConfig points at the optional result journal.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Binding maps a config key to the name of the flag that overrides it.
type Binding struct {
	Key  string
	Flag string
}

// Load reads configuration. configPath may be empty. Flags in bindings
// that are not defined on flags are ignored.
func Load(configPath string, flags *pflag.FlagSet, bindings []Binding) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if flags != nil {
		for _, b := range bindings {
			flag := flags.Lookup(b.Flag)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(b.Key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", b.Flag, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.server", "localhost:2181")
	v.SetDefault("node.timeout", DefaultTimeout)

	v.SetDefault("cluster.exhibitor", "http://localhost/exhibitor/v1/cluster/status")
	v.SetDefault("cluster.count", 5)
	v.SetDefault("cluster.port", 2181)
	v.SetDefault("cluster.max_redirects", 3)

	v.SetDefault("admin.endpoint", "http://localhost:8080")

	v.SetDefault("thresholds.latency", 10.0)
	v.SetDefault("thresholds.requests", 10)
	v.SetDefault("thresholds.file_descriptors", 0.85)
	v.SetDefault("thresholds.followers", 2)

	v.SetDefault("metrics.scheme", "")
	v.SetDefault("metrics.format", "graphite")

	v.SetDefault("journal.path", "")

	v.SetDefault("logging.level", "warn")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Node.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Node.Timeout)
	}
	if c.Cluster.Port <= 0 || c.Cluster.Port > 65535 {
		return fmt.Errorf("invalid cluster port: %d", c.Cluster.Port)
	}
	if c.Cluster.MaxRedirects < 1 {
		return fmt.Errorf("max_redirects must be at least 1, got %d", c.Cluster.MaxRedirects)
	}
	if c.Thresholds.Latency < 0 {
		return fmt.Errorf("latency threshold must not be negative")
	}
	if c.Thresholds.Requests < 0 {
		return fmt.Errorf("requests threshold must not be negative")
	}
	if c.Thresholds.FileDescriptors <= 0 || c.Thresholds.FileDescriptors > 1 {
		return fmt.Errorf("file descriptor ratio must be in (0, 1], got %g", c.Thresholds.FileDescriptors)
	}
	if c.Thresholds.Followers < 0 {
		return fmt.Errorf("followers must not be negative")
	}
	switch c.Metrics.Format {
	case "graphite", "prometheus":
	default:
		return fmt.Errorf("unknown metrics format %q", c.Metrics.Format)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// DefaultScheme is the metric prefix used when none is configured.
func DefaultScheme(hostname string) string {
	return hostname + ".zookeeper"
}
