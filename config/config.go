package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clubops/guardrail/guard"
	"github.com/clubops/guardrail/health"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "100ms" or "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Dependency holds the protection settings for one downstream service.
// Zero values defer to the guard package defaults.
type Dependency struct {
	MaxConnections   int      `yaml:"max_connections"`
	PoolTimeout      Duration `yaml:"pool_timeout"`
	OperationTimeout Duration `yaml:"operation_timeout"`

	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`

	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
	MonitoringPeriod Duration `yaml:"monitoring_period"`
}

// Health holds the monitor settings.
type Health struct {
	Interval            Duration `yaml:"interval"`
	WarningUtilization  float64  `yaml:"warning_utilization"`
	CriticalUtilization float64  `yaml:"critical_utilization"`
}

// Gateway holds the payment service connection settings. Secrets are
// normally injected with ${VAR} references resolved at load time.
type Gateway struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// MemberDB holds the member database connection settings.
type MemberDB struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// Config is the root of a guardrail configuration file.
type Config struct {
	Dependencies map[string]Dependency `yaml:"dependencies"`
	Health       Health                `yaml:"health"`
	Gateway      Gateway               `yaml:"gateway"`
	MemberDB     MemberDB              `yaml:"memberdb"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data and validates it. ${VAR}
// references are resolved from the environment first; a reference to an
// unset variable is an error, and $$ escapes a literal dollar.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnvStrict(string(data))
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration for values the guard package would
// silently replace or that contradict each other.
func (c *Config) Validate() error {
	for name, dep := range c.Dependencies {
		if dep.MaxConnections < 0 {
			return fmt.Errorf("config: %s: max_connections must not be negative", name)
		}
		if dep.MaxAttempts < 0 {
			return fmt.Errorf("config: %s: max_attempts must not be negative", name)
		}
		if dep.FailureThreshold < 0 {
			return fmt.Errorf("config: %s: failure_threshold must not be negative", name)
		}
		if dep.BaseDelay > 0 && dep.MaxDelay > 0 && dep.MaxDelay < dep.BaseDelay {
			return fmt.Errorf("config: %s: max_delay must not be less than base_delay", name)
		}
	}

	h := c.Health
	if h.WarningUtilization < 0 || h.WarningUtilization > 100 {
		return fmt.Errorf("config: health: warning_utilization must be between 0 and 100")
	}
	if h.CriticalUtilization < 0 || h.CriticalUtilization > 100 {
		return fmt.Errorf("config: health: critical_utilization must be between 0 and 100")
	}
	if h.WarningUtilization > 0 && h.CriticalUtilization > 0 && h.CriticalUtilization < h.WarningUtilization {
		return fmt.Errorf("config: health: critical_utilization must not be less than warning_utilization")
	}
	return nil
}

// ExecutorConfig converts a dependency block into a guard configuration.
// Unset fields keep their zero value so the guard defaults apply.
func (d Dependency) ExecutorConfig(name string, sink guard.EventSink) guard.Config {
	return guard.Config{
		Name:             name,
		MaxConnections:   d.MaxConnections,
		PoolTimeout:      time.Duration(d.PoolTimeout),
		OperationTimeout: time.Duration(d.OperationTimeout),
		MaxAttempts:      d.MaxAttempts,
		BaseDelay:        time.Duration(d.BaseDelay),
		MaxDelay:         time.Duration(d.MaxDelay),
		FailureThreshold: d.FailureThreshold,
		RecoveryTimeout:  time.Duration(d.RecoveryTimeout),
		MonitoringPeriod: time.Duration(d.MonitoringPeriod),
		Sink:             sink,
	}
}

// MonitorConfig converts the health block into a monitor configuration.
func (h Health) MonitorConfig(sink guard.EventSink) health.MonitorConfig {
	return health.MonitorConfig{
		Interval:            time.Duration(h.Interval),
		WarningUtilization:  h.WarningUtilization,
		CriticalUtilization: h.CriticalUtilization,
		Sink:                sink,
	}
}

// Executors builds one executor per configured dependency, all reporting
// into the same sink.
func (c *Config) Executors(sink guard.EventSink) map[string]*guard.Executor {
	executors := make(map[string]*guard.Executor, len(c.Dependencies))
	for name, dep := range c.Dependencies {
		executors[name] = guard.NewExecutor(dep.ExecutorConfig(name, sink))
	}
	return executors
}
