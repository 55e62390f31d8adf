// Package config loads application configuration from a YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables overriding file values.
// Nested keys are separated by a double underscore, e.g.
// INCIDENT_RELAY_STATUSDASHBOARD__SECRET.
const EnvPrefix = "INCIDENT_RELAY_"

// Config is the application configuration. It is loaded once at startup
// and passed by value; nothing mutates it afterwards.
type Config struct {
	Debug           bool                  `koanf:"debug"`
	Server          ServerConfig          `koanf:"server"`
	Log             LogConfig             `koanf:"log"`
	StatusDashboard StatusDashboardConfig `koanf:"statusdashboard"`
	Mapping         MappingConfig         `koanf:"mapping"`
	ServiceNow      ServiceNowConfig      `koanf:"servicenow"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// StatusDashboardConfig holds the webhook destination settings.
type StatusDashboardConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Endpoint  string        `koanf:"endpoint"`
	Secret    string        `koanf:"secret"` // empty disables signing
	Product   string        `koanf:"product"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
}

// MappingConfig holds the field mapping tables and payload flags.
type MappingConfig struct {
	Status                 map[string]string `koanf:"status"`
	Severity               map[string]string `koanf:"severity"`
	SeverityInclude        bool              `koanf:"severity_include"`
	SeverityHide           bool              `koanf:"severity_hide"`
	IncludeLongDescription bool              `koanf:"include_long_description"`
	SuppressMarker         string            `koanf:"suppress_marker"`
}

// ServiceNowConfig holds the source instance settings.
type ServiceNowConfig struct {
	InstanceURL string         `koanf:"instance_url"`
	Username    string         `koanf:"username"`
	Password    string         `koanf:"password"`
	Timeout     time.Duration  `koanf:"timeout"`
	Relation    RelationConfig `koanf:"relation"`
}

// RelationConfig describes the one-to-many table linking incidents to services.
type RelationConfig struct {
	Table        string `koanf:"table"`
	TaskField    string `koanf:"task_field"`
	ServiceField string `koanf:"service_field"`
}

// Default returns the configuration used when no value is provided.
// Mapping tables match the stock ServiceNow incident states and impacts.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		StatusDashboard: StatusDashboardConfig{
			BaseURL: "https://www.statusdashboard.com",
			Product: "statusdashboard",
			Timeout: 10 * time.Second,
		},
		Mapping: MappingConfig{
			Status:                 DefaultStatusMapping(),
			Severity:               DefaultSeverityMapping(),
			SeverityInclude:        true,
			SeverityHide:           false,
			IncludeLongDescription: true,
			SuppressMarker:         "{-}",
		},
		ServiceNow: ServiceNowConfig{
			Timeout: 10 * time.Second,
			Relation: RelationConfig{
				Table:        "task_cmdb_ci_service",
				TaskField:    "task",
				ServiceField: "cmdb_ci_service",
			},
		},
	}
}

// DefaultStatusMapping maps ServiceNow incident states to dashboard statuses.
func DefaultStatusMapping() map[string]string {
	return map[string]string{
		"New":         "investigating",
		"In Progress": "identified",
		"On Hold":     "identified",
		"Resolved":    "resolved",
		"Closed":      "resolved",
		"Cancelled":   "resolved",
	}
}

// DefaultSeverityMapping maps ServiceNow impacts to dashboard severities.
func DefaultSeverityMapping() map[string]string {
	return map[string]string{
		"1 - High":   "High",
		"2 - Medium": "Medium",
		"3 - Low":    "Low",
	}
}

// Load reads configuration from path (optional, may be empty) and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	// Mapping tables are replaced, not merged, when provided.
	cfg.Mapping.Status = nil
	cfg.Mapping.Severity = nil

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Mapping.Status) == 0 {
		cfg.Mapping.Status = DefaultStatusMapping()
	}
	if len(cfg.Mapping.Severity) == 0 {
		cfg.Mapping.Severity = DefaultSeverityMapping()
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps INCIDENT_RELAY_STATUSDASHBOARD__BASE_URL to statusdashboard.base_url.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validation errors.
var (
	ErrEndpointRequired = errors.New("statusdashboard.endpoint is required")
	ErrInvalidLogLevel  = errors.New("log.level must be one of debug, info, warn, error")
	ErrInvalidLogFormat = errors.New("log.format must be text or json")
	ErrInvalidRelation  = errors.New("servicenow.relation table, task_field and service_field are required")
	ErrInvalidRateLimit = errors.New("statusdashboard.rate_limit must not be negative")
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StatusDashboard.Endpoint) == "" {
		return ErrEndpointRequired
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.Log.Format)
	}

	if c.StatusDashboard.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	r := c.ServiceNow.Relation
	if r.Table == "" || r.TaskField == "" || r.ServiceField == "" {
		return ErrInvalidRelation
	}

	return nil
}
