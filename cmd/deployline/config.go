package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/deployline/internal/core/deployment"
	corehealth "github.com/artpar/deployline/internal/core/health"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Service  ServiceConfig  `mapstructure:"service"`
	Health   HealthConfig   `mapstructure:"health"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Database DatabaseConfig `mapstructure:"database"`
	Report   ReportConfig   `mapstructure:"report"`
	Log      LogConfig      `mapstructure:"log"`
}

// PipelineConfig holds the source tree and the build commands.
type PipelineConfig struct {
	SourceDir      string        `mapstructure:"source_dir"`
	InstallCommand string        `mapstructure:"install_command"`
	TestCommand    string        `mapstructure:"test_command"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// ServiceConfig describes the container being deployed.
type ServiceConfig struct {
	Name          string            `mapstructure:"name"`
	Image         string            `mapstructure:"image"`
	Dockerfile    string            `mapstructure:"dockerfile"`
	HostPort      int               `mapstructure:"host_port"`
	ContainerPort int               `mapstructure:"container_port"`
	StopTimeout   time.Duration     `mapstructure:"stop_timeout"`
	Env           map[string]string `mapstructure:"env"`
}

// Deployment converts the config into the service definition.
func (c ServiceConfig) Deployment() deployment.Service {
	return deployment.Service{
		Name:          c.Name,
		Image:         deployment.ImageTag(c.Image),
		HostPort:      c.HostPort,
		ContainerPort: c.ContainerPort,
		Env:           c.Env,
		StopTimeout:   c.StopTimeout,
	}
}

// HealthConfig holds the readiness probe budget.
type HealthConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Interval       time.Duration `mapstructure:"interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Probe converts the config into the verification budget.
func (c HealthConfig) Probe() corehealth.Config {
	return corehealth.Config{
		Endpoint:    c.Endpoint,
		MaxAttempts: c.MaxAttempts,
		Interval:    c.Interval,
	}
}

// ServiceURL returns the root URL of the service behind the health endpoint.
func (c HealthConfig) ServiceURL() string {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" {
		return c.Endpoint
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// DatabaseConfig holds run history configuration.
type DatabaseConfig struct {
	// DSN is the SQLite database path. Empty disables run history.
	DSN string `mapstructure:"dsn"`
}

// ReportConfig holds report export configuration.
type ReportConfig struct {
	// File is where the YAML report of the last run is written. Empty disables it.
	File string `mapstructure:"file"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// DefaultHealthEndpoint returns the health URL of a service published on
// hostPort of the local machine.
func DefaultHealthEndpoint(hostPort int) string {
	return fmt.Sprintf("http://localhost:%d/health", hostPort)
}

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Pipeline
	v.SetDefault("pipeline.source_dir", ".")
	v.SetDefault("pipeline.install_command", "go mod download")
	v.SetDefault("pipeline.test_command", "go test ./...")
	v.SetDefault("pipeline.command_timeout", "10m")

	// Service
	v.SetDefault("service.name", "deployline-greeter")
	v.SetDefault("service.image", "deployline-greeter:latest")
	v.SetDefault("service.dockerfile", "Dockerfile")
	v.SetDefault("service.host_port", 5000)
	v.SetDefault("service.container_port", 5000)
	v.SetDefault("service.stop_timeout", "10s")

	// Health
	// Empty means http://localhost:<service.host_port>/health
	v.SetDefault("health.endpoint", "")
	v.SetDefault("health.max_attempts", corehealth.DefaultMaxAttempts)
	v.SetDefault("health.interval", corehealth.DefaultInterval.String())
	v.SetDefault("health.request_timeout", "2s")

	v.SetDefault("docker.host", "")
	v.SetDefault("database.dsn", "./data/deployline.db")
	v.SetDefault("report.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// An explicitly named file must exist and parse
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DEPLOYLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Health.Endpoint == "" {
		cfg.Health.Endpoint = DefaultHealthEndpoint(cfg.Service.HostPort)
	}

	return &cfg, nil
}

// =============================================================================
// Config Validation
// =============================================================================

// Validate rejects configurations the pipeline cannot run with. Invalid
// values are reported rather than replaced with defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.Pipeline.SourceDir == "" {
		errs = append(errs, errors.New("pipeline.source_dir is required"))
	}
	if c.Pipeline.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.command_timeout must be positive, got %s", c.Pipeline.CommandTimeout))
	}

	if err := deployment.ValidateService(c.Service.Deployment()); err != nil {
		errs = append(errs, err)
	}

	if err := c.Health.Probe().Validate(); err != nil {
		errs = append(errs, err)
	} else if u, err := url.Parse(c.Health.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("health.endpoint must be an absolute http(s) URL, got %q", c.Health.Endpoint))
	}
	if err := c.checkEndpointPort(); err != nil {
		errs = append(errs, err)
	}
	if c.Health.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("health.request_timeout must be positive, got %s", c.Health.RequestTimeout))
	}

	return errors.Join(errs...)
}

// checkEndpointPort rejects a local health endpoint on a port other than the
// one the container is published on. Remote endpoints are not checked.
func (c *Config) checkEndpointPort() error {
	u, err := url.Parse(c.Health.Endpoint)
	if err != nil || u.Host == "" {
		return nil
	}
	if !isLoopback(u.Hostname()) {
		return nil
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	if port != strconv.Itoa(c.Service.HostPort) {
		return fmt.Errorf("health.endpoint %q polls port %s but service.host_port is %d", c.Health.Endpoint, port, c.Service.HostPort)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to stderr; stdout carries the pipeline summary.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
