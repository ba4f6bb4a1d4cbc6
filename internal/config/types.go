package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the agent looks for its configuration when no --config flag is given.
const DefaultPath = "/etc/jimvn/jimvn.yaml"

// Config represents the complete agent configuration.
type Config struct {
	Redis              RedisConfig     `yaml:"redis"`
	DownstreamQueue    string          `yaml:"downstream_queue"`    // List the provisioning engine pops jobs from
	InstructionChannel string          `yaml:"instruction_channel"` // Pub/sub channel carrying guest operations
	UpstreamQueue      string          `yaml:"upstream_queue"`      // List outcomes and events are pushed onto
	Libvirt            LibvirtConfig   `yaml:"libvirt"`
	Gluster            GlusterConfig   `yaml:"gluster"`
	Log                LogConfig       `yaml:"log"`
	Metrics            MetricsConfig   `yaml:"metrics"`
	Provision          ProvisionConfig `yaml:"provision"`
	Report             ReportConfig    `yaml:"report"`
	Debug              bool            `yaml:"debug,omitempty"`
}

// RedisConfig holds the message bus connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// LibvirtConfig holds the hypervisor connection settings.
type LibvirtConfig struct {
	Socket  string        `yaml:"socket,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// GlusterConfig describes the distributed filesystem guest images live on.
type GlusterConfig struct {
	Host string `yaml:"host"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level   string `yaml:"level,omitempty"`
	File    string `yaml:"file,omitempty"`    // Empty means stderr
	Forward string `yaml:"forward,omitempty"` // Lowest level sent upstream
}

// MetricsConfig controls the prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// ProvisionConfig tunes the provisioning engine's admission control.
type ProvisionConfig struct {
	LoadThreshold float64 `yaml:"load_threshold,omitempty"`
}

// ReportConfig tunes the state report engine.
type ReportConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Defaults applied by Normalize.
const (
	DefaultDownstreamQueue    = "Q:Downstream"
	DefaultInstructionChannel = "C:Instruction"
	DefaultUpstreamQueue      = "Q:Upstream"
	DefaultLibvirtSocket      = "/var/run/libvirt/libvirt-sock"
	DefaultLibvirtTimeout     = 5 * time.Second
	DefaultLoadThreshold      = 0.6
	DefaultReportInterval     = 2 * time.Second
	DefaultLogLevel           = "info"
	DefaultForwardLevel       = "info"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9:_.-]+$`)

// Normalize sanitizes user input and fills in defaults.
// This is called automatically by LoadFromFile before validation.
func (c *Config) Normalize() {
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Gluster.Host = strings.TrimSpace(c.Gluster.Host)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Forward = strings.ToLower(strings.TrimSpace(c.Log.Forward))

	if c.DownstreamQueue == "" {
		c.DownstreamQueue = DefaultDownstreamQueue
	}
	if c.InstructionChannel == "" {
		c.InstructionChannel = DefaultInstructionChannel
	}
	if c.UpstreamQueue == "" {
		c.UpstreamQueue = DefaultUpstreamQueue
	}
	if c.Libvirt.Socket == "" {
		c.Libvirt.Socket = DefaultLibvirtSocket
	}
	if c.Libvirt.Timeout == 0 {
		c.Libvirt.Timeout = DefaultLibvirtTimeout
	}
	if c.Provision.LoadThreshold == 0 {
		c.Provision.LoadThreshold = DefaultLoadThreshold
	}
	if c.Report.Interval == 0 {
		c.Report.Interval = DefaultReportInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Forward == "" {
		c.Log.Forward = DefaultForwardLevel
	}
	if c.Debug {
		c.Log.Level = "debug"
	}
}

// Validate checks the configuration for errors.
// Does not check that redis or libvirtd are reachable - only config structure.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Redis.Addr); err != nil {
		return fmt.Errorf("redis.addr must be host:port, got %q: %w", c.Redis.Addr, err)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	for name, key := range map[string]string{
		"downstream_queue":    c.DownstreamQueue,
		"instruction_channel": c.InstructionChannel,
		"upstream_queue":      c.UpstreamQueue,
	} {
		if !keyPattern.MatchString(key) {
			return fmt.Errorf("%s contains invalid characters: %q", name, key)
		}
	}
	if c.DownstreamQueue == c.UpstreamQueue {
		return fmt.Errorf("downstream_queue and upstream_queue must differ, both are %q", c.UpstreamQueue)
	}

	if c.Gluster.Host == "" {
		return fmt.Errorf("gluster.host is required")
	}

	if c.Libvirt.Timeout < 0 {
		return fmt.Errorf("libvirt.timeout must be >= 0, got %s", c.Libvirt.Timeout)
	}
	if c.Provision.LoadThreshold < 0 {
		return fmt.Errorf("provision.load_threshold must be >= 0, got %v", c.Provision.LoadThreshold)
	}
	if c.Report.Interval < 0 {
		return fmt.Errorf("report.interval must be >= 0, got %s", c.Report.Interval)
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Forward {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.forward must be one of trace, debug, info, warn, error, got %q", c.Log.Forward)
	}

	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr must be host:port, got %q: %w", c.Metrics.Addr, err)
		}
	}

	return nil
}

// LoadFromFile loads the agent configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Normalize user input before validation
	config.Normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
