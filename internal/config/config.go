// Package config decodes the Interchange's startup configuration blob
// (spec §6) using viper, the way the teacher's GlobalConfig is loaded.
package config

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the Bootstrap of spec §6: the serialized blob read from
// standard input at process start and used to construct the
// Interchange. Field names mirror the spec's wire names exactly so
// Unmarshal needs no translation layer.
type Config struct {
	ClientAddress       string   `mapstructure:"client_address"`
	InterchangeAddress  *string  `mapstructure:"interchange_address"`
	ClientPorts         [3]int   `mapstructure:"client_ports"` // task_in, results_out, command
	WorkerPort          *int     `mapstructure:"worker_port"`
	WorkerPortRange     [2]int   `mapstructure:"worker_port_range"`
	HubAddress          *string  `mapstructure:"hub_address"`
	HubZMQPort          *int     `mapstructure:"hub_zmq_port"`
	HeartbeatThreshold  int      `mapstructure:"heartbeat_threshold"` // seconds
	LogDir              string   `mapstructure:"logdir"`
	LoggingLevel        string   `mapstructure:"logging_level"`
	PollPeriod          int      `mapstructure:"poll_period"` // milliseconds
	CertDir             *string  `mapstructure:"cert_dir"`
	ManagerSelector     string   `mapstructure:"manager_selector"`
	RunID               string   `mapstructure:"run_id"`
	ParslVersion        string   `mapstructure:"parsl_version"`
	PythonVersion       string   `mapstructure:"python_version"`
	MetricsListenAddr   string   `mapstructure:"metrics_listen_addr"`
	MetricsPath         string   `mapstructure:"metrics_path"`
}

// ResolvedWorkerPort returns WorkerPort if set, otherwise a random port
// drawn from WorkerPortRange (spec §6: "worker_port (nullable; null ⇒
// pick random port in worker_port_range)"). Call once, after Validate,
// and hold onto the result — repeated calls would re-roll the port.
func (c *Config) ResolvedWorkerPort() int {
	if c.WorkerPort != nil {
		return *c.WorkerPort
	}
	lo, hi := c.WorkerPortRange[0], c.WorkerPortRange[1]
	if hi <= lo {
		return lo
	}
	return lo + rand.Intn(hi-lo+1)
}

// MonitoringEnabled reports whether both hub fields are set, per spec
// §6: "both non-null ⇒ monitoring enabled".
func (c *Config) MonitoringEnabled() bool {
	return c.HubAddress != nil && c.HubZMQPort != nil
}

// BindAddress returns InterchangeAddress, resolved to bind-all when nil
// (spec §6: "null ⇒ bind all interfaces"), the way the teacher's
// resolveNodeIP resolves an empty NodeConfig.IP.
func (c *Config) BindAddress() string {
	if c.InterchangeAddress == nil || *c.InterchangeAddress == "" {
		return "0.0.0.0"
	}
	return *c.InterchangeAddress
}

// Validate rejects a Config missing required fields and normalizes the
// rest, playing the role of the teacher's ValidateAndApplyDefaults.
func (c *Config) Validate() error {
	if c.ClientAddress == "" {
		return fmt.Errorf("config: client_address is required")
	}
	for i, p := range c.ClientPorts {
		if p <= 0 {
			return fmt.Errorf("config: client_ports[%d] must be a positive port number, got %d", i, p)
		}
	}
	if c.WorkerPort == nil {
		if c.WorkerPortRange[1] < c.WorkerPortRange[0] {
			return fmt.Errorf("config: worker_port_range %v is invalid (high < low)", c.WorkerPortRange)
		}
	}
	if c.InterchangeAddress != nil && *c.InterchangeAddress != "" {
		if net.ParseIP(*c.InterchangeAddress) == nil {
			return fmt.Errorf("config: interchange_address %q is not a valid IP", *c.InterchangeAddress)
		}
	}
	if (c.HubAddress == nil) != (c.HubZMQPort == nil) {
		return fmt.Errorf("config: hub_address and hub_zmq_port must both be set or both be null")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.LoggingLevel == "" {
		c.LoggingLevel = "info"
	} else if !validLevels[strings.ToLower(c.LoggingLevel)] {
		return fmt.Errorf("config: invalid logging_level %q (must be debug/info/warn/error)", c.LoggingLevel)
	}
	if c.HeartbeatThreshold <= 0 {
		return fmt.Errorf("config: heartbeat_threshold must be positive, got %d", c.HeartbeatThreshold)
	}
	if c.PollPeriod <= 0 {
		c.PollPeriod = 100
	}
	if c.RunID == "" {
		return fmt.Errorf("config: run_id is required")
	}
	return nil
}

// Load reads and decodes a Bootstrap blob from r (os.Stdin in
// production), in the declared encoding, and validates it. encoding is
// "json" or "yaml"; an empty string defaults to "json", the wire format
// spec §6 assumes.
func Load(r *os.File, encoding string) (*Config, error) {
	v := viper.New()
	if encoding == "" {
		encoding = "json"
	}
	v.SetConfigType(encoding)

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("config: reading blob: %w", err)
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding blob: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults mirrors the teacher's setDefaults: every field the blob
// may omit gets a sane production default before Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("heartbeat_threshold", 120)
	v.SetDefault("poll_period", 100)
	v.SetDefault("logging_level", "info")
	v.SetDefault("manager_selector", "random")
	v.SetDefault("worker_port_range", []int{54000, 55000})
	v.SetDefault("metrics_listen_addr", ":9091")
	v.SetDefault("metrics_path", "/metrics")
}
