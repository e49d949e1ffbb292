// Package config handles loading and parsing the application's configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Storage modes.
const (
	ModeMemory  = "memory"  // in-memory only, nothing survives a restart
	ModeJournal = "journal" // single node, write-ahead log in DataDir
	ModeRaft    = "raft"    // replicated through Raft, state in DataDir
)

// Duration is a time.Duration read from strings such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all configuration for the application.
// We use struct tags to explicitly map TOML and YAML keys to struct fields.
type Config struct {
	NodeID       string   `toml:"node_id" yaml:"node_id"` // Unique ID for the node in the cluster
	Host         string   `toml:"host" yaml:"host"`
	Port         int      `toml:"port" yaml:"port"`
	Mode         string   `toml:"mode" yaml:"mode"`
	RaftPort     int      `toml:"raft_port" yaml:"raft_port"` // Port for Raft's internal communication
	DataDir      string   `toml:"data_dir" yaml:"data_dir"`
	Peers        []string `toml:"peers" yaml:"peers"` // HTTP base URLs of nodes to join through
	Bootstrap    bool     `toml:"bootstrap" yaml:"bootstrap"`
	ApplyTimeout Duration `toml:"apply_timeout" yaml:"apply_timeout"`
	LogLevel     string   `toml:"log_level" yaml:"log_level"`
	LogFormat    string   `toml:"log_format" yaml:"log_format"`
	SeedDemo     bool     `toml:"seed_demo" yaml:"seed_demo"`
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		NodeID:       "",
		Host:         "localhost",
		Port:         8080,
		Mode:         ModeMemory,
		RaftPort:     9080,
		DataDir:      ".",
		Peers:        []string{},
		ApplyTimeout: Duration{5 * time.Second},
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load reads a configuration file from the given path and populates the
// Config struct. The format follows the extension: .yaml/.yml, else TOML.
func (c *Config) Load(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, c)
	default:
		_, err := toml.DecodeFile(path, c)
		return err
	}
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}

	switch c.Mode {
	case ModeMemory:
	case ModeJournal:
		if c.DataDir == "" {
			errs = append(errs, errors.New("data_dir is required in journal mode"))
		}
	case ModeRaft:
		if c.NodeID == "" {
			errs = append(errs, errors.New("node_id is required in raft mode"))
		}
		if c.DataDir == "" {
			errs = append(errs, errors.New("data_dir is required in raft mode"))
		}
		if c.RaftPort < 1 || c.RaftPort > 65535 {
			errs = append(errs, fmt.Errorf("raft_port %d out of range", c.RaftPort))
		}
		if c.RaftPort == c.Port {
			errs = append(errs, errors.New("raft_port must differ from port"))
		}
		if c.ApplyTimeout.Duration <= 0 {
			errs = append(errs, errors.New("apply_timeout must be positive"))
		}
		if !c.Bootstrap && len(c.Peers) == 0 {
			errs = append(errs, errors.New("a non-bootstrap raft node needs peers to join"))
		}
	default:
		errs = append(errs, fmt.Errorf("mode must be memory, journal or raft, got %q", c.Mode))
	}

	return errors.Join(errs...)
}

// HTTPAddr is the host:port the API listens on.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RaftAddr is the host:port Raft listens on.
func (c *Config) RaftAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.RaftPort)
}
