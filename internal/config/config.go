package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultPath is where Load looks for the configuration.
const DefaultPath = "replcheck.yaml"

// Run modes.
const (
	// ModeExternal targets nodes that are already running.
	ModeExternal = "external"
	// ModeEmbedded runs reference nodes inside the harness process.
	ModeEmbedded = "embedded"
	// ModeForked runs each reference node as its own process.
	ModeForked = "forked"
)

type Schedule struct {
	Rounds int `yaml:"rounds"`
	Burst  int `yaml:"burst"`
}

type Store struct {
	// Driver is memory, sqlite or redis. Empty picks memory for embedded
	// nodes and a sqlite file in the run directory for forked ones.
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

type Cluster struct {
	Mode  string `yaml:"mode"`
	Nodes int    `yaml:"nodes"`

	// ServerCommand starts one node in forked mode.
	ServerCommand string `yaml:"server_command,omitempty"`
	WorkingDir    string `yaml:"working_dir"`

	AdminUser     string `yaml:"admin_user,omitempty"`
	AdminPassword string `yaml:"admin_password,omitempty"`

	StartTimeout    time.Duration `yaml:"start_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Store Store `yaml:"store"`
}

type Config struct {
	Scenario       string        `yaml:"scenario"`
	Endpoints      []string      `yaml:"endpoints,omitempty"`
	HandlerPath    string        `yaml:"handler_path"`
	Schedule       Schedule      `yaml:"schedule"`
	GracePeriod    time.Duration `yaml:"grace_period"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Cookies        bool          `yaml:"cookies"`
	Cluster        Cluster       `yaml:"cluster"`
}

// Default returns the reference scenario against an embedded two-node cluster.
func Default() *Config {
	return &Config{
		Scenario:       "smoke",
		HandlerPath:    "/session",
		Schedule:       Schedule{Rounds: 4, Burst: 4},
		GracePeriod:    500 * time.Millisecond,
		RequestTimeout: 5 * time.Second,
		Cookies:        true,
		Cluster: Cluster{
			Mode:            ModeEmbedded,
			Nodes:           2,
			WorkingDir:      ".replcheck",
			StartTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads DefaultPath.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath)
}

// LoadFrom reads path over the defaults. The result is not validated:
// callers apply their overrides first and then call Validate.
func LoadFrom(path string) (*Config, error) {
	bytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %s not found\nRun 'replcheck init' to create one", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(bytes, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration is runnable.
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return errors.New("scenario cannot be empty")
	}

	if c.Schedule.Rounds < 1 || c.Schedule.Burst < 1 {
		return fmt.Errorf("schedule needs at least 1 round and 1 request per endpoint, got %d×%d",
			c.Schedule.Rounds, c.Schedule.Burst)
	}

	if c.GracePeriod < 0 {
		return errors.New("grace_period cannot be negative")
	}

	switch c.Cluster.Mode {
	case ModeExternal:
		if len(c.Endpoints) < 2 {
			return fmt.Errorf("external mode needs at least 2 endpoints, got %d", len(c.Endpoints))
		}
	case ModeEmbedded, ModeForked:
		if c.Cluster.Nodes < 2 {
			return fmt.Errorf("cluster needs at least 2 nodes, got %d", c.Cluster.Nodes)
		}
		if c.Cluster.Mode == ModeForked && c.Cluster.Store.Driver == "memory" {
			return errors.New("forked nodes cannot share a memory store; use sqlite or redis")
		}
	default:
		return fmt.Errorf("unknown cluster mode %q (want %s, %s or %s)",
			c.Cluster.Mode, ModeExternal, ModeEmbedded, ModeForked)
	}

	return nil
}

func SaveTo(cfg *Config, path string) error {
	bytes, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, bytes, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
