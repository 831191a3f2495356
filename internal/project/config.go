package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default settings used when neither the config file nor flags override them.
const (
	DefaultPort              = 4000
	DefaultWorkerPort        = 4001
	DefaultPoolSize          = 4
	DefaultBusyTimeout       = 5 * time.Second
	DefaultResolverQueueSize = 64
	DefaultResolverWorkers   = 8
	DefaultSearchMaxLimit    = 1000
)

// Config is the immutable configuration of one bridge run.
// Build it with Load (or Default for tests) and never mutate it afterwards.
type Config struct {
	Paths Paths `yaml:"-"`

	// Port is the bridge's listen port on 127.0.0.1. 0 picks a free port.
	Port int `yaml:"port"`
	// WorkerPort is where the resolver worker pool listens.
	WorkerPort int `yaml:"worker_port"`

	Store    StoreConfig    `yaml:"store"`
	Resolver ResolverConfig `yaml:"resolver"`
	Search   SearchConfig   `yaml:"search"`
}

// StoreConfig configures the relational connection pool.
type StoreConfig struct {
	// PoolSize bounds simultaneously open connections. Callers suspend
	// when every connection is in use.
	PoolSize int `yaml:"pool_size"`
	// BusyTimeout is how long a connection waits on a locked database
	// before reporting SQLITE_BUSY.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ResolverConfig configures the resolver invocation proxy.
type ResolverConfig struct {
	// QueueSize is the capacity of the invocation channel. Senders block
	// when it is full.
	QueueSize int `yaml:"queue_size"`
	// Workers is the number of concurrent forwards to the worker pool.
	Workers int `yaml:"workers"`
	// Timeout bounds one forward. Zero means no timeout: timeout policy
	// belongs to the caller.
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig configures the search subsystem.
type SearchConfig struct {
	// MaxLimit is the largest page size a search may request.
	MaxLimit int `yaml:"max_limit"`
}

// Default returns the default configuration for the given project layout.
func Default(paths Paths) Config {
	return Config{
		Paths:      paths,
		Port:       DefaultPort,
		WorkerPort: DefaultWorkerPort,
		Store: StoreConfig{
			PoolSize:    DefaultPoolSize,
			BusyTimeout: DefaultBusyTimeout,
		},
		Resolver: ResolverConfig{
			QueueSize: DefaultResolverQueueSize,
			Workers:   DefaultResolverWorkers,
		},
		Search: SearchConfig{
			MaxLimit: DefaultSearchMaxLimit,
		},
	}
}

// Overrides carries values set explicitly on the command line.
// A nil field leaves the file/default value in place.
type Overrides struct {
	Port       *int
	WorkerPort *int
}

// Load builds the configuration: defaults, then the YAML file at
// configPath (if non-empty; a missing file is an error only when the path
// was given explicitly), then overrides.
func Load(paths Paths, configPath string, explicit bool, overrides Overrides) (*Config, error) {
	cfg := Default(paths)

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := decodeYAML(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", configPath, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// optional file
		default:
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if overrides.Port != nil {
		cfg.Port = *overrides.Port
	}
	if overrides.WorkerPort != nil {
		cfg.WorkerPort = *overrides.WorkerPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.WorkerPort <= 0 || c.WorkerPort > 65535 {
		return fmt.Errorf("invalid worker port %d", c.WorkerPort)
	}
	if c.Store.PoolSize < 1 {
		return fmt.Errorf("store.pool_size must be at least 1, got %d", c.Store.PoolSize)
	}
	if c.Store.BusyTimeout < 0 {
		return fmt.Errorf("store.busy_timeout must not be negative")
	}
	if c.Resolver.QueueSize < 1 {
		return fmt.Errorf("resolver.queue_size must be at least 1, got %d", c.Resolver.QueueSize)
	}
	if c.Resolver.Workers < 1 {
		return fmt.Errorf("resolver.workers must be at least 1, got %d", c.Resolver.Workers)
	}
	if c.Resolver.Timeout < 0 {
		return fmt.Errorf("resolver.timeout must not be negative")
	}
	if c.Search.MaxLimit < 1 {
		return fmt.Errorf("search.max_limit must be at least 1, got %d", c.Search.MaxLimit)
	}
	return nil
}
