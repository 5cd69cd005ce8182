// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package config loads the settings shared by tinymq programs.
//
// Settings start from built-in defaults, are optionally replaced by a YAML
// file, and are finally overridden by environment variables. For each key K,
// the variable TINYMQ_K is used if set, otherwise K if set. If TINYMQ_ENV is
// "production", debug logging is off unless DEBUG is set explicitly.
//
// Only the keys listed in [Keys] are recognized.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/creachadair/tinymq"
	"github.com/creachadair/tinymq/broker"
	"github.com/creachadair/tinymq/channel"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of the preferred environment variable for each key.
const EnvPrefix = "TINYMQ_"

// Config holds the settings of a tinymq program.
type Config struct {
	Debug         bool   `yaml:"debug"`
	ComponentName string `yaml:"component_name"`

	// Intervals, in milliseconds.
	PingBaseInterval  int `yaml:"ping_base_interval"`
	InactivityTimeout int `yaml:"inactivity_timeout"`

	ClientPort int    `yaml:"client_port"`
	WorkerPort int    `yaml:"worker_port"`
	ClientURI  string `yaml:"client_uri"`
	WorkerURI  string `yaml:"worker_uri"`

	// Nominal pool sizes, used to scale the ping interval.
	ClientInstances int `yaml:"client_instances"`
	WorkerInstances int `yaml:"worker_instances"`

	// Overrides lists the environment variables that were applied, in order.
	Overrides []string `yaml:"-"`
}

// Default returns the default settings.
func Default() *Config {
	return &Config{
		Debug:             true,
		ComponentName:     "tinymq",
		PingBaseInterval:  int(tinymq.DefaultPingBase / time.Millisecond),
		InactivityTimeout: int(tinymq.DefaultInactivityTimeout / time.Millisecond),
		ClientPort:        5559,
		WorkerPort:        5560,
		ClientURI:         "tcp://localhost:5559",
		WorkerURI:         "tcp://localhost:5560",
		ClientInstances:   tinymq.DefaultClientInstances,
		WorkerInstances:   tinymq.DefaultWorkerInstances,
	}
}

// Keys lists the recognized environment keys.
var Keys = []string{
	"DEBUG", "COMPONENT_NAME",
	"PING_BASE_INTERVAL", "INACTIVITY_TIMEOUT",
	"CLIENT_PORT", "WORKER_PORT", "CLIENT_URI", "WORKER_URI",
	"CLIENT_INSTANCES", "WORKER_INSTANCES",
}

// field returns a pointer to the field of c for the given key.
func (c *Config) field(key string) any {
	switch key {
	case "DEBUG":
		return &c.Debug
	case "COMPONENT_NAME":
		return &c.ComponentName
	case "PING_BASE_INTERVAL":
		return &c.PingBaseInterval
	case "INACTIVITY_TIMEOUT":
		return &c.InactivityTimeout
	case "CLIENT_PORT":
		return &c.ClientPort
	case "WORKER_PORT":
		return &c.WorkerPort
	case "CLIENT_URI":
		return &c.ClientURI
	case "WORKER_URI":
		return &c.WorkerURI
	case "CLIENT_INSTANCES":
		return &c.ClientInstances
	case "WORKER_INSTANCES":
		return &c.WorkerInstances
	}
	panic(fmt.Sprintf("unknown key %q", key))
}

// A LookupFunc reports the value of an environment variable and whether it
// is set. The os.LookupEnv function satisfies it.
type LookupFunc func(name string) (string, bool)

// Load returns the settings from the defaults, the YAML file at path if path
// is not empty, and the environment variables reported by lookup. If lookup
// is nil, os.LookupEnv is used.
func Load(path string, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()
	if env, ok := lookup(EnvPrefix + "ENV"); ok && env == "production" {
		cfg.Debug = false
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.Parse(data); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse replaces the settings in c with those defined in the YAML document
// data. Keys not defined in data are left unchanged; unknown keys are an
// error.
func (c *Config) Parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	for _, key := range Keys {
		name := EnvPrefix + key
		val, ok := lookup(name)
		if !ok {
			name = key
			val, ok = lookup(name)
		}
		if !ok {
			continue
		}
		if err := set(c.field(key), val); err != nil {
			return fmt.Errorf("environment %s: %w", name, err)
		}
		c.Overrides = append(c.Overrides, name)
	}
	return nil
}

func set(v any, s string) error {
	switch t := v.(type) {
	case *bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*t = b
	case *int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*t = n
	case *string:
		*t = s
	default:
		panic(fmt.Sprintf("unsupported field type %T", v))
	}
	return nil
}

// Validate reports an error if the settings in c are not usable.
func (c *Config) Validate() error {
	switch {
	case c.PingBaseInterval <= 0:
		return fmt.Errorf("ping base interval must be positive, got %d", c.PingBaseInterval)
	case c.InactivityTimeout <= 0:
		return fmt.Errorf("inactivity timeout must be positive, got %d", c.InactivityTimeout)
	case c.ClientInstances <= 0 || c.WorkerInstances <= 0:
		return fmt.Errorf("instance counts must be positive, got %d clients and %d workers",
			c.ClientInstances, c.WorkerInstances)
	}
	return nil
}

// PingBase returns the base heartbeat interval.
func (c *Config) PingBase() time.Duration {
	return time.Duration(c.PingBaseInterval) * time.Millisecond
}

// Options returns role options for these settings, logging to log (if not
// nil) and dialing brokers with ZeroMQ sockets.
func (c *Config) Options(log *zerolog.Logger) *tinymq.Options {
	return &tinymq.Options{
		Dialer:            channel.ZMQ(c.SocketOptions(log)),
		Logger:            log,
		Debug:             c.Debug,
		PingBase:          c.PingBase(),
		InactivityTimeout: time.Duration(c.InactivityTimeout) * time.Millisecond,
		ClientInstances:   c.ClientInstances,
		WorkerInstances:   c.WorkerInstances,
	}
}

// BrokerOptions returns broker options for these settings.
func (c *Config) BrokerOptions(log *zerolog.Logger) *broker.Options {
	return &broker.Options{
		Logger:       log,
		PingInterval: c.PingBase(),
		Socket:       c.SocketOptions(log),
	}
}

// SocketOptions returns socket options for these settings. Brokers that are
// not yet listening are retried until the dial is abandoned.
func (c *Config) SocketOptions(log *zerolog.Logger) *channel.ZMQOptions {
	return &channel.ZMQOptions{
		Logger:     log,
		Debug:      c.Debug,
		MaxRetries: -1,
	}
}
