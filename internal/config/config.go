// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the benchtrack configuration file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/benchtrack/benchdetect"
	"golang.org/x/benchtrack/benchseries"
	"golang.org/x/benchtrack/benchunit"
	"gopkg.in/yaml.v3"
)

// Config is the contents of a benchtrack.yaml file.
type Config struct {
	// Group is the group key used when a command does not name one.
	Group string `yaml:"group"`

	Detector Detector `yaml:"detector"`
	Storage  Storage  `yaml:"storage"`
	Retry    Retry    `yaml:"retry"`
	Server   Server   `yaml:"server"`
}

// Detector configures regression detection. Zero values select the
// detector's defaults.
type Detector struct {
	Window       int      `yaml:"window"`
	MinHistory   int      `yaml:"min_history"`
	Threshold    float64  `yaml:"threshold"`
	Policy       string   `yaml:"policy"`
	ZThreshold   float64  `yaml:"z_threshold"`
	NoiseCeiling float64  `yaml:"noise_ceiling"`
	Polarity     Polarity `yaml:"polarity"`
}

// Polarity overrides map benchmark names and units to "higher" or
// "lower".
type Polarity struct {
	Names map[string]string `yaml:"names"`
	Units map[string]string `yaml:"units"`
}

// Storage selects the backing store.
type Storage struct {
	// Backend is one of mem, dir, sqlite3, mysql or gcs.
	Backend string `yaml:"backend"`

	// Dir is the directory of the dir backend.
	Dir string `yaml:"dir"`

	// DSN is the data source name of the sqlite3 and mysql
	// backends.
	DSN string `yaml:"dsn"`

	// Bucket and CredentialsFile configure the gcs backend. An
	// empty CredentialsFile uses the application default
	// credentials.
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Retry bounds how appends retry lost races and slow backends.
type Retry struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
	IOTimeout       time.Duration `yaml:"io_timeout"`
}

// Server configures benchtrack serve.
type Server struct {
	Addr     string `yaml:"addr"`
	MaxConns int    `yaml:"max_conns"`
}

// Backends lists the valid values of Storage.Backend.
var Backends = []string{"mem", "dir", "sqlite3", "mysql", "gcs"}

// Default returns the configuration used when there is no file.
func Default() *Config {
	return &Config{
		Group: "default",
		Storage: Storage{
			Backend: "dir",
			Dir:     "benchtrack-data",
		},
		Retry: Retry{
			IOTimeout: 30 * time.Second,
		},
		Server: Server{
			Addr:     "localhost:8080",
			MaxConns: 64,
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := c.decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return c.Validate()
}

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	if _, err := benchdetect.ParsePolicy(c.Detector.Policy); err != nil {
		return fmt.Errorf("detector.policy: %w", err)
	}
	for _, m := range []struct {
		field string
		m     map[string]string
	}{{"detector.polarity.names", c.Detector.Polarity.Names}, {"detector.polarity.units", c.Detector.Polarity.Units}} {
		for k, v := range m.m {
			if _, err := benchunit.ParsePolarity(v); err != nil {
				return fmt.Errorf("%s[%q]: %w", m.field, k, err)
			}
		}
	}
	if err := c.DetectorConfig(nil).Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	switch c.Storage.Backend {
	case "mem":
	case "dir":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the dir backend")
		}
	case "sqlite3", "mysql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s backend", c.Storage.Backend)
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of %s", c.Storage.Backend, strings.Join(Backends, ", "))
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.InitialInterval < 0 || c.Retry.MaxElapsedTime < 0 || c.Retry.IOTimeout < 0 {
		return fmt.Errorf("retry: values must not be negative")
	}
	return nil
}

func polarities(m map[string]string) map[string]benchunit.Polarity {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]benchunit.Polarity, len(m))
	for k, v := range m {
		// Validate has already checked v.
		out[k], _ = benchunit.ParsePolarity(v)
	}
	return out
}

// DetectorConfig returns the detector configuration. warn receives
// warnings about units of unknown polarity.
func (c *Config) DetectorConfig(warn func(format string, args ...interface{})) *benchdetect.Config {
	policy, _ := benchdetect.ParsePolicy(c.Detector.Policy)
	return &benchdetect.Config{
		Window:       c.Detector.Window,
		MinHistory:   c.Detector.MinHistory,
		Threshold:    c.Detector.Threshold,
		Policy:       policy,
		ZThreshold:   c.Detector.ZThreshold,
		NoiseCeiling: c.Detector.NoiseCeiling,
		NamePolarity: polarities(c.Detector.Polarity.Names),
		UnitPolarity: polarities(c.Detector.Polarity.Units),
		Warn:         warn,
	}
}

// StoreOptions returns the series store options. warn receives
// retry notices and conflicting duplicate measurements.
func (c *Config) StoreOptions(warn func(format string, args ...interface{})) *benchseries.Options {
	return &benchseries.Options{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxElapsedTime:  c.Retry.MaxElapsedTime,
		IOTimeout:       c.Retry.IOTimeout,
		Warn:            warn,
	}
}
