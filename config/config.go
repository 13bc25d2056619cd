// go-uhf
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-uhf.
//
// go-uhf is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-uhf is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-uhf; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package config loads the gate configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/notify/mqtt"
	"github.com/ZaparooProject/go-uhf/transport/serial"
	"github.com/ZaparooProject/go-uhf/transport/tcp"
)

// Transport names accepted in ReaderConfig.Transport.
const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the whole process configuration.
type Config struct {
	Log     LogConfig      `yaml:"log"`
	Store   StoreConfig    `yaml:"store"`
	Metrics MetricsConfig  `yaml:"metrics"`
	MQTT    mqtt.Config    `yaml:"mqtt"`
	Readers []ReaderConfig `yaml:"readers"`
	Gate    GateConfig     `yaml:"gate"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
}

// MetricsConfig enables the HTTP endpoint serving /metrics and /healthz.
// An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// GateConfig tunes correlation, warnings and persistence.
type GateConfig struct {
	AlertTTL        time.Duration `yaml:"alert_ttl"`
	WarningDuration time.Duration `yaml:"warning_duration"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	BatchWait       time.Duration `yaml:"batch_wait"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	BatchSize       int           `yaml:"batch_size"`
	RecentCapacity  int           `yaml:"recent_capacity"`
	WarningBuzzer   bool          `yaml:"warning_buzzer"`
}

// ReaderConfig describes one fixed reader.
type ReaderConfig struct {
	BuzzerEnabled *bool         `yaml:"buzzer_enabled"`
	Name          string        `yaml:"name"`
	Transport     string        `yaml:"transport"`
	Address       string        `yaml:"address"`
	Power         []uint8       `yaml:"power"`
	Dwell         time.Duration `yaml:"dwell"`
	Baud          int           `yaml:"baud"`
	AntennaMask   uint8         `yaml:"antenna_mask"`
	DeviceAddress uint8         `yaml:"device_address"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{Path: "uhfgate.db", PoolSize: 4},
		MQTT:  mqtt.Config{TopicPrefix: mqtt.DefaultTopicPrefix},
		Gate: GateConfig{
			AlertTTL:        30 * time.Second,
			WarningDuration: 3 * time.Second,
			RefreshInterval: time.Minute,
			BatchSize:       50,
			BatchWait:       500 * time.Millisecond,
			RecentCapacity:  200,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads path and overlays it on Default. The result is validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		invalid("log.format %q must be text or json", c.Log.Format)
	}
	if c.Store.Path == "" {
		invalid("store.path is required")
	}
	if c.Gate.AlertTTL <= 0 {
		invalid("gate.alert_ttl must be positive")
	}
	if c.Gate.RefreshInterval <= 0 {
		invalid("gate.refresh_interval must be positive")
	}
	if c.Gate.ShutdownTimeout <= 0 {
		invalid("gate.shutdown_timeout must be positive")
	}
	if c.Gate.WarningDuration < 0 || c.Gate.BatchWait < 0 {
		invalid("gate durations must not be negative")
	}
	if c.Gate.BatchSize < 0 || c.Gate.RecentCapacity < 0 {
		invalid("gate sizes must not be negative")
	}
	if c.MQTT.QoS > 2 {
		invalid("mqtt.qos %d out of range", c.MQTT.QoS)
	}

	seen := make(map[string]bool, len(c.Readers))
	for i, r := range c.Readers {
		if r.Name == "" {
			invalid("readers[%d].name is required", i)
		} else if seen[r.Name] {
			invalid("readers[%d].name %q is duplicated", i, r.Name)
		}
		seen[r.Name] = true

		switch strings.ToLower(r.Transport) {
		case "", TransportTCP, TransportSerial:
		default:
			invalid("readers[%d].transport %q must be tcp or serial", i, r.Transport)
		}
		if r.Address == "" {
			invalid("readers[%d].address is required", i)
		}
		if len(r.Power) > uhf.MaxAntennas {
			invalid("readers[%d].power has %d entries, at most %d", i, len(r.Power), uhf.MaxAntennas)
		}
		for _, p := range r.Power {
			if p > uhf.MaxPower {
				invalid("readers[%d].power %d exceeds %d dBm", i, p, uhf.MaxPower)
			}
		}
		if r.Dwell < 0 {
			invalid("readers[%d].dwell must not be negative", i)
		}
	}
	return errors.Join(errs...)
}

// Settings converts the reader entry to the settings pushed on connect.
// Unset fields keep the reader defaults; a single power value applies to
// every port.
func (r ReaderConfig) Settings() uhf.Settings {
	s := uhf.DefaultSettings()
	if r.AntennaMask != 0 {
		s.Antenna.EnableMask = r.AntennaMask
	}
	switch len(r.Power) {
	case 0:
	case 1:
		for i := range s.Antenna.Power {
			s.Antenna.Power[i] = r.Power[0]
		}
	default:
		copy(s.Antenna.Power[:], r.Power)
	}
	if r.Dwell > 0 {
		s.DwellTime = r.Dwell
	}
	if r.BuzzerEnabled != nil {
		s.BuzzerEnabled = *r.BuzzerEnabled
	}
	return s
}

// Dialer returns the transport dialer for the entry.
func (r ReaderConfig) Dialer() uhf.Dialer {
	if strings.EqualFold(r.Transport, TransportSerial) {
		baud := r.Baud
		if baud == 0 {
			baud = serial.DefaultBaudRate
		}
		return serial.Dialer(r.Address, baud)
	}
	return tcp.Dialer(r.Address)
}

// ReaderConfigs converts every entry for uhf.NewManager.
func (c Config) ReaderConfigs() []uhf.ReaderConfig {
	out := make([]uhf.ReaderConfig, 0, len(c.Readers))
	for _, r := range c.Readers {
		out = append(out, uhf.ReaderConfig{
			Name:     r.Name,
			Dial:     r.Dialer(),
			Settings: r.Settings(),
			Address:  r.DeviceAddress,
		})
	}
	return out
}
