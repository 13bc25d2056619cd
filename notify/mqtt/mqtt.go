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

// Package mqtt publishes gate alerts to an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/ZaparooProject/go-uhf/gate"
)

const (
	// DefaultTopicPrefix roots every published topic.
	DefaultTopicPrefix = "uhfgate"
	defaultPort        = 1883
	defaultTLSPort     = 8883
	disconnectQuiesce  = 250
)

// ErrNotConnected is returned when publishing before Connect succeeded.
var ErrNotConnected = errors.New("mqtt not connected")

// Config holds broker settings. An empty Host disables publishing.
type Config struct {
	Host        string `yaml:"host"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	CACert      string `yaml:"ca_cert"`
	ClientCert  string `yaml:"client_cert"`
	ClientKey   string `yaml:"client_key"`
	Port        int    `yaml:"port"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// Publisher sends alert events. A Publisher built from a Config without a
// host is disabled and every call is a no-op.
type Publisher struct {
	client paho.Client
	logger logrus.FieldLogger
	prefix string
	qos    byte
	retain bool
}

var _ gate.Notifier = (*Publisher)(nil)

// New builds a publisher. It does not connect.
func New(cfg Config, logger logrus.FieldLogger) (*Publisher, error) {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	p := &Publisher{
		logger: logger.WithField("component", "mqtt"),
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
	}
	if p.prefix == "" {
		p.prefix = DefaultTopicPrefix
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: qos %d out of range", cfg.QoS)
	}
	if cfg.Host == "" {
		p.logger.Info("MQTT disabled (no host configured)")
		return p, nil
	}

	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.WithError(err).Warn("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		p.logger.Info("MQTT connection established")
	})
	p.client = paho.NewClient(opts)
	return p, nil
}

func clientOptions(cfg Config) (*paho.ClientOptions, error) {
	hasTLS := cfg.CACert != "" || cfg.ClientCert != ""
	scheme, port := "tcp", defaultPort
	var tlsConfig *tls.Config
	if hasTLS {
		var err error
		if tlsConfig, err = buildTLSConfig(cfg); err != nil {
			return nil, fmt.Errorf("mqtt: build TLS config: %w", err)
		}
		scheme, port = "ssl", defaultTLSPort
	}
	if cfg.Port != 0 {
		port = cfg.Port
	}
	clientID := cfg.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = "uhfgate-" + host
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, port)).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	return opts, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.client != nil
}

// Connect connects to the broker. With SetConnectRetry the client keeps
// retrying in the background, so ctx bounds only the first attempt.
func (p *Publisher) Connect(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if !p.Enabled() {
		return
	}
	p.client.Disconnect(disconnectQuiesce)
}

// AlertTopic returns the topic alerts from reader are published on.
func (p *Publisher) AlertTopic(reader string) string {
	return p.prefix + "/alert/" + reader
}

type alertMessage struct {
	EPC         string `json:"epc"`
	AssetNumber string `json:"asset_number"`
	AssetName   string `json:"asset_name,omitempty"`
	Reader      string `json:"reader"`
	Time        string `json:"time"`
	RSSI        int8   `json:"rssi"`
}

func encodeAlert(a gate.AlertEvent) ([]byte, error) {
	return json.Marshal(alertMessage{
		EPC:         a.EPC,
		AssetNumber: a.AssetNumber,
		AssetName:   a.AssetName,
		Reader:      a.ReaderName,
		RSSI:        a.RSSI,
		Time:        a.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// NotifyAlert implements gate.Notifier
func (p *Publisher) NotifyAlert(ctx context.Context, a gate.AlertEvent) error {
	if !p.Enabled() {
		return nil
	}
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	payload, err := encodeAlert(a)
	if err != nil {
		return fmt.Errorf("mqtt encode alert: %w", err)
	}
	topic := p.AlertTopic(a.ReaderName)
	if err := wait(ctx, p.client.Publish(topic, p.qos, p.retain, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	p.logger.WithFields(logrus.Fields{"topic": topic, "epc": a.EPC}).Debug("alert published")
	return nil
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
