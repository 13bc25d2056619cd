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

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-uhf/gate"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newToken(err error, ready bool) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	if ready {
		close(t.done)
	}
	return t
}

func (t *doneToken) Wait() bool                     { <-t.done; return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type published struct {
	payload  []byte
	topic    string
	qos      byte
	retained bool
}

// fakeClient implements the calls Publisher makes; anything else panics
// through the nil embedded interface.
type fakeClient struct {
	paho.Client
	publishErr error
	messages   []published
	open       bool
	stall      bool
	mu         sync.Mutex
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Connect() paho.Token {
	c.open = true
	return newToken(nil, true)
}

func (c *fakeClient) Disconnect(uint) { c.open = false }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newToken(c.publishErr, !c.stall)
}

func testPublisher(t *testing.T, cfg Config) (*Publisher, *fakeClient) {
	t.Helper()
	p, err := New(cfg, nil)
	require.NoError(t, err)
	fc := &fakeClient{}
	p.client = fc
	return p, fc
}

var alert = gate.AlertEvent{
	Timestamp:   time.Date(2025, 9, 10, 8, 0, 36, 0, time.UTC),
	EPC:         "E2801170000002085C1A1C50",
	AssetNumber: "A-100",
	AssetName:   "Laptop",
	ReaderName:  "dock-1",
	RSSI:        -48,
}

func TestDisabledPublisher(t *testing.T) {
	t.Parallel()

	p, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.NotifyAlert(context.Background(), alert))
	p.Close()
}

func TestNotifyAlert(t *testing.T) {
	t.Parallel()

	p, fc := testPublisher(t, Config{TopicPrefix: "site-a/", QoS: 1})
	ctx := context.Background()

	require.ErrorIs(t, p.NotifyAlert(ctx, alert), ErrNotConnected)

	require.NoError(t, p.Connect(ctx))
	require.NoError(t, p.NotifyAlert(ctx, alert))
	require.Len(t, fc.messages, 1)

	msg := fc.messages[0]
	assert.Equal(t, "site-a/alert/dock-1", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.False(t, msg.retained)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &body))
	assert.Equal(t, "A-100", body["asset_number"])
	assert.Equal(t, "dock-1", body["reader"])
	assert.Equal(t, "2025-09-10T08:00:36Z", body["time"])
	assert.InDelta(t, -48, body["rssi"], 0)

	p.Close()
	assert.False(t, fc.open)
}

func TestNotifyAlert_Errors(t *testing.T) {
	t.Parallel()

	p, fc := testPublisher(t, Config{})
	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, "uhfgate/alert/dock-1", p.AlertTopic("dock-1"))

	broker := errors.New("not authorized")
	fc.publishErr = broker
	require.ErrorIs(t, p.NotifyAlert(context.Background(), alert), broker)

	fc.publishErr = nil
	fc.stall = true
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.NotifyAlert(ctx, alert), context.DeadlineExceeded)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Host: "broker", QoS: 3}, nil)
	require.Error(t, err)

	_, err = New(Config{Host: "broker", CACert: filepath.Join(t.TempDir(), "missing.pem")}, nil)
	require.ErrorContains(t, err, "read CA cert")

	p, err := New(Config{Host: "broker", Port: 1884, ClientID: "gate-test"}, nil)
	require.NoError(t, err)
	assert.True(t, p.Enabled())
}
