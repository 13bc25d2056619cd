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

package uhf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZaparooProject/go-uhf/internal/frame"
	"github.com/ZaparooProject/go-uhf/internal/retry"
)

// ReaderConfig describes one fixed reader.
type ReaderConfig struct {
	// Dial opens the link to the reader
	Dial Dialer
	// Name identifies the reader in events, logs and persisted reads
	Name string
	// Settings are re-applied after every successful connect
	Settings Settings
	// Address is the device address placed in every frame
	Address byte
}

// Reader is the host side of one reader connection.
//
// Connect, Disconnect, StartInventory and StopInventory are serialized per
// reader; separate readers never block each other. Commands that need a live
// session are refused with ErrNotConnected unless the status is Connected or
// Reading.
type Reader struct {
	logger    logrus.FieldLogger
	listeners *listenerSet
	session   *session
	now       func() time.Time
	name      string
	firmware  string
	dial      Dialer
	settings  Settings

	// lifecycle serializes state transitions
	lifecycle sync.Mutex
	// mu guards the fields below and session
	mu sync.RWMutex

	responseTimeout time.Duration
	status          Status
	address         byte
	lightOn         bool
	buzzerOn        bool
}

// NewReader creates a disconnected reader.
func NewReader(cfg ReaderConfig, opts ...Option) *Reader {
	r := &Reader{
		name:            cfg.Name,
		dial:            cfg.Dial,
		address:         cfg.Address,
		settings:        cfg.Settings,
		listeners:       &listenerSet{},
		logger:          discardLogger(),
		now:             time.Now,
		responseTimeout: responseTimeout,
		status:          StatusDisconnected,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("reader", r.name)
	return r
}

// Name returns the configured reader name.
func (r *Reader) Name() string { return r.name }

// Status returns the current lifecycle state.
func (r *Reader) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Settings returns a copy of the saved settings.
func (r *Reader) Settings() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// Indicators returns the last acknowledged light and buzzer states.
func (r *Reader) Indicators() (lightOn, buzzerOn bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lightOn, r.buzzerOn
}

// FirmwareVersion returns the version reported on the last connect.
func (r *Reader) FirmwareVersion() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.firmware
}

// Subscribe registers l for this reader's events and returns a function that
// removes it.
func (r *Reader) Subscribe(l Listener) (unsubscribe func()) {
	return r.listeners.add(l)
}

// Connect dials the reader and re-applies the saved settings.
func (r *Reader) Connect(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.Status().Active() {
		return ErrAlreadyConnected
	}
	if r.dial == nil {
		r.setStatus(StatusError)
		return fmt.Errorf("connect %s: %w", r.name, ErrNoDialer)
	}

	r.setStatus(StatusConnecting)
	r.log(LogInfo, "connecting")

	t, err := r.dial(ctx)
	if err != nil {
		r.log(LogError, fmt.Sprintf("connect failed: %v", err))
		r.setStatus(StatusError)
		return fmt.Errorf("connect %s: %w", r.name, err)
	}
	if err := t.SetReadTimeout(readTimeout); err != nil {
		_ = t.Close()
		r.log(LogError, fmt.Sprintf("connect failed: %v", err))
		r.setStatus(StatusError)
		return fmt.Errorf("connect %s: %w", r.name, err)
	}

	s := newSession(t, r.address)
	s.onReport = r.handleReport
	s.onDiscard = r.handleDiscard
	s.onFailure = func(err error) { r.handleFailure(s, err) }

	r.mu.Lock()
	r.session = s
	r.lightOn, r.buzzerOn = false, false
	r.mu.Unlock()

	go s.run()

	r.setStatus(StatusConnected)
	r.log(LogInfo, "connected")

	r.applySettings(ctx, s)

	if f, err := r.exchange(ctx, s, CmdGetFirmwareVersion, nil); err != nil {
		r.log(LogWarn, fmt.Sprintf("firmware query failed: %v", err))
	} else {
		r.mu.Lock()
		r.firmware = string(f.Payload)
		r.mu.Unlock()
		r.log(LogInfo, "firmware "+string(f.Payload))
	}
	return nil
}

// applySettings pushes the saved buzzer, antenna and dwell settings to a
// freshly connected device. Failures are logged and tolerated.
func (r *Reader) applySettings(ctx context.Context, s *session) {
	settings := r.Settings()
	antenna, _ := settings.Antenna.Clamp().MarshalBinary()

	steps := []struct {
		name    string
		payload []byte
		cmd     byte
	}{
		{name: "buzzer enable", cmd: CmdSetBuzzerEnable, payload: []byte{boolByte(settings.BuzzerEnabled)}},
		{name: "antenna config", cmd: CmdSetAntennaConfig, payload: antenna},
		{name: "dwell time", cmd: CmdSetDwellTime, payload: EncodeDwellTime(settings.DwellTime)},
	}
	for _, step := range steps {
		if err := r.command(ctx, s, step.cmd, step.payload); err != nil {
			r.log(LogWarn, fmt.Sprintf("restoring %s failed: %v", step.name, err))
		}
	}
}

// Disconnect ends the session from any state. A running inventory is stopped
// first on a best-effort basis.
func (r *Reader) Disconnect(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	s := r.session
	status := r.status
	r.session = nil
	r.mu.Unlock()

	if s != nil {
		if status == StatusReading {
			if _, err := r.exchange(ctx, s, CmdStopInventory, nil); err != nil {
				r.log(LogDebug, fmt.Sprintf("stop before disconnect failed: %v", err))
			}
		}
		if err := s.close(); err != nil {
			r.log(LogDebug, fmt.Sprintf("close: %v", err))
		}
	}

	r.mu.Lock()
	changed := r.lightOn || r.buzzerOn
	r.lightOn, r.buzzerOn = false, false
	r.mu.Unlock()
	if changed {
		r.emitIndicator()
	}

	if status != StatusDisconnected {
		r.setStatus(StatusDisconnected)
		r.log(LogInfo, "disconnected")
	}
	return nil
}

// StartInventory moves a connected reader into Reading. The device answers
// with a stream of inventory reports rather than a response.
func (r *Reader) StartInventory(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	s, status := r.activeSession()
	switch status {
	case StatusReading:
		return nil
	case StatusConnected:
	default:
		r.refuse("start inventory")
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(CmdStartInventory, nil); err != nil {
		r.log(LogError, fmt.Sprintf("start inventory failed: %v", err))
		return err
	}
	r.setStatus(StatusReading)
	r.log(LogInfo, "inventory started")
	return nil
}

// StopInventory moves a reading reader back to Connected and returns the
// device's counters for the run.
func (r *Reader) StopInventory(ctx context.Context) (StopStats, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	s, status := r.activeSession()
	if status != StatusReading {
		if status == StatusConnected {
			return StopStats{}, ErrNotReading
		}
		r.refuse("stop inventory")
		return StopStats{}, ErrNotConnected
	}

	f, err := r.exchange(ctx, s, CmdStopInventory, nil)
	// the device is considered stopped even when the answer is lost
	if r.Status() == StatusReading {
		r.setStatus(StatusConnected)
	}
	if err != nil {
		r.log(LogWarn, fmt.Sprintf("stop inventory failed: %v", err))
		return StopStats{}, err
	}

	var stats StopStats
	if err := stats.UnmarshalBinary(f.Payload); err != nil {
		r.log(LogDebug, fmt.Sprintf("stop stats: %v", err))
		return StopStats{}, nil
	}
	r.log(LogInfo, fmt.Sprintf("inventory stopped: %d reports, %d unique tags",
		stats.TotalReports, stats.UniqueTags))
	return stats, nil
}

// LightOn switches the reader's light on.
func (r *Reader) LightOn(ctx context.Context) error { return r.setIndicator(ctx, CmdSetLight, true) }

// LightOff switches the reader's light off.
func (r *Reader) LightOff(ctx context.Context) error { return r.setIndicator(ctx, CmdSetLight, false) }

// BuzzerOn starts the buzzer.
func (r *Reader) BuzzerOn(ctx context.Context) error { return r.setIndicator(ctx, CmdSetBuzzer, true) }

// BuzzerOff stops the buzzer.
func (r *Reader) BuzzerOff(ctx context.Context) error {
	return r.setIndicator(ctx, CmdSetBuzzer, false)
}

func (r *Reader) setIndicator(ctx context.Context, cmd byte, on bool) error {
	s, status := r.activeSession()
	if !status.Active() {
		r.refuse(CommandName(cmd))
		return ErrNotConnected
	}
	if err := r.command(ctx, s, cmd, []byte{boolByte(on)}); err != nil {
		r.log(LogWarn, fmt.Sprintf("%s failed: %v", CommandName(cmd), err))
		return err
	}

	r.mu.Lock()
	if cmd == CmdSetLight {
		r.lightOn = on
	} else {
		r.buzzerOn = on
	}
	r.mu.Unlock()
	r.emitIndicator()
	return nil
}

// SetAntennaConfig applies cfg and saves it for later reconnects.
func (r *Reader) SetAntennaConfig(ctx context.Context, cfg AntennaConfig) error {
	s, status := r.activeSession()
	if !status.Active() {
		r.refuse("set antenna config")
		return ErrNotConnected
	}
	cfg = cfg.Clamp()
	payload, _ := cfg.MarshalBinary()
	if err := r.command(ctx, s, CmdSetAntennaConfig, payload); err != nil {
		r.log(LogWarn, fmt.Sprintf("set antenna config failed: %v", err))
		return err
	}
	r.mu.Lock()
	r.settings.Antenna = cfg
	r.mu.Unlock()
	r.log(LogInfo, fmt.Sprintf("antenna config applied, ports %v", cfg.EnabledPorts()))
	return nil
}

// SetDwellTime applies the per-antenna dwell time and saves it.
func (r *Reader) SetDwellTime(ctx context.Context, d time.Duration) error {
	s, status := r.activeSession()
	if !status.Active() {
		r.refuse("set dwell time")
		return ErrNotConnected
	}
	if err := r.command(ctx, s, CmdSetDwellTime, EncodeDwellTime(d)); err != nil {
		r.log(LogWarn, fmt.Sprintf("set dwell time failed: %v", err))
		return err
	}
	r.mu.Lock()
	r.settings.DwellTime = d
	r.mu.Unlock()
	return nil
}

// SetBuzzerEnabled toggles whether the device beeps on reads, and saves it.
func (r *Reader) SetBuzzerEnabled(ctx context.Context, enabled bool) error {
	s, status := r.activeSession()
	if !status.Active() {
		r.refuse("set buzzer enable")
		return ErrNotConnected
	}
	if err := r.command(ctx, s, CmdSetBuzzerEnable, []byte{boolByte(enabled)}); err != nil {
		return err
	}
	r.mu.Lock()
	r.settings.BuzzerEnabled = enabled
	r.mu.Unlock()
	return nil
}

// Heartbeat checks that the device answers.
func (r *Reader) Heartbeat(ctx context.Context) error {
	s, status := r.activeSession()
	if !status.Active() {
		return ErrNotConnected
	}
	return r.command(ctx, s, CmdHeartbeat, nil)
}

// SystemParams reads the device's full parameter snapshot.
func (r *Reader) SystemParams(ctx context.Context) (SystemParams, error) {
	s, status := r.activeSession()
	if !status.Active() {
		return SystemParams{}, ErrNotConnected
	}
	f, err := r.exchange(ctx, s, CmdGetAllParams, nil)
	if err != nil {
		return SystemParams{}, err
	}
	var params SystemParams
	if err := params.UnmarshalBinary(f.Payload); err != nil {
		return SystemParams{}, err
	}
	return params, nil
}

// SerialNumber reads the device serial number.
func (r *Reader) SerialNumber(ctx context.Context) (string, error) {
	s, status := r.activeSession()
	if !status.Active() {
		return "", ErrNotConnected
	}
	f, err := r.exchange(ctx, s, CmdGetSerialNumber, nil)
	if err != nil {
		return "", err
	}
	return string(f.Payload), nil
}

// ReadOEMRegister reads one vendor register.
func (r *Reader) ReadOEMRegister(ctx context.Context, reg byte) (byte, error) {
	s, status := r.activeSession()
	if !status.Active() {
		return 0, ErrNotConnected
	}
	f, err := r.exchange(ctx, s, CmdReadOEMRegister, []byte{reg})
	if err != nil {
		return 0, err
	}
	if len(f.Payload) < 2 || f.Payload[0] != reg {
		return 0, fmt.Errorf("%w: register read %s", ErrMalformedResponse, f)
	}
	return f.Payload[1], nil
}

// WriteOEMRegister writes one vendor register.
func (r *Reader) WriteOEMRegister(ctx context.Context, reg, value byte) error {
	s, status := r.activeSession()
	if !status.Active() {
		return ErrNotConnected
	}
	return r.command(ctx, s, CmdWriteOEMRegister, []byte{reg, value})
}

func (r *Reader) activeSession() (*session, Status) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil && r.status.Active() {
		// teardown in progress
		return nil, StatusDisconnected
	}
	return r.session, r.status
}

// exchange performs one request, retrying when the answer times out.
func (r *Reader) exchange(ctx context.Context, s *session, cmd byte, payload []byte) (frame.Frame, error) {
	return retry.Do(ctx, retry.Config{
		Description: CommandName(cmd),
		MaxRetries:  requestRetries,
		OnRetry: func(attempt int, err error) {
			r.log(LogDebug, fmt.Sprintf("%s retry %d: %v", CommandName(cmd), attempt, err))
		},
	}, func(ctx context.Context) (frame.Frame, bool, error) {
		f, err := s.request(ctx, cmd, payload, r.responseTimeout)
		return f, errors.Is(err, ErrResponseTimeout), err
	})
}

// command performs an exchange that answers with a status acknowledgement.
func (r *Reader) command(ctx context.Context, s *session, cmd byte, payload []byte) error {
	f, err := r.exchange(ctx, s, cmd, payload)
	if err != nil {
		return err
	}
	if len(f.Payload) > 0 && f.Payload[0] != StatusOK {
		return &ProtocolError{Cmd: cmd, Status: f.Payload[0]}
	}
	return nil
}

func (r *Reader) handleReport(f frame.Frame) {
	sighting, err := DecodeReport(f.Payload, r.now())
	if err != nil {
		r.log(LogDebug, fmt.Sprintf("dropping report: %v", err))
		return
	}
	if !sighting.CRCValid {
		r.log(LogDebug, "report CRC mismatch for "+sighting.EPC)
	}
	r.listeners.each(func(l Listener) { l.OnTag(r.name, sighting) })
}

func (r *Reader) handleDiscard(reason string, err error) {
	if err != nil {
		reason = fmt.Sprintf("%s: %v", reason, err)
	}
	r.log(LogDebug, "dropping "+reason)
}

// handleFailure runs on the I/O goroutine when the transport fails. It must
// not take the lifecycle lock since Disconnect holds it while waiting for
// that goroutine.
func (r *Reader) handleFailure(s *session, err error) {
	r.mu.Lock()
	if r.session != s {
		r.mu.Unlock()
		return
	}
	r.session = nil
	r.status = StatusError
	r.lightOn, r.buzzerOn = false, false
	r.mu.Unlock()

	r.log(LogError, fmt.Sprintf("connection lost: %v", err))
	r.listeners.each(func(l Listener) { l.OnStatus(r.name, StatusError) })
}

func (r *Reader) refuse(op string) {
	r.log(LogWarn, fmt.Sprintf("%s refused: reader is %s", op, r.Status()))
}

func (r *Reader) setStatus(status Status) {
	r.mu.Lock()
	if r.status == status {
		r.mu.Unlock()
		return
	}
	r.status = status
	r.mu.Unlock()

	r.logger.WithField("status", status.String()).Debug("status changed")
	r.listeners.each(func(l Listener) { l.OnStatus(r.name, status) })
}

func (r *Reader) emitIndicator() {
	light, buzzer := r.Indicators()
	r.listeners.each(func(l Listener) { l.OnIndicator(r.name, light, buzzer) })
}

func (r *Reader) log(level LogLevel, message string) {
	switch level {
	case LogDebug:
		r.logger.Debug(message)
	case LogInfo:
		r.logger.Info(message)
	case LogWarn:
		r.logger.Warn(message)
	default:
		r.logger.Error(message)
	}
	r.listeners.each(func(l Listener) { l.OnLog(r.name, level, message) })
}
