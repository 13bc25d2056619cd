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

// Package emulator implements the reader side of the UHF protocol: a command
// dispatcher over an emulated device state and a synthetic inventory stream.
// It backs integration tests and the uhfsim tool.
package emulator

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/internal/clock"
	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// Handler answers one command. Returning a nil response and nil error sends
// nothing. A *RejectError produces an error frame with its status; any other
// error is answered with StatusBadParameter.
type Handler func(d *Device, payload []byte) ([]byte, error)

// RejectError makes a handler answer with an error frame.
type RejectError struct {
	Status byte
}

// Error implements the error interface
func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected with status 0x%02X", e.Status)
}

// Reject returns a RejectError for status.
func Reject(status byte) error {
	return &RejectError{Status: status}
}

var ack = []byte{uhf.StatusOK}

// Device is an emulated fixed reader.
//
// Handle is safe for concurrent use. Inventory reports are written to the
// output attached by Serve; without an output they are counted and dropped.
type Device struct {
	clock    clock.Clock
	logger   logrus.FieldLogger
	handlers map[byte]Handler
	out      io.Writer
	rng      *rand.Rand
	inv      *inventory
	epcs     [][]byte
	firmware string
	serial   string
	settings uhf.Settings
	oem      [256]byte

	reportInterval time.Duration
	maxPerTick     int
	seed           uint64
	unknown        UnknownPolicy

	mu      sync.Mutex
	writeMu sync.Mutex

	address  byte
	lightOn  bool
	buzzerOn bool
}

// New creates a Device with factory settings and the default dispatch table.
func New(opts ...Option) *Device {
	d := &Device{
		clock:          clock.Real(),
		logger:         discardLogger(),
		firmware:       defaultFirmware,
		serial:         defaultSerial,
		settings:       uhf.DefaultSettings(),
		reportInterval: defaultReportInterval,
		maxPerTick:     defaultMaxReportsPerTick,
		epcs:           parseEPCs(DefaultEPCs),
		seed:           uint64(time.Now().UnixNano()),
		address:        uhf.DefaultDeviceAddress,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.rng = rand.New(rand.NewPCG(d.seed, d.seed>>1|1))
	d.handlers = defaultHandlers()
	return d
}

// Register installs or replaces the handler for cmd.
func (d *Device) Register(cmd byte, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, cmd)
		return
	}
	d.handlers[cmd] = h
}

// Handle dispatches one frame and returns the encoded frames to send back.
func (d *Device) Handle(f frame.Frame) [][]byte {
	if f.Address != d.address && f.Address != uhf.BroadcastDeviceAddress {
		d.logger.WithField("address", f.Address).Debug("ignoring frame for another address")
		return nil
	}

	d.mu.Lock()
	h, ok := d.handlers[f.Command]
	policy := d.unknown
	d.mu.Unlock()

	if !ok {
		d.logger.WithField("cmd", fmt.Sprintf("0x%02X", f.Command)).Debug("unknown command")
		if policy == UnknownReject {
			return [][]byte{d.encode(uhf.CmdError, []byte{f.Command, uhf.StatusUnknownCommand})}
		}
		return [][]byte{d.encode(f.Command, ack)}
	}

	resp, err := h(d, f.Payload)
	if err != nil {
		status := uhf.StatusBadParameter
		var rej *RejectError
		if errors.As(err, &rej) {
			status = rej.Status
		}
		d.logger.WithError(err).WithField("cmd", uhf.CommandName(f.Command)).Debug("command rejected")
		return [][]byte{d.encode(uhf.CmdError, []byte{f.Command, status})}
	}
	if resp == nil {
		return nil
	}
	return [][]byte{d.encode(f.Command, resp)}
}

// Indicators returns the light and buzzer state set by the host.
func (d *Device) Indicators() (lightOn, buzzerOn bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lightOn, d.buzzerOn
}

// Settings returns the device's current parameters.
func (d *Device) Settings() uhf.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// Inventorying reports whether the report task is running.
func (d *Device) Inventorying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inv != nil
}

// Close stops a running inventory.
func (d *Device) Close() {
	d.stopInventory()
}

func (d *Device) encode(cmd byte, payload []byte) []byte {
	return frame.MustEncode(cmd, d.address, payload)
}

// write sends an encoded frame to the attached output.
func (d *Device) write(data []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if d.out == nil {
		return nil
	}
	_, err := d.out.Write(data)
	return err
}

func (d *Device) attach(w io.Writer) {
	d.writeMu.Lock()
	d.out = w
	d.writeMu.Unlock()
}

func (d *Device) detach() {
	d.writeMu.Lock()
	d.out = nil
	d.writeMu.Unlock()
}

func (d *Device) reset() {
	d.stopInventory()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = uhf.DefaultSettings()
	d.lightOn, d.buzzerOn = false, false
	d.oem = [256]byte{}
}

func parseEPCs(epcs []string) [][]byte {
	out := make([][]byte, 0, len(epcs))
	for _, s := range epcs {
		b, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil || len(b) == 0 {
			continue
		}
		out = append(out, b)
	}
	return out
}
