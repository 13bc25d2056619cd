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

package emulator

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZaparooProject/go-uhf/internal/clock"
)

// UnknownPolicy selects how commands without a handler are answered.
type UnknownPolicy int

const (
	// UnknownAck answers with a one byte OK acknowledgement echoing the
	// command code. Lenient host tooling relies on this.
	UnknownAck UnknownPolicy = iota
	// UnknownReject answers with an error frame carrying
	// StatusUnknownCommand, the way a strict device would.
	UnknownReject
)

// String implements fmt.Stringer
func (p UnknownPolicy) String() string {
	switch p {
	case UnknownAck:
		return "ack"
	case UnknownReject:
		return "reject"
	default:
		return "unknown"
	}
}

const (
	defaultReportInterval    = time.Second
	defaultMaxReportsPerTick = 3
	defaultFirmware          = "UHF-EMU 2.1.0"
	defaultSerial            = "EMU0000001"
)

// DefaultEPCs is the tag population used when none is configured.
var DefaultEPCs = []string{
	"E2801170000002085C1A1C50",
	"E2801170000002085C1A1C51",
	"300833B2DDD9014000000000",
	"042010042025091000000600",
}

// Option configures a Device.
type Option func(*Device)

// WithUnknownPolicy selects the answer for unregistered commands.
func WithUnknownPolicy(p UnknownPolicy) Option {
	return func(d *Device) { d.unknown = p }
}

// WithReportInterval sets the inventory tick.
func WithReportInterval(interval time.Duration) Option {
	return func(d *Device) {
		if interval > 0 {
			d.reportInterval = interval
		}
	}
}

// WithMaxReportsPerTick bounds how many reports one tick emits.
func WithMaxReportsPerTick(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.maxPerTick = n
		}
	}
}

// WithEPCs sets the tag population reports are drawn from. Entries that are
// not valid hex are ignored.
func WithEPCs(epcs []string) Option {
	return func(d *Device) { d.epcs = parseEPCs(epcs) }
}

// WithIdentity sets the firmware version and serial number strings. Empty
// values keep the defaults.
func WithIdentity(firmware, serial string) Option {
	return func(d *Device) {
		if firmware != "" {
			d.firmware = firmware
		}
		if serial != "" {
			d.serial = serial
		}
	}
}

// WithAddress sets the device address. Frames for other addresses, other
// than broadcast, are ignored.
func WithAddress(addr byte) Option {
	return func(d *Device) { d.address = addr }
}

// WithSeed makes RSSI, antenna and EPC choice reproducible.
func WithSeed(seed uint64) Option {
	return func(d *Device) { d.seed = seed }
}

// WithClock sets the time source driving the inventory ticker.
func WithClock(c clock.Clock) Option {
	return func(d *Device) { d.clock = c }
}

// WithLogger sets the device logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
