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

/*
Package uhf is a pure Go library for driving fixed UHF RFID readers that
speak the A5 5A framed command protocol over TCP or RS-232.

A Reader owns one connection. It pushes the saved antenna, dwell and buzzer
settings on every connect, runs continuous inventory and turns inventory
reports into TagSighting values delivered to subscribed Listeners. A Manager
holds a named set of readers and fans their events out to shared listeners.

Features:
  - TCP and serial transports behind the Dialer interface
  - Lifecycle states Disconnected, Connecting, Connected, Reading and Error
  - Light and buzzer control with indicator state tracking
  - Antenna power, dwell time, system parameter and OEM register access
  - Report decoding with CRC checking and RSSI/antenna extraction
  - Classified TransportError values for retry decisions

Basic Usage:

	import (
	    uhf "github.com/ZaparooProject/go-uhf"
	    "github.com/ZaparooProject/go-uhf/transport/tcp"
	)

	r := uhf.NewReader(uhf.ReaderConfig{
	    Name:     "dock-1",
	    Dial:     tcp.Dialer("10.0.0.21:6000"),
	    Settings: uhf.DefaultSettings(),
	}, uhf.WithListener(uhf.ListenerFuncs{
	    Tag: func(reader string, s uhf.TagSighting) {
	        fmt.Println(reader, s.EPC, s.RSSI)
	    },
	}))

	if err := r.Connect(ctx); err != nil {
	    return err
	}
	defer r.Disconnect(ctx)

	if err := r.StartInventory(ctx); err != nil {
	    return err
	}

Listener callbacks run on the reader's I/O goroutine. They must not call
back into the same Reader synchronously; hand the work to another goroutine
instead.

The emulator package implements the device side of the protocol for tests
and for the uhfsim command.
*/
package uhf
