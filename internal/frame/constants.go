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

// Package frame provides the wire framing used by fixed UHF readers:
// sync bytes, header layout, the BCC checksum and the tag CRC.
package frame

// Frame markers
const (
	Sync0 = 0xA5 // First sync byte
	Sync1 = 0x5A // Second sync byte
)

// Header layout
const (
	HeaderLength   = 6 // sync0 + sync1 + cmd + addr + len(2)
	TrailerLength  = 1 // BCC
	Overhead       = HeaderLength + TrailerLength
	MaxPayloadSize = 0xFFFF

	offsetCommand = 2
	offsetAddress = 3
	offsetLength  = 4
)

// MaxBuffered bounds how many unparsed bytes a Stream keeps before it
// starts discarding the oldest ones.
const MaxBuffered = MaxPayloadSize + Overhead
