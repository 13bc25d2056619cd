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

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing errors
var (
	ErrIncomplete      = errors.New("incomplete frame")
	ErrChecksum        = errors.New("frame checksum mismatch")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Frame is one decoded wire frame.
type Frame struct {
	Payload []byte
	Command byte
	Address byte
}

// Len returns the encoded size of the frame in bytes.
func (f Frame) Len() int {
	return Overhead + len(f.Payload)
}

// String implements fmt.Stringer for log lines.
func (f Frame) String() string {
	return fmt.Sprintf("cmd=0x%02X addr=0x%02X len=%d", f.Command, f.Address, len(f.Payload))
}

// Encode builds one wire frame:
// Sync0(1) + Sync1(1) + Cmd(1) + Addr(1) + Len(2, LE) + Payload(n) + BCC(1)
// BCC is the XOR of every byte from Cmd through the end of Payload.
func Encode(cmd, addr byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	buf := make([]byte, HeaderLength, Overhead+len(payload))
	buf[0] = Sync0
	buf[1] = Sync1
	buf[offsetCommand] = cmd
	buf[offsetAddress] = addr
	binary.LittleEndian.PutUint16(buf[offsetLength:], uint16(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, Checksum(buf[offsetCommand:]))
	return buf, nil
}

// MustEncode is Encode for payloads known to fit, such as the fixed-size
// responses built inside this module. It panics on oversized payloads.
func MustEncode(cmd, addr byte, payload []byte) []byte {
	out, err := Encode(cmd, addr, payload)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode parses the first frame in buf.
//
// The returned count is how many bytes of buf the caller may discard:
//   - on success it covers any skipped noise plus the whole frame
//   - on ErrIncomplete it is the offset of the sync pair, so a partially
//     received frame is never consumed
//   - on ErrChecksum it moves one byte past the bad sync pair so the next
//     call resynchronizes on the following header
//
// Decode never blocks and never reads past the end of buf.
func Decode(buf []byte) (Frame, int, error) {
	start := findSync(buf)
	if start < 0 {
		// Keep a trailing Sync0 because its partner may still be in flight.
		skip := len(buf)
		if skip > 0 && buf[skip-1] == Sync0 {
			skip--
		}
		return Frame{}, skip, ErrIncomplete
	}

	rest := buf[start:]
	if len(rest) < HeaderLength {
		return Frame{}, start, ErrIncomplete
	}

	length := int(binary.LittleEndian.Uint16(rest[offsetLength:]))
	total := Overhead + length
	if len(rest) < total {
		return Frame{}, start, ErrIncomplete
	}

	raw := rest[:total]
	if Checksum(raw[offsetCommand:total-TrailerLength]) != raw[total-TrailerLength] {
		return Frame{}, start + 1, ErrChecksum
	}

	payload := make([]byte, length)
	copy(payload, raw[HeaderLength:HeaderLength+length])
	return Frame{
		Command: raw[offsetCommand],
		Address: raw[offsetAddress],
		Payload: payload,
	}, start + total, nil
}

// findSync returns the offset of the first Sync0 Sync1 pair, or -1.
func findSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == Sync0 && buf[i+1] == Sync1 {
			return i
		}
	}
	return -1
}
