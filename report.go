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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// TagSighting is one tag observation decoded from an inventory report.
type TagSighting struct {
	Timestamp time.Time
	EPC       string
	PC        uint16
	CRC       uint16
	RSSI      int8
	Antenna   uint8
	Count     uint8
	CRCValid  bool
}

// Report layout: PC(2, BE) + EPC(n) + CRC(2, BE) + Antenna(1) + RSSI(1) + Count(1)
const (
	reportPCSize      = 2
	reportCRCSize     = 2
	reportTrailerSize = 3
	minReportSize     = reportPCSize + reportCRCSize + reportTrailerSize
)

// EPCWords extracts the EPC length in 16-bit words from bits 15-11 of a PC word.
func EPCWords(pc uint16) int {
	return int(pc>>11) & 0x1F
}

// PCForEPC builds a PC word declaring an EPC of epcLen bytes (rounded up to
// whole words).
func PCForEPC(epcLen int) uint16 {
	words := (epcLen + 1) / 2
	if words > 0x1F {
		words = 0x1F
	}
	return uint16(words) << 11
}

// DecodeReport decodes an inventory report payload.
// The sighting is stamped with at; CRCValid tells whether the embedded CRC
// matches PC+EPC.
func DecodeReport(payload []byte, at time.Time) (TagSighting, error) {
	if len(payload) < minReportSize {
		return TagSighting{}, fmt.Errorf("%w: %d bytes, need at least %d",
			ErrMalformedReport, len(payload), minReportSize)
	}

	pc := binary.BigEndian.Uint16(payload)
	epcLen := EPCWords(pc) * 2
	end := reportPCSize + epcLen
	if end+reportCRCSize+reportTrailerSize > len(payload) {
		return TagSighting{}, fmt.Errorf("%w: declared EPC of %d bytes overruns %d byte payload",
			ErrMalformedReport, epcLen, len(payload))
	}

	epc := payload[reportPCSize:end]
	crc := binary.BigEndian.Uint16(payload[end:])
	trailer := payload[end+reportCRCSize:]

	return TagSighting{
		Timestamp: at,
		EPC:       strings.ToUpper(hex.EncodeToString(epc)),
		PC:        pc,
		CRC:       crc,
		CRCValid:  frame.CRC16(payload[:end]) == crc,
		Antenna:   trailer[0],
		RSSI:      int8(trailer[1]),
		Count:     trailer[2],
	}, nil
}

// EncodeReport builds an inventory report payload for epc, computing the PC
// word and CRC. The EPC is padded with zero bytes to a whole word.
func EncodeReport(epc []byte, antenna uint8, rssi int8, count uint8) []byte {
	if len(epc)%2 != 0 {
		epc = append(append([]byte(nil), epc...), 0x00)
	}
	if len(epc) > 0x1F*2 {
		epc = epc[:0x1F*2]
	}

	out := make([]byte, 0, minReportSize+len(epc))
	out = binary.BigEndian.AppendUint16(out, PCForEPC(len(epc)))
	out = append(out, epc...)
	out = binary.BigEndian.AppendUint16(out, frame.CRC16(out))
	out = append(out, antenna, byte(rssi), count)
	return out
}
