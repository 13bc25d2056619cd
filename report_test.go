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
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecodeReport(t *testing.T) {
	t.Parallel()

	epc := mustHex(t, "E2801170000002085C1A1C50")
	payload := EncodeReport(epc, 2, -58, 3)
	at := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)

	got, err := DecodeReport(payload, at)
	require.NoError(t, err)

	assert.Equal(t, "E2801170000002085C1A1C50", got.EPC)
	assert.Equal(t, uint16(0x3000), got.PC)
	assert.Equal(t, uint8(2), got.Antenna)
	assert.Equal(t, int8(-58), got.RSSI)
	assert.Equal(t, uint8(3), got.Count)
	assert.True(t, got.CRCValid)
	assert.Equal(t, at, got.Timestamp)

	pcEPC := append([]byte{0x30, 0x00}, epc...)
	assert.Equal(t, frame.CRC16(pcEPC), got.CRC)
}

func TestDecodeReport_Layout(t *testing.T) {
	t.Parallel()

	// PC declares 2 words
	payload := []byte{
		0x10, 0x00,
		0xDE, 0xAD, 0xBE, 0xEF,
		0x00, 0x00,
		0x04, 0xC4, 0x01,
	}
	got, err := DecodeReport(payload, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF", got.EPC)
	assert.Equal(t, uint8(4), got.Antenna)
	assert.Equal(t, int8(-60), got.RSSI)
	assert.Equal(t, uint8(1), got.Count)
	assert.False(t, got.CRCValid)
}

func TestDecodeReport_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "shorter than minimum", payload: []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x02}},
		{name: "epc overruns payload", payload: []byte{0x30, 0x00, 0xAA, 0xBB, 0x00, 0x00, 0x01, 0xC0, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeReport(tt.payload, time.Now())
			require.ErrorIs(t, err, ErrMalformedReport)
		})
	}
}

func TestDecodeReport_EmptyEPC(t *testing.T) {
	t.Parallel()

	got, err := DecodeReport([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0xC0, 0x01}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, got.EPC)
}

func TestEncodeReport_PadsOddEPC(t *testing.T) {
	t.Parallel()

	payload := EncodeReport([]byte{0x01, 0x02, 0x03}, 1, -40, 1)
	got, err := DecodeReport(payload, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "01020300", got.EPC)
	assert.Equal(t, 2, EPCWords(got.PC))
	assert.True(t, got.CRCValid)
}

func TestPCForEPC(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0x0000), PCForEPC(0))
	assert.Equal(t, uint16(0x0800), PCForEPC(1))
	assert.Equal(t, uint16(0x3000), PCForEPC(12))
	assert.Equal(t, uint16(0xF800), PCForEPC(200))
}
