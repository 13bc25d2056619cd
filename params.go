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
	"fmt"
	"time"
)

// AntennaConfig is the enable mask plus one power byte per antenna port.
// It is a value type; copies never share storage.
type AntennaConfig struct {
	EnableMask uint8
	Power      [MaxAntennas]uint8
}

// antennaConfigSize is the encoded length: mask(1) + power(8)
const antennaConfigSize = 1 + MaxAntennas

// MaxPower is the highest accepted power byte (dBm).
const MaxPower uint8 = 33

// DefaultAntennaConfig enables antenna 1 at 30 dBm.
func DefaultAntennaConfig() AntennaConfig {
	cfg := AntennaConfig{EnableMask: 0x01}
	for i := range cfg.Power {
		cfg.Power[i] = 30
	}
	return cfg
}

// Enabled reports whether antenna port i (0-based) is enabled.
func (a AntennaConfig) Enabled(i int) bool {
	if i < 0 || i >= MaxAntennas {
		return false
	}
	return a.EnableMask&(1<<uint(i)) != 0
}

// EnabledPorts returns the enabled 0-based antenna ports in ascending order.
func (a AntennaConfig) EnabledPorts() []int {
	ports := make([]int, 0, MaxAntennas)
	for i := 0; i < MaxAntennas; i++ {
		if a.Enabled(i) {
			ports = append(ports, i)
		}
	}
	return ports
}

// Clamp limits every power byte to MaxPower.
func (a AntennaConfig) Clamp() AntennaConfig {
	for i := range a.Power {
		if a.Power[i] > MaxPower {
			a.Power[i] = MaxPower
		}
	}
	return a
}

// MarshalBinary encodes the config as [mask][power x8].
func (a AntennaConfig) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, antennaConfigSize)
	out = append(out, a.EnableMask)
	out = append(out, a.Power[:]...)
	return out, nil
}

// UnmarshalBinary decodes [mask][power x8].
func (a *AntennaConfig) UnmarshalBinary(data []byte) error {
	if len(data) < antennaConfigSize {
		return fmt.Errorf("%w: antenna config needs %d bytes, got %d",
			ErrMalformedResponse, antennaConfigSize, len(data))
	}
	a.EnableMask = data[0]
	copy(a.Power[:], data[1:antennaConfigSize])
	return nil
}

// Settings are the persisted per-reader parameters re-applied on every
// connect.
type Settings struct {
	Antenna       AntennaConfig
	DwellTime     time.Duration
	BuzzerEnabled bool
}

// DefaultSettings returns the factory settings of a reader.
func DefaultSettings() Settings {
	return Settings{
		Antenna:       DefaultAntennaConfig(),
		DwellTime:     200 * time.Millisecond,
		BuzzerEnabled: true,
	}
}

// EncodeDwellTime encodes a dwell duration as milliseconds (LE16),
// saturating at 65535 ms.
func EncodeDwellTime(d time.Duration) []byte {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > 0xFFFF {
		ms = 0xFFFF
	}
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(ms))
	return out
}

// DecodeDwellTime decodes a LE16 millisecond dwell time.
func DecodeDwellTime(data []byte) (time.Duration, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: dwell time needs 2 bytes, got %d", ErrMalformedResponse, len(data))
	}
	return time.Duration(binary.LittleEndian.Uint16(data)) * time.Millisecond, nil
}

// SystemParams is the GetAllParams snapshot.
// Layout: Addr(1) + Antenna(9) + Dwell(2, LE) + BuzzerEnable(1) + Inventory(1)
// + FirmwareLen(1) + Firmware(n) + SerialLen(1) + Serial(n)
type SystemParams struct {
	Firmware  string
	Serial    string
	Settings  Settings
	Address   byte
	Inventory bool
}

// MarshalBinary encodes the snapshot.
func (p SystemParams) MarshalBinary() ([]byte, error) {
	if len(p.Firmware) > 0xFF || len(p.Serial) > 0xFF {
		return nil, fmt.Errorf("system params: identity strings longer than 255 bytes")
	}
	antenna, _ := p.Settings.Antenna.MarshalBinary()
	out := make([]byte, 0, 16+len(p.Firmware)+len(p.Serial))
	out = append(out, p.Address)
	out = append(out, antenna...)
	out = append(out, EncodeDwellTime(p.Settings.DwellTime)...)
	out = append(out, boolByte(p.Settings.BuzzerEnabled), boolByte(p.Inventory))
	out = append(out, byte(len(p.Firmware)))
	out = append(out, p.Firmware...)
	out = append(out, byte(len(p.Serial)))
	out = append(out, p.Serial...)
	return out, nil
}

// UnmarshalBinary decodes the snapshot.
func (p *SystemParams) UnmarshalBinary(data []byte) error {
	const fixed = 1 + antennaConfigSize + 2 + 1 + 1
	if len(data) < fixed+1 {
		return fmt.Errorf("%w: system params too short (%d bytes)", ErrMalformedResponse, len(data))
	}
	var out SystemParams
	out.Address = data[0]
	if err := out.Settings.Antenna.UnmarshalBinary(data[1:]); err != nil {
		return err
	}
	pos := 1 + antennaConfigSize
	out.Settings.DwellTime, _ = DecodeDwellTime(data[pos:])
	pos += 2
	out.Settings.BuzzerEnabled = data[pos] != 0
	out.Inventory = data[pos+1] != 0
	pos += 2

	firmware, n, err := readShortString(data[pos:])
	if err != nil {
		return fmt.Errorf("system params firmware: %w", err)
	}
	pos += n
	serial, _, err := readShortString(data[pos:])
	if err != nil {
		return fmt.Errorf("system params serial: %w", err)
	}
	out.Firmware = firmware
	out.Serial = serial
	*p = out
	return nil
}

// StopStats are the aggregate counters returned by StopInventory.
// Layout: TotalReports(4, LE) + UniqueTags(2, LE) + ElapsedMs(4, LE)
type StopStats struct {
	TotalReports uint32
	UniqueTags   uint16
	Elapsed      time.Duration
}

const stopStatsSize = 10

// MarshalBinary encodes the stats.
func (s StopStats) MarshalBinary() ([]byte, error) {
	out := make([]byte, stopStatsSize)
	binary.LittleEndian.PutUint32(out[0:], s.TotalReports)
	binary.LittleEndian.PutUint16(out[4:], s.UniqueTags)
	ms := s.Elapsed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > 0xFFFFFFFF {
		ms = 0xFFFFFFFF
	}
	binary.LittleEndian.PutUint32(out[6:], uint32(ms))
	return out, nil
}

// UnmarshalBinary decodes the stats.
func (s *StopStats) UnmarshalBinary(data []byte) error {
	if len(data) < stopStatsSize {
		return fmt.Errorf("%w: stop stats needs %d bytes, got %d", ErrMalformedResponse, stopStatsSize, len(data))
	}
	s.TotalReports = binary.LittleEndian.Uint32(data[0:])
	s.UniqueTags = binary.LittleEndian.Uint16(data[4:])
	s.Elapsed = time.Duration(binary.LittleEndian.Uint32(data[6:])) * time.Millisecond
	return nil
}

func readShortString(data []byte) (string, int, error) {
	if len(data) < 1 {
		return "", 0, ErrMalformedResponse
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", 0, fmt.Errorf("%w: string length %d overruns %d bytes", ErrMalformedResponse, n, len(data)-1)
	}
	return string(data[1 : 1+n]), 1 + n, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
