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
	"errors"

	uhf "github.com/ZaparooProject/go-uhf"
)

var errPayloadLength = errors.New("unexpected payload length")

func defaultHandlers() map[byte]Handler {
	return map[byte]Handler{
		uhf.CmdHeartbeat:          handleHeartbeat,
		uhf.CmdReset:              handleReset,
		uhf.CmdGetFirmwareVersion: handleFirmware,
		uhf.CmdGetSerialNumber:    handleSerial,
		uhf.CmdGetAllParams:       handleAllParams,
		uhf.CmdGetAntennaConfig:   handleGetAntenna,
		uhf.CmdSetAntennaConfig:   handleSetAntenna,
		uhf.CmdGetDwellTime:       handleGetDwell,
		uhf.CmdSetDwellTime:       handleSetDwell,
		uhf.CmdSetBuzzerEnable:    handleBuzzerEnable,
		uhf.CmdSetLight:           handleLight,
		uhf.CmdSetBuzzer:          handleBuzzer,
		uhf.CmdReadOEMRegister:    handleReadOEM,
		uhf.CmdWriteOEMRegister:   handleWriteOEM,
		uhf.CmdStartInventory:     handleStartInventory,
		uhf.CmdStopInventory:      handleStopInventory,
	}
}

func handleHeartbeat(*Device, []byte) ([]byte, error) {
	return ack, nil
}

func handleReset(d *Device, _ []byte) ([]byte, error) {
	d.reset()
	return ack, nil
}

func handleFirmware(d *Device, _ []byte) ([]byte, error) {
	return []byte(d.firmware), nil
}

func handleSerial(d *Device, _ []byte) ([]byte, error) {
	return []byte(d.serial), nil
}

func handleAllParams(d *Device, _ []byte) ([]byte, error) {
	d.mu.Lock()
	params := uhf.SystemParams{
		Firmware:  d.firmware,
		Serial:    d.serial,
		Settings:  d.settings,
		Address:   d.address,
		Inventory: d.inv != nil,
	}
	d.mu.Unlock()
	return params.MarshalBinary()
}

func handleGetAntenna(d *Device, _ []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.Antenna.MarshalBinary()
}

func handleSetAntenna(d *Device, payload []byte) ([]byte, error) {
	var cfg uhf.AntennaConfig
	if err := cfg.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	if cfg.EnableMask == 0 {
		return nil, Reject(uhf.StatusBadParameter)
	}
	d.mu.Lock()
	d.settings.Antenna = cfg.Clamp()
	d.mu.Unlock()
	return ack, nil
}

func handleGetDwell(d *Device, _ []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uhf.EncodeDwellTime(d.settings.DwellTime), nil
}

func handleSetDwell(d *Device, payload []byte) ([]byte, error) {
	dwell, err := uhf.DecodeDwellTime(payload)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.settings.DwellTime = dwell
	d.mu.Unlock()
	return ack, nil
}

func handleBuzzerEnable(d *Device, payload []byte) ([]byte, error) {
	on, err := flag(payload)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.settings.BuzzerEnabled = on
	d.mu.Unlock()
	return ack, nil
}

func handleLight(d *Device, payload []byte) ([]byte, error) {
	on, err := flag(payload)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.lightOn = on
	d.mu.Unlock()
	return ack, nil
}

func handleBuzzer(d *Device, payload []byte) ([]byte, error) {
	on, err := flag(payload)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.buzzerOn = on
	d.mu.Unlock()
	return ack, nil
}

func handleReadOEM(d *Device, payload []byte) ([]byte, error) {
	if len(payload) != 1 {
		return nil, errPayloadLength
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return []byte{payload[0], d.oem[payload[0]]}, nil
}

func handleWriteOEM(d *Device, payload []byte) ([]byte, error) {
	if len(payload) != 2 {
		return nil, errPayloadLength
	}
	d.mu.Lock()
	d.oem[payload[0]] = payload[1]
	d.mu.Unlock()
	return ack, nil
}

func handleStartInventory(d *Device, _ []byte) ([]byte, error) {
	if !d.startInventory() {
		return nil, Reject(uhf.StatusBusy)
	}
	return nil, nil
}

func handleStopInventory(d *Device, _ []byte) ([]byte, error) {
	stats := d.stopInventory()
	return stats.MarshalBinary()
}

func flag(payload []byte) (bool, error) {
	if len(payload) != 1 {
		return false, errPayloadLength
	}
	return payload[0] != 0, nil
}
