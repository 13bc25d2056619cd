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

// Reader command codes
const (
	CmdHeartbeat          byte = 0x01
	CmdReset              byte = 0x02
	CmdGetFirmwareVersion byte = 0x10
	CmdGetSerialNumber    byte = 0x11
	CmdGetAllParams       byte = 0x12
	CmdGetAntennaConfig   byte = 0x20
	CmdSetAntennaConfig   byte = 0x21
	CmdGetDwellTime       byte = 0x22
	CmdSetDwellTime       byte = 0x23
	CmdSetBuzzerEnable    byte = 0x24
	CmdSetLight           byte = 0x25
	CmdSetBuzzer          byte = 0x26
	CmdReadOEMRegister    byte = 0x30
	CmdWriteOEMRegister   byte = 0x31
	CmdStartInventory     byte = 0x40
	CmdStopInventory      byte = 0x41
	CmdInventoryReport    byte = 0x45
	CmdError              byte = 0xFF
)

// Status bytes carried by acknowledgements and error frames
const (
	StatusOK             byte = 0x00
	StatusUnknownCommand byte = 0x01
	StatusBadParameter   byte = 0x02
	StatusBusy           byte = 0x03
)

// Addresses
const (
	DefaultDeviceAddress   byte = 0x00
	BroadcastDeviceAddress byte = 0xFF
)

// MaxAntennas is the number of antenna ports a fixed reader exposes.
const MaxAntennas = 8

// CommandName returns a printable name for a command code.
func CommandName(cmd byte) string {
	switch cmd {
	case CmdHeartbeat:
		return "Heartbeat"
	case CmdReset:
		return "Reset"
	case CmdGetFirmwareVersion:
		return "GetFirmwareVersion"
	case CmdGetSerialNumber:
		return "GetSerialNumber"
	case CmdGetAllParams:
		return "GetAllParams"
	case CmdGetAntennaConfig:
		return "GetAntennaConfig"
	case CmdSetAntennaConfig:
		return "SetAntennaConfig"
	case CmdGetDwellTime:
		return "GetDwellTime"
	case CmdSetDwellTime:
		return "SetDwellTime"
	case CmdSetBuzzerEnable:
		return "SetBuzzerEnable"
	case CmdSetLight:
		return "SetLight"
	case CmdSetBuzzer:
		return "SetBuzzer"
	case CmdReadOEMRegister:
		return "ReadOEMRegister"
	case CmdWriteOEMRegister:
		return "WriteOEMRegister"
	case CmdStartInventory:
		return "StartInventory"
	case CmdStopInventory:
		return "StopInventory"
	case CmdInventoryReport:
		return "InventoryReport"
	case CmdError:
		return "Error"
	default:
		return "Unknown"
	}
}
