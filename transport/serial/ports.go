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

package serial

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Name         string
	VIDPID       string
	SerialNumber string
	Product      string
	USB          bool
}

// Filter narrows port discovery.
type Filter struct {
	// IgnorePaths are device paths never returned, compared after cleaning
	// and case folding.
	IgnorePaths []string
	// Blocklist holds VID:PID pairs in hex, case-insensitive.
	Blocklist []string
	USBOnly   bool
}

// listDetailed is replaced in tests.
var listDetailed = enumerator.GetDetailedPortsList

// Discover lists the serial ports a reader could be attached to.
func Discover(f Filter) ([]PortInfo, error) {
	details, err := listDetailed()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return filterPorts(details, f), nil
}

func filterPorts(details []*enumerator.PortDetails, f Filter) []PortInfo {
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil || IsPathIgnored(d.Name, f.IgnorePaths) {
			continue
		}
		if f.USBOnly && !d.IsUSB {
			continue
		}
		info := PortInfo{Name: d.Name, USB: d.IsUSB, SerialNumber: d.SerialNumber, Product: d.Product}
		if d.IsUSB && d.VID != "" && d.PID != "" {
			info.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		if info.VIDPID != "" && IsBlocked(info.VIDPID, f.Blocklist) {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsBlocked checks if a USB VID:PID is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// IsPathIgnored checks if a device path should be skipped.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	normalized := normalizedPath(devicePath)
	for _, ignore := range ignorePaths {
		if ignore == "" {
			continue
		}
		if devicePath == ignore || normalized == normalizedPath(ignore) {
			return true
		}
	}
	return false
}

// normalizedPath lower-cases so COM ports compare the way Windows does.
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
