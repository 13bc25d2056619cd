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
	"encoding/hex"
	"sync"
	"time"

	uhf "github.com/ZaparooProject/go-uhf"
)

// inventory is one run of the periodic report task.
type inventory struct {
	started time.Time
	unique  map[string]struct{}
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	total   uint32
	stopped bool
}

// startInventory launches the report task. It returns false if one is
// already running.
func (d *Device) startInventory() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inv != nil {
		return false
	}
	inv := &inventory{
		started: d.clock.Now(),
		unique:  make(map[string]struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	d.inv = inv
	go d.runInventory(inv)
	d.logger.Debug("inventory started")
	return true
}

// stopInventory stops the report task and returns its counters. Once it
// returns no further report is written.
func (d *Device) stopInventory() uhf.StopStats {
	d.mu.Lock()
	inv := d.inv
	d.inv = nil
	d.mu.Unlock()
	if inv == nil {
		return uhf.StopStats{}
	}

	inv.mu.Lock()
	inv.stopped = true
	inv.mu.Unlock()
	close(inv.stop)
	<-inv.done

	inv.mu.Lock()
	defer inv.mu.Unlock()
	stats := uhf.StopStats{
		TotalReports: inv.total,
		UniqueTags:   uint16(min(len(inv.unique), 0xFFFF)),
		Elapsed:      d.clock.Now().Sub(inv.started),
	}
	d.logger.WithField("reports", stats.TotalReports).Debug("inventory stopped")
	return stats
}

func (d *Device) runInventory(inv *inventory) {
	defer close(inv.done)

	ticker := d.clock.NewTicker(d.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-inv.stop:
			return
		case <-ticker.C:
			d.emitTick(inv)
		}
	}
}

// emitTick writes between one and maxPerTick reports.
func (d *Device) emitTick(inv *inventory) {
	if len(d.epcs) == 0 {
		return
	}

	d.mu.Lock()
	n := 1 + d.rng.IntN(d.maxPerTick)
	ports := d.settings.Antenna.EnabledPorts()
	reports := make([][]byte, 0, n)
	epcs := make([]string, 0, n)
	for range n {
		epc := d.epcs[d.rng.IntN(len(d.epcs))]
		antenna := uint8(1)
		if len(ports) > 0 {
			antenna = uint8(ports[d.rng.IntN(len(ports))] + 1)
		}
		rssi := int8(-30 - d.rng.IntN(45))
		reports = append(reports, d.encode(uhf.CmdInventoryReport, uhf.EncodeReport(epc, antenna, rssi, 1)))
		epcs = append(epcs, hex.EncodeToString(epc))
	}
	d.mu.Unlock()

	for i, report := range reports {
		// stopped is checked under inv.mu so no report can
		// follow a completed stop
		inv.mu.Lock()
		if inv.stopped {
			inv.mu.Unlock()
			return
		}
		if err := d.write(report); err != nil {
			inv.mu.Unlock()
			d.logger.WithError(err).Debug("report write failed")
			return
		}
		inv.total++
		inv.unique[epcs[i]] = struct{}{}
		inv.mu.Unlock()
	}
}
