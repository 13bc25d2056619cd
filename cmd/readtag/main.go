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

// Command readtag connects to one fixed reader, runs inventory for a while
// and prints every tag it sees followed by a per EPC summary.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/pflag"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/config"
	"github.com/ZaparooProject/go-uhf/transport/serial"
)

type options struct {
	reader  config.ReaderConfig
	timeout time.Duration
	quiet     bool
	debug     bool
	listPorts bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("readtag", pflag.ContinueOnError)
	fs.StringVarP(&o.reader.Address, "address", "a", "127.0.0.1:6000", "reader host:port or serial device path")
	fs.StringVar(&o.reader.Transport, "transport", config.TransportTCP, "tcp or serial")
	fs.IntVar(&o.reader.Baud, "baud", 0, "serial baud rate (0 keeps the default)")
	power := fs.UintSlice("power", nil, "antenna power in dBm, one value or one per port")
	fs.Uint8Var(&o.reader.AntennaMask, "antennas", 0, "enabled antenna bit mask (0 keeps the default)")
	fs.DurationVarP(&o.timeout, "timeout", "t", 10*time.Second, "how long to run inventory")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "only print the summary")
	fs.BoolVar(&o.debug, "debug", false, "print reader log messages")
	fs.BoolVar(&o.listPorts, "list-ports", false, "list USB serial ports and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.reader.Name = "readtag"
	for _, p := range *power {
		if p > uint(uhf.MaxPower) {
			return nil, fmt.Errorf("power %d exceeds %d dBm", p, uhf.MaxPower)
		}
		o.reader.Power = append(o.reader.Power, uint8(p))
	}

	cfg := config.Default()
	cfg.Readers = []config.ReaderConfig{o.reader}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// tally aggregates sightings per EPC.
type tally struct {
	seen map[string]*tagSummary
	mu   sync.Mutex
}

type tagSummary struct {
	first    time.Time
	last     time.Time
	epc      string
	count    int
	bestRSSI int8
	antennas uint8
}

func newTally() *tally {
	return &tally{seen: make(map[string]*tagSummary)}
}

func (t *tally) add(s uhf.TagSighting) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sum, ok := t.seen[s.EPC]
	if !ok {
		sum = &tagSummary{epc: s.EPC, first: s.Timestamp, bestRSSI: s.RSSI}
		t.seen[s.EPC] = sum
	}
	sum.count++
	sum.last = s.Timestamp
	if s.RSSI > sum.bestRSSI {
		sum.bestRSSI = s.RSSI
	}
	if s.Antenna >= 1 && s.Antenna <= uhf.MaxAntennas {
		sum.antennas |= 1 << (s.Antenna - 1)
	}
}

// summaries returns the tags ordered by read count, most read first.
func (t *tally) summaries() []tagSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]tagSummary, 0, len(t.seen))
	for _, s := range t.seen {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].epc < out[j].epc
	})
	return out
}

func printSummary(w io.Writer, sums []tagSummary) {
	_, _ = fmt.Fprintf(w, "\n=== %d unique tags ===\n", len(sums))
	for _, s := range sums {
		_, _ = fmt.Fprintf(w, "%-32s reads=%-5d best=%4d dBm antennas=%08b span=%s\n",
			s.epc, s.count, s.bestRSSI, s.antennas, s.last.Sub(s.first).Round(time.Millisecond))
	}
}

func printPorts(w io.Writer) error {
	ports, err := serial.Discover(serial.Filter{USBOnly: true})
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(w, "No USB serial ports found")
		return nil
	}
	for _, p := range ports {
		_, _ = fmt.Fprintf(w, "%-20s %-10s %s %s\n", p.Name, p.VIDPID, p.Product, p.SerialNumber)
	}
	return nil
}

func run(ctx context.Context, o *options, out io.Writer) error {
	t := newTally()
	listener := uhf.ListenerFuncs{
		Tag: func(_ string, s uhf.TagSighting) {
			t.add(s)
			if !o.quiet {
				_, _ = fmt.Fprintf(out, "%s ant=%d rssi=%d %s\n",
					s.Timestamp.Format("15:04:05.000"), s.Antenna, s.RSSI, s.EPC)
			}
		},
	}
	if o.debug {
		listener.Log = func(_ string, level uhf.LogLevel, message string) {
			_, _ = fmt.Fprintf(out, "[%s] %s\n", level, message)
		}
	}

	r := uhf.NewReader(uhf.ReaderConfig{
		Name:     o.reader.Name,
		Dial:     o.reader.Dialer(),
		Settings: o.reader.Settings(),
	}, uhf.WithListener(listener))

	if err := r.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = r.Disconnect(context.Background()) }()
	_, _ = fmt.Fprintf(out, "Connected, firmware %s\n", r.FirmwareVersion())

	if err := r.StartInventory(ctx); err != nil {
		return fmt.Errorf("start inventory: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stats, err := r.StopInventory(stopCtx)
	if err != nil {
		_, _ = fmt.Fprintf(out, "stop inventory: %v\n", err)
	} else {
		_, _ = fmt.Fprintf(out, "Reader counted %d reports of %d tags in %s\n",
			stats.TotalReports, stats.UniqueTags, stats.Elapsed.Round(time.Millisecond))
	}
	printSummary(out, t.summaries())
	return nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if o.listPorts {
		if err := printPorts(os.Stdout); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "readtag: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := run(ctx, o, os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "readtag: %v\n", err)
		os.Exit(1)
	}
}
