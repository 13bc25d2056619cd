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

// Command uhfsim serves an emulated fixed reader on a TCP port so the gate
// and the other tools can run without hardware.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ZaparooProject/go-uhf/emulator"
)

type flags struct {
	listen        string
	firmware      string
	serial        string
	logLevel      string
	epcs          []string
	interval      time.Duration
	perTick       int
	address       uint8
	rejectUnknown bool
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := pflag.NewFlagSet("uhfsim", pflag.ContinueOnError)
	fs.StringVarP(&f.listen, "listen", "l", "127.0.0.1:6000", "TCP address to serve on")
	fs.StringSliceVar(&f.epcs, "epcs", nil, "comma separated EPCs in the field (default: built-in population)")
	fs.DurationVar(&f.interval, "interval", 200*time.Millisecond, "time between inventory reports")
	fs.IntVar(&f.perTick, "per-tick", 0, "maximum reports per interval (0 keeps the default)")
	fs.Uint8Var(&f.address, "address", 0, "device address")
	fs.BoolVar(&f.rejectUnknown, "reject-unknown", false, "answer unknown commands with an error frame")
	fs.StringVar(&f.firmware, "firmware", "", "firmware version reported to the host")
	fs.StringVar(&f.serial, "serial", "", "serial number reported to the host")
	fs.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for i, epc := range f.epcs {
		f.epcs[i] = strings.TrimSpace(epc)
	}
	return f, nil
}

func (f *flags) options() []emulator.Option {
	opts := []emulator.Option{
		emulator.WithReportInterval(f.interval),
		emulator.WithMaxReportsPerTick(f.perTick),
		emulator.WithAddress(f.address),
		emulator.WithIdentity(f.firmware, f.serial),
	}
	if len(f.epcs) > 0 {
		opts = append(opts, emulator.WithEPCs(f.epcs))
	}
	if f.rejectUnknown {
		opts = append(opts, emulator.WithUnknownPolicy(emulator.UnknownReject))
	}
	return opts
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(f.logLevel); err == nil {
		log.SetLevel(level)
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := emulator.NewServer(log, f.options()...)
	if err := srv.ListenAndServe(ctx, f.listen); err != nil {
		log.WithError(err).Error("emulator stopped")
		stop()
		os.Exit(1)
	}
}
