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
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Option is a functional option for configuring a Reader
type Option func(*Reader)

// WithLogger sets the logger reader events are written to. Without it the
// reader logs to io.Discard and only listeners see log lines.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithListener subscribes l before the reader is used.
func WithListener(l Listener) Option {
	return func(r *Reader) {
		r.listeners.add(l)
	}
}

// withResponseTimeout shortens the response wait in tests.
func withResponseTimeout(timeout time.Duration) Option {
	return func(r *Reader) {
		r.responseTimeout = timeout
	}
}

// withClock replaces the time source used to stamp sightings.
func withClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
