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

package frame

import "errors"

// Stream accumulates bytes read from a transport and yields complete frames.
// It is not safe for concurrent use; each I/O loop owns its own Stream.
type Stream struct {
	buf     []byte
	dropped int
}

// Write appends received bytes. It never fails.
func (s *Stream) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	if over := len(s.buf) - MaxBuffered; over > 0 {
		s.buf = append(s.buf[:0:0], s.buf[over:]...)
		s.dropped += over
	}
	return len(p), nil
}

// Next returns the next complete frame.
// ErrIncomplete means more bytes are required. ErrChecksum reports a dropped
// corrupt frame; the caller should log it and call Next again.
func (s *Stream) Next() (Frame, error) {
	f, n, err := Decode(s.buf)
	if n > 0 {
		s.buf = s.buf[n:]
		if len(s.buf) == 0 {
			s.buf = nil
		}
	}
	return f, err
}

// Drain collects every complete frame currently buffered. Checksum failures
// are counted and skipped.
func (s *Stream) Drain() (frames []Frame, corrupt int) {
	for {
		f, err := s.Next()
		switch {
		case err == nil:
			frames = append(frames, f)
		case errors.Is(err, ErrChecksum):
			corrupt++
		default:
			return frames, corrupt
		}
	}
}

// Buffered returns the number of bytes waiting for the rest of a frame.
func (s *Stream) Buffered() int {
	return len(s.buf)
}

// Dropped returns how many bytes were discarded because the buffer overflowed.
func (s *Stream) Dropped() int {
	return s.dropped
}

// Reset discards buffered bytes.
func (s *Stream) Reset() {
	s.buf = nil
}
