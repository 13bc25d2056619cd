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
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZaparooProject/go-uhf/internal/frame"
)

// pollInterval bounds how long Serve blocks in Read before rechecking ctx
// when the stream supports deadlines.
const pollInterval = 100 * time.Millisecond

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Serve reads frames from rw, dispatches them and writes the answers back
// until ctx ends or the stream closes. Inventory reports go to rw as well.
// A running inventory is stopped when Serve returns.
func (d *Device) Serve(ctx context.Context, rw io.ReadWriter) error {
	d.attach(rw)
	defer func() {
		d.stopInventory()
		d.detach()
	}()

	deadliner, canPoll := rw.(readDeadliner)

	var stream frame.Stream
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if canPoll {
			_ = deadliner.SetReadDeadline(time.Now().Add(pollInterval))
		}

		n, err := rw.Read(buf)
		if n > 0 {
			_, _ = stream.Write(buf[:n])
			if werr := d.dispatchBuffered(&stream); werr != nil {
				return werr
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded):
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
				return nil
			default:
				return err
			}
		}
	}
}

func (d *Device) dispatchBuffered(stream *frame.Stream) error {
	for {
		f, err := stream.Next()
		if errors.Is(err, frame.ErrChecksum) {
			d.logger.Debug("dropping corrupt frame")
			continue
		}
		if err != nil {
			return nil
		}
		for _, resp := range d.Handle(f) {
			if err := d.write(resp); err != nil {
				return err
			}
		}
	}
}

// Server accepts TCP connections and serves each with a fresh Device.
type Server struct {
	logger logrus.FieldLogger
	conns  map[net.Conn]struct{}
	opts   []Option
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewServer creates a Server whose devices are built with opts.
func NewServer(logger logrus.FieldLogger, opts ...Option) *Server {
	if logger == nil {
		logger = discardLogger()
	}
	return &Server{
		logger: logger,
		opts:   append([]Option{WithLogger(logger)}, opts...),
		conns:  make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends. It closes ln and every open
// connection before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeConns()
	})
	defer stop()

	s.logger.WithField("addr", ln.Addr().String()).Info("emulator listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			_ = ln.Close()
			return err
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	log := s.logger.WithField("remote", conn.RemoteAddr().String())
	log.Info("host connected")
	d := New(s.opts...)
	if err := d.Serve(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Warn("session ended")
	}
	_ = conn.Close()
	log.Info("host disconnected")
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
