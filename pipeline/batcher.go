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

// Package pipeline moves records from the ingestion path to the backing
// store in batches, and keeps a bounded window of recent activity for live
// views.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZaparooProject/go-uhf/internal/clock"
)

// ErrClosed is returned by Enqueue after Close was called.
var ErrClosed = errors.New("pipeline closed")

const (
	// DefaultMaxBatch is the number of records that triggers a flush
	DefaultMaxBatch = 50
	// DefaultMaxWait is how long the first queued record may wait
	DefaultMaxWait = 500 * time.Millisecond
)

// Writer persists one batch. A returned error makes the batch go back to
// the head of the queue.
type Writer[T any] interface {
	WriteBatch(ctx context.Context, batch []T) error
}

// WriterFunc adapts a function to a Writer.
type WriterFunc[T any] func(ctx context.Context, batch []T) error

// WriteBatch implements Writer
func (f WriterFunc[T]) WriteBatch(ctx context.Context, batch []T) error {
	return f(ctx, batch)
}

// Config tunes a Batcher. Zero fields take the defaults.
type Config struct {
	Logger logrus.FieldLogger
	Clock  clock.Clock
	// OnFlush observes every write attempt
	OnFlush func(size int, elapsed time.Duration, err error)
	// Name labels log lines
	Name       string
	MaxBatch   int
	MaxWait    time.Duration
	RetryDelay time.Duration
}

// Batcher is an unbounded queue drained by a single consumer goroutine.
//
// Enqueue never blocks on I/O. The consumer writes when MaxBatch records are
// queued or MaxWait has passed since the oldest unflushed record arrived,
// whichever happens first. Only the consumer calls the Writer, so at most
// one batch is in flight.
type Batcher[T any] struct {
	firstAt  time.Time
	writer   Writer[T]
	clock    clock.Clock
	logger   logrus.FieldLogger
	onFlush  func(int, time.Duration, error)
	writeCtx context.Context
	abort    context.CancelFunc
	wake     chan struct{}
	done     chan struct{}
	queue    []T

	maxBatch   int
	maxWait    time.Duration
	retryDelay time.Duration

	mu      sync.Mutex
	written  uint64
	inflight int
	dropped  int
	closed   bool
}

// NewBatcher starts the consumer goroutine. Call Close to stop it.
func NewBatcher[T any](w Writer[T], cfg Config) *Batcher[T] {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = cfg.MaxWait
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	if cfg.Name != "" {
		cfg.Logger = cfg.Logger.WithField("batch", cfg.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Batcher[T]{
		writer:     w,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		onFlush:    cfg.OnFlush,
		writeCtx:   ctx,
		abort:      cancel,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		maxBatch:   cfg.MaxBatch,
		maxWait:    cfg.MaxWait,
		retryDelay: cfg.RetryDelay,
	}
	go b.run()
	return b
}

// Enqueue appends a record. It fails only after Close.
func (b *Batcher[T]) Enqueue(item T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if len(b.queue) == 0 {
		b.firstAt = b.clock.Now()
	}
	b.queue = append(b.queue, item)
	n := len(b.queue)
	b.mu.Unlock()

	// the first record starts the MaxWait timer, a full batch flushes now
	if n == 1 || n >= b.maxBatch {
		b.signal()
	}
	return nil
}

// Pending returns the number of records not yet persisted, including the
// batch being written.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) + b.inflight
}

// Written returns how many records were persisted.
func (b *Batcher[T]) Written() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

// Close stops intake and waits until every queued record is written. If ctx
// ends first, in-flight writes are cancelled and the remaining records are
// dropped.
func (b *Batcher[T]) Close(ctx context.Context) error {
	b.mu.Lock()
	already := b.closed
	b.closed = true
	b.mu.Unlock()
	if !already {
		b.signal()
	}

	select {
	case <-b.done:
		b.abort()
		return nil
	case <-ctx.Done():
	}

	b.abort()
	<-b.done

	b.mu.Lock()
	b.dropped = len(b.queue)
	b.queue = nil
	dropped := b.dropped
	b.mu.Unlock()
	if dropped > 0 {
		b.logger.WithField("dropped", dropped).Error("shutdown deadline reached with records still queued")
		return fmt.Errorf("pipeline drain: %d records dropped: %w", dropped, ctx.Err())
	}
	return nil
}

func (b *Batcher[T]) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Batcher[T]) aborted() bool {
	return b.writeCtx.Err() != nil
}

func (b *Batcher[T]) run() {
	defer close(b.done)

	for !b.aborted() {
		b.mu.Lock()
		n := len(b.queue)
		closing := b.closed
		var wait time.Duration
		if n > 0 && n < b.maxBatch && !closing {
			wait = b.maxWait - b.clock.Now().Sub(b.firstAt)
		}
		b.mu.Unlock()

		switch {
		case n == 0 && closing:
			return
		case n == 0:
			b.sleep(-1)
		case wait > 0:
			b.sleep(wait)
		default:
			if err := b.flush(); err != nil {
				b.sleep(b.retryDelay)
			}
		}
	}
}

// sleep waits for d, a signal or abort. A negative d waits for a signal only.
func (b *Batcher[T]) sleep(d time.Duration) {
	var timer <-chan time.Time
	if d >= 0 {
		timer = b.clock.After(d)
	}
	select {
	case <-b.wake:
	case <-timer:
	case <-b.writeCtx.Done():
	}
}

// flush writes one batch from the head of the queue.
func (b *Batcher[T]) flush() error {
	b.mu.Lock()
	size := min(len(b.queue), b.maxBatch)
	batch := make([]T, size)
	copy(batch, b.queue[:size])
	b.queue = b.queue[size:]
	if len(b.queue) == 0 {
		b.queue = nil
	}
	b.inflight = size
	b.mu.Unlock()

	started := b.clock.Now()
	err := b.writer.WriteBatch(b.writeCtx, batch)
	elapsed := b.clock.Now().Sub(started)
	if b.onFlush != nil {
		b.onFlush(size, elapsed, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.inflight = 0
	if err != nil {
		b.queue = append(batch, b.queue...)
		b.logger.WithError(err).WithField("size", size).Warn("batch write failed, requeued")
		return err
	}
	b.written += uint64(size)
	if len(b.queue) > 0 {
		b.firstAt = b.clock.Now()
	}
	return nil
}
