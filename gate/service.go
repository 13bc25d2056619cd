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

// Package gate turns reader tag events into persisted reads, deduplicated
// unauthorized-export alerts and a warning on the reader that saw the tag.
package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/assets"
	"github.com/ZaparooProject/go-uhf/debounce"
	"github.com/ZaparooProject/go-uhf/internal/clock"
	"github.com/ZaparooProject/go-uhf/internal/metrics"
	"github.com/ZaparooProject/go-uhf/pipeline"
)

const (
	// DefaultWarningDuration is how long the warning stays on after the
	// last alert at a reader.
	DefaultWarningDuration = 3 * time.Second

	// DefaultRecentAlerts is the size of the alert live view.
	DefaultRecentAlerts = 50

	commandTimeout = 2 * time.Second
	jobBacklog     = 256
)

// Queue accepts records for persistence. *pipeline.Batcher satisfies it.
type Queue[T any] interface {
	Enqueue(item T) error
}

// Notifier publishes alerts outside the process.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert AlertEvent) error
}

// Indicator is the part of a reader the warning drives.
type Indicator interface {
	LightOn(ctx context.Context) error
	LightOff(ctx context.Context) error
	BuzzerOn(ctx context.Context) error
	BuzzerOff(ctx context.Context) error
}

// ReaderLookup resolves a reader name to its indicator.
type ReaderLookup func(name string) (Indicator, bool)

// ManagerLookup resolves names through a reader manager.
func ManagerLookup(m *uhf.Manager) ReaderLookup {
	return func(name string) (Indicator, bool) {
		r, err := m.Reader(name)
		if err != nil {
			return nil, false
		}
		return r, true
	}
}

type job struct {
	run  func(ctx context.Context) error
	name string
}

// Service is a uhf.Listener. OnTag runs on the reader's I/O goroutine, so
// anything that talks to a reader or the network is handed to a worker.
type Service struct {
	cache     *assets.Cache
	clock     clock.Clock
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
	reads     Queue[TagRead]
	alerts    Queue[AlertEvent]
	notifiers []Notifier
	readers   ReaderLookup
	recent    *pipeline.Recent[Activity]
	alerted   *pipeline.Recent[AlertEvent]
	warning   *debounce.Scheduler[string]
	jobs      chan job
	done      chan struct{}
	base      context.Context
	cancel    context.CancelFunc

	warningFor     time.Duration
	recentCapacity int
	buzzer         bool

	mu     sync.Mutex
	closed bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for alert timestamps and the warning.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics records activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithReadQueue persists every valid sighting.
func WithReadQueue(q Queue[TagRead]) Option {
	return func(s *Service) { s.reads = q }
}

// WithAlertQueue persists every alert.
func WithAlertQueue(q Queue[AlertEvent]) Option {
	return func(s *Service) { s.alerts = q }
}

// WithNotifier adds an alert publisher.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithWarning drives the light, and the buzzer if buzzer is set, on the
// reader that raised an alert for d after the last alert.
func WithWarning(readers ReaderLookup, d time.Duration, buzzer bool) Option {
	return func(s *Service) {
		s.readers = readers
		if d > 0 {
			s.warningFor = d
		}
		s.buzzer = buzzer
	}
}

// WithRecentCapacity sizes the activity live view.
func WithRecentCapacity(n int) Option {
	return func(s *Service) { s.recentCapacity = n }
}

// New creates the service and starts its worker. Call Close to stop it.
func New(cache *assets.Cache, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		cache:      cache,
		clock:      clock.Real(),
		logger:     discard,
		jobs:       make(chan job, jobBacklog),
		done:       make(chan struct{}),
		base:       base,
		cancel:     cancel,
		warningFor: DefaultWarningDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recent = pipeline.NewRecent[Activity](s.recentCapacity)
	s.alerted = pipeline.NewRecent[AlertEvent](DefaultRecentAlerts)
	s.warning = debounce.New(s.warningFor, s.warnOn, s.warnOff, debounce.WithClock[string](s.clock))

	go s.work()
	return s
}

// OnTag implements uhf.Listener
func (s *Service) OnTag(reader string, sighting uhf.TagSighting) {
	epc := uhf.NormalizeEPC(sighting.EPC)
	if epc == "" {
		s.logger.WithField("reader", reader).Debug("dropping sighting without EPC")
		return
	}
	sighting.EPC = epc
	if sighting.Timestamp.IsZero() {
		sighting.Timestamp = s.clock.Now()
	}
	s.metrics.TagRead(reader)

	if s.reads != nil {
		err := s.reads.Enqueue(TagRead{
			ReadTime:   sighting.Timestamp,
			EPC:        epc,
			ReaderName: reader,
			RSSI:       sighting.RSSI,
			Antenna:    sighting.Antenna,
		})
		if err != nil {
			s.logger.WithError(err).WithField("reader", reader).Debug("tag read not queued")
		}
	}

	activity := Activity{Reader: reader, Sighting: sighting}
	rec, unauthorized := s.cache.CheckUnauthorizedExport(epc)
	if !unauthorized {
		rec, activity.Registered = s.cache.Lookup(epc)
	} else {
		activity.Registered = true
		activity.Unauthorized = true
	}
	activity.AssetNumber = rec.AssetNumber
	activity.AssetName = rec.AssetName
	s.recent.Add(activity)

	if unauthorized && s.cache.ShouldAlert(epc) {
		s.raise(reader, rec, sighting)
	}
}

func (s *Service) raise(reader string, rec assets.Record, sighting uhf.TagSighting) {
	alert := AlertEvent{
		Timestamp:   s.clock.Now(),
		EPC:         sighting.EPC,
		AssetNumber: rec.AssetNumber,
		AssetName:   rec.AssetName,
		ReaderName:  reader,
		RSSI:        sighting.RSSI,
	}
	s.metrics.Alert(reader)
	s.alerted.Add(alert)
	s.logger.WithFields(logrus.Fields{
		"reader": reader,
		"epc":    alert.EPC,
		"asset":  alert.AssetNumber,
		"rssi":   alert.RSSI,
	}).Warn("unauthorized asset export")

	if s.alerts != nil {
		if err := s.alerts.Enqueue(alert); err != nil {
			s.logger.WithError(err).WithField("epc", alert.EPC).Error("alert not queued")
		}
	}
	for _, n := range s.notifiers {
		s.submit("notify", func(ctx context.Context) error {
			return n.NotifyAlert(ctx, alert)
		})
	}
	if s.readers != nil {
		s.warning.Trigger(reader)
	}
}

func (s *Service) warnOn(reader string) {
	s.submit("warning on", func(ctx context.Context) error {
		return s.indicate(ctx, reader, true)
	})
}

func (s *Service) warnOff(reader string) {
	s.submit("warning off", func(ctx context.Context) error {
		return s.indicate(ctx, reader, false)
	})
}

func (s *Service) indicate(ctx context.Context, reader string, on bool) error {
	ind, ok := s.readers(reader)
	if !ok {
		return fmt.Errorf("%w: %s", uhf.ErrUnknownReader, reader)
	}

	light, buzzer := ind.LightOff, ind.BuzzerOff
	if on {
		light, buzzer = ind.LightOn, ind.BuzzerOn
	}
	err := light(ctx)
	if s.buzzer {
		err = errors.Join(err, buzzer(ctx))
	}
	if err != nil {
		s.metrics.IndicatorError(reader)
		return fmt.Errorf("reader %s: %w", reader, err)
	}
	return nil
}

func (s *Service) submit(name string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.jobs <- job{name: name, run: run}:
	default:
		s.logger.WithField("job", name).Warn("gate worker backlog full, dropping job")
	}
}

func (s *Service) work() {
	defer close(s.done)
	for j := range s.jobs {
		ctx, cancel := context.WithTimeout(s.base, commandTimeout)
		err := j.run(ctx)
		cancel()
		if err != nil {
			s.logger.WithError(err).WithField("job", j.name).Warn("gate job failed")
		}
	}
}

// OnStatus implements uhf.Listener
func (s *Service) OnStatus(reader string, status uhf.Status) {
	s.metrics.ReaderStatus(reader, status)
	entry := s.logger.WithFields(logrus.Fields{"reader": reader, "status": status.String()})
	if status == uhf.StatusError {
		entry.Warn("reader failed")
		return
	}
	entry.Info("reader status changed")
}

// OnIndicator implements uhf.Listener
func (*Service) OnIndicator(string, bool, bool) {}

// OnLog implements uhf.Listener. Reader lines already reach the logger the
// reader was built with.
func (*Service) OnLog(string, uhf.LogLevel, string) {}

// Recent returns the activity live view, oldest first.
func (s *Service) Recent() []pipeline.Entry[Activity] {
	return s.recent.Snapshot()
}

// RecentSince returns activity newer than seq.
func (s *Service) RecentSince(seq uint64) []pipeline.Entry[Activity] {
	return s.recent.Since(seq)
}

// Alerts returns the most recent alerts, oldest first.
func (s *Service) Alerts() []pipeline.Entry[AlertEvent] {
	return s.alerted.Snapshot()
}

// WarningsPending returns the number of readers with an active warning.
func (s *Service) WarningsPending() int {
	return s.warning.Pending()
}

// Close turns every active warning off and waits for queued jobs. If ctx
// ends first, running jobs are cancelled.
func (s *Service) Close(ctx context.Context) error {
	s.warning.Stop()

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		s.cancel()
		return nil
	case <-ctx.Done():
	}
	s.cancel()
	<-s.done
	return fmt.Errorf("gate close: %w", ctx.Err())
}
