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

// Package metrics exposes gate activity as Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/assets"
)

const namespace = "uhfgate"

// Metrics holds every collector the gate reports.
type Metrics struct {
	tagReads      *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	readerStatus  *prometheus.GaugeVec
	batchWrites   *prometheus.CounterVec
	batchRecords  *prometheus.CounterVec
	batchLatency  *prometheus.HistogramVec
	cacheAssets   prometheus.Gauge
	cachePermits  prometheus.Gauge
	cacheFailures prometheus.Counter
	indicatorErrs *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tagReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_reads_total",
			Help:      "Tag sightings received, by reader",
		}, []string{"reader"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Unauthorized export alerts raised, by reader",
		}, []string{"reader"}),
		readerStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reader_status",
			Help:      "1 for the current status of each reader",
		}, []string{"reader", "status"}),
		batchWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_writes_total",
			Help:      "Batch write attempts, by pipeline and result",
		}, []string{"batch", "result"}),
		batchRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_records_written_total",
			Help:      "Records persisted, by pipeline",
		}, []string{"batch"}),
		batchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_write_seconds",
			Help:      "Batch write latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"batch"}),
		cacheAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_assets",
			Help:      "Assets in the serving snapshot",
		}),
		cachePermits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_permissions",
			Help:      "Current permission windows in the serving snapshot",
		}),
		cacheFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refresh_failures_total",
			Help:      "Asset cache refreshes that kept the previous snapshot",
		}),
		indicatorErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_errors_total",
			Help:      "Warning light or buzzer commands that failed, by reader",
		}, []string{"reader"}),
	}

	reg.MustRegister(
		m.tagReads,
		m.alerts,
		m.readerStatus,
		m.batchWrites,
		m.batchRecords,
		m.batchLatency,
		m.cacheAssets,
		m.cachePermits,
		m.cacheFailures,
		m.indicatorErrs,
	)
	return m
}

// TagRead counts one sighting.
func (m *Metrics) TagRead(reader string) {
	if m == nil {
		return
	}
	m.tagReads.WithLabelValues(reader).Inc()
}

// Alert counts one alert.
func (m *Metrics) Alert(reader string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(reader).Inc()
}

var statuses = []uhf.Status{
	uhf.StatusDisconnected,
	uhf.StatusConnecting,
	uhf.StatusConnected,
	uhf.StatusReading,
	uhf.StatusError,
}

// ReaderStatus sets the status gauge so exactly one status is 1.
func (m *Metrics) ReaderStatus(reader string, status uhf.Status) {
	if m == nil {
		return
	}
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.readerStatus.WithLabelValues(reader, s.String()).Set(v)
	}
}

// IndicatorError counts a failed warning command.
func (m *Metrics) IndicatorError(reader string) {
	if m == nil {
		return
	}
	m.indicatorErrs.WithLabelValues(reader).Inc()
}

// FlushObserver returns a callback for pipeline.Config.OnFlush.
func (m *Metrics) FlushObserver(batch string) func(size int, elapsed time.Duration, err error) {
	return func(size int, elapsed time.Duration, err error) {
		if m == nil {
			return
		}
		result := "ok"
		if err != nil {
			result = "error"
		} else {
			m.batchRecords.WithLabelValues(batch).Add(float64(size))
		}
		m.batchWrites.WithLabelValues(batch, result).Inc()
		m.batchLatency.WithLabelValues(batch).Observe(elapsed.Seconds())
	}
}

// CacheRefreshed is an assets.WithRefreshHook callback.
func (m *Metrics) CacheRefreshed(stats assets.Stats, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.cacheFailures.Inc()
	}
	m.cacheAssets.Set(float64(stats.Assets))
	m.cachePermits.Set(float64(stats.Permissions))
}
