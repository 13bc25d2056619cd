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

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	uhf "github.com/ZaparooProject/go-uhf"
	"github.com/ZaparooProject/go-uhf/assets"
	"github.com/ZaparooProject/go-uhf/config"
	"github.com/ZaparooProject/go-uhf/gate"
	"github.com/ZaparooProject/go-uhf/internal/metrics"
	"github.com/ZaparooProject/go-uhf/notify/mqtt"
	"github.com/ZaparooProject/go-uhf/pipeline"
	"github.com/ZaparooProject/go-uhf/store/sqlite"
)

const (
	mqttConnectTimeout = 5 * time.Second
	superviseInterval  = 5 * time.Second
)

// app owns every long-lived component. Construction order is the reverse
// of shutdown order.
type app struct {
	cfg       config.Config
	log       logrus.FieldLogger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	store     *sqlite.Store
	cache     *assets.Cache
	reads     *pipeline.Batcher[gate.TagRead]
	alerts    *pipeline.Batcher[gate.AlertEvent]
	publisher *mqtt.Publisher
	manager   *uhf.Manager
	gate      *gate.Service
	http      *http.Server

	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func newApp(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (a *app, err error) {
	a = &app{cfg: cfg, log: log, unsubscribe: func() {}}
	defer func() {
		if err != nil {
			_ = a.closeStorage()
		}
	}()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	a.store, err = sqlite.Open(ctx, sqlite.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	a.cache = assets.New(a.store,
		assets.WithLogger(log),
		assets.WithAlertTTL(cfg.Gate.AlertTTL),
		assets.WithRefreshHook(a.metrics.CacheRefreshed))

	a.reads = pipeline.NewBatcher(a.store.TagReadWriter(), pipeline.Config{
		Logger:   log,
		Name:     "tag_reads",
		MaxBatch: cfg.Gate.BatchSize,
		MaxWait:  cfg.Gate.BatchWait,
		OnFlush:  a.metrics.FlushObserver("tag_reads"),
	})
	a.alerts = pipeline.NewBatcher(a.store.AlertWriter(), pipeline.Config{
		Logger:   log,
		Name:     "export_alerts",
		MaxBatch: cfg.Gate.BatchSize,
		MaxWait:  cfg.Gate.BatchWait,
		OnFlush:  a.metrics.FlushObserver("export_alerts"),
	})

	a.publisher, err = mqtt.New(cfg.MQTT, log)
	if err != nil {
		return nil, err
	}

	a.manager, err = uhf.NewManager(cfg.ReaderConfigs(), uhf.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("readers: %w", err)
	}

	a.gate = gate.New(a.cache,
		gate.WithLogger(log),
		gate.WithMetrics(a.metrics),
		gate.WithReadQueue(a.reads),
		gate.WithAlertQueue(a.alerts),
		gate.WithNotifier(a.publisher),
		gate.WithRecentCapacity(cfg.Gate.RecentCapacity),
		gate.WithWarning(gate.ManagerLookup(a.manager), cfg.Gate.WarningDuration, cfg.Gate.WarningBuzzer))
	a.unsubscribe = a.manager.Subscribe(a.gate)
	return a, nil
}

// start loads the cache, connects the broker and readers and begins
// inventory. Reader failures are logged; the supervisor retries them.
func (a *app) start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	// load once before readers start so the first sightings are correlated
	if err := a.cache.Refresh(ctx); err != nil {
		a.log.WithError(err).Warn("starting with an empty asset cache")
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cache.Run(runCtx, a.cfg.Gate.RefreshInterval)
	}()

	mqttCtx, mqttCancel := context.WithTimeout(ctx, mqttConnectTimeout)
	if err := a.publisher.Connect(mqttCtx); err != nil {
		a.log.WithError(err).Warn("MQTT broker unavailable, alerts are only stored")
	}
	mqttCancel()

	if a.cfg.Metrics.Listen != "" {
		ln, err := net.Listen("tcp", a.cfg.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("metrics listen: %w", err)
		}
		a.http = &http.Server{Handler: a.handler(), ReadHeaderTimeout: 5 * time.Second}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("metrics server stopped")
			}
		}()
		a.log.WithField("addr", ln.Addr().String()).Info("serving /metrics and /healthz")
	}

	a.bringUp(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.supervise(runCtx)
	}()
	return nil
}

func (a *app) bringUp(ctx context.Context) {
	if err := a.manager.ConnectAll(ctx); err != nil {
		a.log.WithError(err).Warn("some readers failed to connect")
	}
	if err := a.manager.StartAll(ctx); err != nil {
		a.log.WithError(err).Warn("some readers failed to start inventory")
	}
}

// supervise reconnects readers that dropped into the error state.
func (a *app) supervise(ctx context.Context) {
	ticker := time.NewTicker(superviseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, r := range a.manager.Readers() {
			if r.Status() != uhf.StatusError {
				continue
			}
			entry := a.log.WithField("reader", r.Name())
			if err := r.Connect(ctx); err != nil {
				entry.WithError(err).Debug("reconnect failed")
				continue
			}
			if err := r.StartInventory(ctx); err != nil {
				entry.WithError(err).Warn("inventory restart failed")
			}
		}
	}
}

// reload swaps the reader set for the one in cfg.
func (a *app) reload(ctx context.Context, cfg config.Config) error {
	if err := a.manager.Reload(ctx, cfg.ReaderConfigs()); err != nil {
		return fmt.Errorf("reload readers: %w", err)
	}
	a.cfg.Readers = cfg.Readers
	if err := a.manager.StartAll(ctx); err != nil {
		a.log.WithError(err).Warn("some readers failed to start inventory after reload")
	}
	a.log.WithField("readers", a.manager.Names()).Info("configuration reloaded")
	return nil
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		readers := a.manager.Readers()
		status := http.StatusOK
		for _, r := range readers {
			if r.Status() == uhf.StatusError {
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		for _, r := range readers {
			_, _ = fmt.Fprintf(w, "%s %s\n", r.Name(), r.Status())
		}
	})
	return mux
}

// shutdown stops intake first and the store last. Every step runs even if
// an earlier one failed.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if a.http != nil {
		errs = append(errs, a.http.Shutdown(ctx))
	}
	// the supervisor must not reconnect readers the manager is closing
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	// the gate turns active warnings off, which needs connected readers
	a.unsubscribe()
	errs = append(errs, a.gate.Close(ctx))
	errs = append(errs, a.manager.Close(ctx))
	a.publisher.Close()
	errs = append(errs, a.closeStorage())
	return errors.Join(errs...)
}

// closeStorage drains the pipelines into the store and closes it.
func (a *app) closeStorage() error {
	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Gate.ShutdownTimeout)
	defer cancel()
	if a.reads != nil {
		errs = append(errs, a.reads.Close(ctx))
	}
	if a.alerts != nil {
		errs = append(errs, a.alerts.Close(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg config.Config, log logrus.FieldLogger, hup <-chan os.Signal,
	reload func() (config.Config, error),
) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := a.start(ctx); err != nil {
		_ = a.shutdown(context.Background())
		return err
	}
	log.WithField("readers", a.manager.Names()).Infof("uhfgate %s running", version)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Gate.ShutdownTimeout)
			defer cancel()
			return a.shutdown(shutdownCtx)
		case <-hup:
			next, err := reload()
			if err != nil {
				log.WithError(err).Error("reload rejected, keeping current configuration")
				continue
			}
			if err := a.reload(ctx, next); err != nil {
				log.WithError(err).Error("reload failed")
			}
		}
	}
}
