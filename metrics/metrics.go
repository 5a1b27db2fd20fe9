//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package metrics exposes the handful of counters and gauges this
// daemon's domain actually needs, modeled on the control plane's own
// promexp exporter but scaled down to worker queue depth, command
// outcomes by type, poll ticks, and sanitize progress.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// Registry groups every metric this daemon publishes. A nil *Registry
// is safe to call methods on: every method is a no-op, so callers that
// build without a Registry (e.g. tests) don't need to special-case it.
type Registry struct {
	QueueDepth       *prometheus.GaugeVec
	CommandsIssued   *prometheus.CounterVec
	CommandsFailed   *prometheus.CounterVec
	PollTicks        prometheus.Counter
	SanitizeProgress *prometheus.GaugeVec
}

// NewRegistry builds and registers every metric on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nvmed",
			Name:      "worker_queue_depth",
			Help:      "Number of tasks queued for a drive's MI endpoint.",
		}, []string{"eid"}),
		CommandsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nvmed",
			Name:      "commands_issued_total",
			Help:      "NVMe-MI commands issued, by command name.",
		}, []string{"command"}),
		CommandsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nvmed",
			Name:      "commands_failed_total",
			Help:      "NVMe-MI commands that completed with an error, by command name and fault code.",
		}, []string{"command", "code"}),
		PollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nvmed",
			Name:      "poll_ticks_total",
			Help:      "Drive State Machine poll ticks serviced.",
		}),
		SanitizeProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nvmed",
			Name:      "sanitize_progress_percent",
			Help:      "Progress percent of the sanitize operation in flight on a drive, if any.",
		}, []string{"eid"}),
	}

	reg.MustRegister(m.QueueDepth, m.CommandsIssued, m.CommandsFailed, m.PollTicks, m.SanitizeProgress)
	return m
}

// ObserveQueueDepth records the current pending-task count for eid.
func (m *Registry) ObserveQueueDepth(eid uint8, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(fmt.Sprintf("%d", eid)).Set(float64(depth))
}

// CommandIssued increments the issued counter for command.
func (m *Registry) CommandIssued(command string) {
	if m == nil {
		return
	}
	m.CommandsIssued.WithLabelValues(command).Inc()
}

// CommandFailed increments the failed counter for command/code.
func (m *Registry) CommandFailed(command, code string) {
	if m == nil {
		return
	}
	m.CommandsFailed.WithLabelValues(command, code).Inc()
}

// PollTick increments the global poll-tick counter.
func (m *Registry) PollTick() {
	if m == nil {
		return
	}
	m.PollTicks.Inc()
}

// ObserveSanitizeProgress records eid's current sanitize progress
// percent. The series keeps its last value after the sanitize ends; only
// ForgetDrive removes it.
func (m *Registry) ObserveSanitizeProgress(eid uint8, percent uint8) {
	if m == nil {
		return
	}
	m.SanitizeProgress.WithLabelValues(fmt.Sprintf("%d", eid)).Set(float64(percent))
}

// ForgetDrive removes every per-drive series for eid, called when its
// Drive Record is destroyed so removed drives don't linger in scrapes.
func (m *Registry) ForgetDrive(eid uint8) {
	if m == nil {
		return
	}
	label := fmt.Sprintf("%d", eid)
	m.QueueDepth.DeleteLabelValues(label)
	m.SanitizeProgress.DeleteLabelValues(label)
}

// StartExporter serves reg's metrics at /metrics on addr, the same
// shape as the control plane's promexp.StartExporter: a background
// HTTP server plus a cleanup function the caller runs at shutdown.
func StartExporter(addr string, reg *prometheus.Registry, log logging.Logger) (func(), error) {
	log = logging.MustLogger(log)
	if addr == "" {
		return nil, errors.New("invalid metrics exporter config: empty listen address")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Infof("metrics exporter listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics exporter stopped: %s", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Noticef("metrics exporter did not shut down within timeout: %s", err)
		}
	}, nil
}
