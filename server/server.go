//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/nvidia-nvme-manager/busobj"
	"github.com/NVIDIA/nvidia-nvme-manager/discovery"
	"github.com/NVIDIA/nvidia-nvme-manager/events"
	"github.com/NVIDIA/nvidia-nvme-manager/logging"
	"github.com/NVIDIA/nvidia-nvme-manager/metrics"
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

// pollInterval is the Drive State Machine's health/sanitize poll cadence,
// per spec.md §4.4 ("poll every 5 seconds while Functional").
const pollInterval = 5 * time.Second

// Server owns every long-lived collaborator and runs the single
// cooperative reactor loop that spec.md §5 requires: one goroutine
// mutates Drive Records and Orchestrator state, everything else only
// ever hands work to it over a channel.
type Server struct {
	log logging.Logger
	cfg *Config

	conn   *dbus.Conn
	root   *nvmemi.Root
	worker *nvmemi.Worker
	ps     *events.PubSub
	lc     *events.LogCreator

	orch    *discovery.Orchestrator
	objects *busobj.Manager

	reg          *metrics.Registry
	stopExporter func()
}

// New wires every collaborator together but starts nothing background
// beyond what each constructor already starts (the PubSub reactor, the
// MI transport worker, and the metrics exporter's HTTP server). Call Run
// to start the reactor loop.
func New(cfg *Config, log logging.Logger) (*Server, error) {
	log = logging.MustLogger(log)

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "connect to system bus")
	}

	reg := prometheus.NewRegistry()
	mreg := metrics.NewRegistry(reg)

	root := nvmemi.NewRoot(log, mreg)
	worker := root.Acquire()

	ps := events.NewPubSub(log)
	lc := events.NewLogCreator(conn, log)
	ps.Subscribe(lc.Handle)

	inv := discovery.LoadInventoryConfig(cfg.InventoryPath, log)
	lib := nvmemi.UnimplementedLibrary()
	orch := discovery.NewOrchestrator(conn, root, ps, lib, mreg, inv, log)

	objects, err := busobj.NewManager(conn, log)
	if err != nil {
		root.Release()
		return nil, errors.Wrap(err, "publish object manager")
	}

	stopExporter, err := metrics.StartExporter(cfg.MetricsAddr, reg, log)
	if err != nil {
		root.Release()
		return nil, errors.Wrap(err, "start metrics exporter")
	}

	return &Server{
		log: log, cfg: cfg,
		conn: conn, root: root, worker: worker,
		ps: ps, lc: lc,
		orch: orch, objects: objects,
		reg: mreg, stopExporter: stopExporter,
	}, nil
}

// Run drives the reactor loop until ctx is cancelled, then tears
// everything down in reverse dependency order.
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown()

	s.orch.Rescan()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case sig := <-s.orch.Signals():
			s.orch.HandleSignal(sig)

		case <-s.orch.DebounceChannel():
			s.orch.Rescan()

		case <-s.orch.PendingInitChannel():
			s.orch.CompleteRescan()
			s.syncBusObjects()

		case <-ticker.C:
			for _, d := range s.orch.Drives() {
				d.Tick()
			}
			s.reg.PollTick()
			s.objects.Refresh()

		case pc, ok := <-s.worker.Completions():
			if !ok {
				continue
			}
			nvmemi.Deliver(pc)
		}
	}
}

// syncBusObjects reconciles the object manager's published drives
// against the Orchestrator's current drive map, called once the
// settle delay after a rescan has elapsed and every newly discovered
// drive has had a chance to run Identify.
func (s *Server) syncBusObjects() {
	drives := s.orch.Drives()

	known := make(map[uint8]struct{}, len(drives))
	for eid, d := range drives {
		known[eid] = struct{}{}
		if _, err := s.objects.AddDrive(d); err != nil {
			s.log.Errorf("publish drive %d: %s", eid, err)
		}
	}

	for _, eid := range s.objects.EIDs() {
		if _, ok := known[eid]; !ok {
			s.objects.RemoveDrive(eid)
			s.reg.ForgetDrive(eid)
		}
	}
}

func (s *Server) shutdown() {
	s.log.Infof("shutting down")
	s.stopExporter()
	s.orch.Close()
	s.ps.Close()
	s.root.Release()
	s.conn.Close()
}

// Main is the entry point for an nvmed process: parse flags, build a
// Server, and run its reactor until SIGINT/SIGTERM.
func Main() error {
	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		return errors.Wrap(err, "parse command line")
	}

	log := cfg.NewLogger()
	logging.SetGlobalLogger(log)
	log.Infof("starting nvmed: %s", cfg)

	srv, err := New(cfg, log)
	if err != nil {
		return errors.Wrap(err, "initialize server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Debugf("caught signal: %s", sig)
		cancel()
	}()

	return srv.Run(ctx)
}
