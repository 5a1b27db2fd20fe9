//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package nvmemi implements the MI Transport Worker and the typed Command
// Surface that serialize every NVMe-MI request issued against a single,
// thread-unsafe libnvme-mi endpoint library onto one cooperative worker.
package nvmemi

import (
	"sync"

	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// Root models the libnvme-mi process-wide root handle (spec.md §9 "Global
// MI root"): a single resource created at program start, torn down at
// exit, from which every endpoint session borrows. It also owns the one
// Worker goroutine shared by every Drive Record (spec.md §3 "MI Transport
// Worker is process-wide, reference-counted").
type Root struct {
	log     logging.Logger
	metrics Metrics

	mu       sync.Mutex
	worker   *Worker
	refCount int
}

// NewRoot returns a new, empty Root. Call Acquire to obtain the shared
// Worker; call Release once per Acquire when a Drive Record is destroyed.
// m may be nil, in which case the worker's metrics calls are no-ops.
func NewRoot(log logging.Logger, m Metrics) *Root {
	return &Root{log: logging.MustLogger(log), metrics: m}
}

// Acquire returns the process-wide Worker, starting it lazily on the first
// call and incrementing the reference count on every call.
func (r *Root) Acquire() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.worker == nil {
		r.log.Debugf("starting MI transport worker")
		r.worker = newWorker(r.log, r.metrics)
	}
	r.refCount++
	return r.worker
}

// Release decrements the reference count; when it reaches zero the Worker
// is shut down and the next Acquire call starts a fresh one.
func (r *Root) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refCount == 0 {
		return
	}
	r.refCount--
	if r.refCount == 0 && r.worker != nil {
		r.log.Debugf("tearing down MI transport worker, no drives remain")
		r.worker.shutdown()
		r.worker = nil
	}
}
