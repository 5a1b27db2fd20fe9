//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package nvmemi

import (
	"sync"

	"github.com/NVIDIA/nvidia-nvme-manager/faults"
	"github.com/NVIDIA/nvidia-nvme-manager/logging"
	"github.com/pkg/errors"
)

// perEndpointQueueDepth bounds how many tasks from a single endpoint may be
// queued or executing at once, giving the "per-drive backpressure" spec.md
// §4.1 calls for without letting one noisy drive starve the global FIFO.
const perEndpointQueueDepth = 4

// Task is a thunk that calls into the (non-reentrant) NVMe-MI library on
// the worker goroutine. It must not touch any state the reactor thread
// also touches without going through the Worker.
type Task func() (interface{}, error)

// Completion is invoked on the originating reactor, never on the worker
// goroutine, exactly once per Submit call.
type Completion func(error, interface{})

type submission struct {
	eid      uint8
	name     string
	task     Task
	complete Completion
	sem      chan struct{}
}

type pendingCompletion struct {
	complete Completion
	err      error
	result   interface{}
}

// Metrics receives queue-depth and command-outcome observations from the
// Worker, as the command surface submits and completes tasks. Registry
// satisfies this implicitly; a nil Registry already no-ops every method.
type Metrics interface {
	ObserveQueueDepth(eid uint8, depth int)
	CommandIssued(command string)
	CommandFailed(command, code string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveQueueDepth(uint8, int) {}
func (noopMetrics) CommandIssued(string)         {}
func (noopMetrics) CommandFailed(string, string) {}

// faultCode renders err's Fault code for a metrics label, or "unknown" if
// err did not originate from the faults taxonomy.
func faultCode(err error) string {
	f, ok := errors.Cause(err).(*faults.Fault)
	if !ok {
		return "unknown"
	}
	return f.Code.String()
}

// Worker serializes every NVMe-MI call across every managed drive onto one
// dedicated goroutine, since libnvme-mi is not reentrant for a given
// endpoint and its calls can block on I/O for seconds. Completions are
// posted to a channel the reactor drains, so the worker goroutine never
// invokes caller code directly.
type Worker struct {
	log     logging.Logger
	metrics Metrics

	tasks       chan *submission
	completions chan pendingCompletion

	mu     sync.Mutex
	closed bool
	queues map[uint8]chan struct{}
	wg     sync.WaitGroup
}

func newWorker(log logging.Logger, m Metrics) *Worker {
	if m == nil {
		m = noopMetrics{}
	}
	w := &Worker{
		log:         log,
		metrics:     m,
		tasks:       make(chan *submission, 64),
		completions: make(chan pendingCompletion, 64),
		queues:      make(map[uint8]chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Worker) queueFor(eid uint8) chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.queues[eid]
	if !ok {
		q = make(chan struct{}, perEndpointQueueDepth)
		w.queues[eid] = q
	}
	return q
}

// Submit enqueues task for execution on the worker goroutine, for the given
// endpoint, under name (the command surface method name, used only for
// metrics labels). It never blocks the caller: if the worker has been shut
// down, or the endpoint's queue is saturated, it returns
// faults.ErrNoSuchDevice immediately and complete is never invoked.
// Otherwise complete runs exactly once, later, delivered via Completions.
func (w *Worker) Submit(eid uint8, name string, task Task, complete Completion) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return faults.ErrNoSuchDevice
	}
	w.mu.Unlock()

	q := w.queueFor(eid)
	select {
	case q <- struct{}{}:
	default:
		return faults.ErrNoSuchDevice
	}

	sub := &submission{eid: eid, name: name, task: task, complete: complete, sem: q}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-q
		return faults.ErrNoSuchDevice
	}
	w.mu.Unlock()

	select {
	case w.tasks <- sub:
		w.metrics.CommandIssued(name)
		w.metrics.ObserveQueueDepth(eid, len(q))
		return nil
	default:
		<-q
		return faults.ErrNoSuchDevice
	}
}

// Completions returns the channel the caller's reactor must drain in its
// own select loop, invoking each Completion exactly once as it arrives.
func (w *Worker) Completions() <-chan pendingCompletion {
	return w.completions
}

// Deliver invokes a completion drained from Completions. Exists so callers
// with their own dispatch naming convention read clearly at call sites.
func Deliver(pc pendingCompletion) {
	pc.complete(pc.err, pc.result)
}

func (w *Worker) run() {
	defer w.wg.Done()
	for sub := range w.tasks {
		w.execute(sub)
	}
}

func (w *Worker) execute(sub *submission) {
	result, err := func() (res interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = faults.Os(0)
			}
		}()
		return sub.task()
	}()

	if err != nil {
		w.metrics.CommandFailed(sub.name, faultCode(err))
	}
	w.completions <- pendingCompletion{complete: sub.complete, err: err, result: result}
	<-sub.sem
	w.metrics.ObserveQueueDepth(sub.eid, len(sub.sem))
}

// shutdown drains remaining queued tasks, delivering their completions,
// then joins the worker goroutine. Safe to call once; Root guards against
// calling it more than once per lazily-created Worker.
func (w *Worker) shutdown() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	close(w.tasks)
	w.wg.Wait()
	close(w.completions)
}
