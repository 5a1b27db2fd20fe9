//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package nvmemi

import (
	"sync"
	"time"

	"github.com/NVIDIA/nvidia-nvme-manager/faults"
	"github.com/NVIDIA/nvidia-nvme-manager/logging"
)

// DefaultCommandTimeout is the per-endpoint default used for every command
// except RawAdminXfer, which may override it for the duration of one call.
const DefaultCommandTimeout = 5 * time.Second

// Identity is the (EID, transport address, supported message types) tuple
// that makes an MCTP endpoint eligible for NVMe-MI management. EIDs are
// unique across the process (spec.md §3).
type Identity struct {
	EID               uint8
	TransportAddress  []byte
	SupportedMsgTypes map[uint8]struct{}
}

// SupportsNVMeMI reports whether the endpoint advertises the NVMe-MI
// message type (low 7 bits of the protocol constant, spec.md §6).
func (id Identity) SupportsNVMeMI() bool {
	const nvmeMIMsgType = 0x7F & 0x04 // NVME_MI_MSGTYPE_NVME & 0x7F
	_, ok := id.SupportedMsgTypes[nvmeMIMsgType]
	return ok
}

// Transport is the common trait shared by the MI endpoint and the
// vestigial "basic" transport kept as a seam per spec.md §9 ("Polymorphism
// over transport"). Only the MI variant is exercised by the core.
type Transport interface {
	Present() bool
	Close()
}

// Endpoint owns one NVMe-MI management session over MCTP, borrowed from
// the process-wide Root/Worker. It is owned exclusively by one Drive
// Record. Its mutex guards only the presence flag, primary controller and
// default timeout; no per-endpoint lock is held around a task body, whose
// exclusion comes from the Worker's single goroutine.
type Endpoint struct {
	log    logging.Logger
	root   *Root
	worker *Worker

	Identity Identity

	library MILibrary

	mu             sync.Mutex
	defaultTimeout time.Duration
	present        bool
	primaryCtrl    uint16
}

// NewEndpoint constructs an Endpoint and acquires a reference on the
// process-wide Worker. Call Close to release it when the owning Drive
// Record is destroyed. lib is the NVMe-MI library binding to issue
// commands through; production callers pass the real binding, tests pass
// a fake.
func NewEndpoint(root *Root, id Identity, lib MILibrary, log logging.Logger) *Endpoint {
	log = logging.MustLogger(log)
	return &Endpoint{
		log:            log,
		root:           root,
		worker:         root.Acquire(),
		Identity:       id,
		library:        lib,
		defaultTimeout: DefaultCommandTimeout,
	}
}

// Present reports whether the endpoint responded to the last Scan
// Controllers call.
func (e *Endpoint) Present() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.present
}

func (e *Endpoint) setPresent(p bool) {
	e.mu.Lock()
	e.present = p
	e.mu.Unlock()
}

// PrimaryController returns the controller handle selected at the end of
// Scan Controllers (the last handle in the returned sequence, per spec.md
// §4.3 "Initialize").
func (e *Endpoint) PrimaryController() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.primaryCtrl
}

// Close releases the Endpoint's reference on the shared Worker. Any
// completions for commands already in flight remain harmless: the
// callback only holds a strong reference to the owning Drive Record for
// the duration of the call (spec.md §4.3 "Cancellation").
func (e *Endpoint) Close() {
	e.root.Release()
}

// submit hands task to the shared Worker under this endpoint's EID, labeled
// name for the worker's metrics. The Worker's single goroutine already
// serializes every task across every endpoint in submission order; the
// per-endpoint queue only bounds how many of this endpoint's tasks may be
// pending at once.
func (e *Endpoint) submit(name string, task Task, complete Completion) error {
	return e.worker.Submit(e.Identity.EID, name, task, complete)
}

// withTimeout temporarily overrides the endpoint's default command
// timeout for the duration of fn, restoring it afterward even if fn
// panics. Used by RawAdminXfer per spec.md §4.2.
func (e *Endpoint) withTimeout(d time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	e.mu.Lock()
	saved := e.defaultTimeout
	e.defaultTimeout = d
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.defaultTimeout = saved
		e.mu.Unlock()
	}()

	return fn()
}

// BasicEndpoint is the non-MI transport stand-in referenced by spec.md §9;
// in this system only the MI variant is ever exercised, but the seam is
// kept explicit rather than collapsed away.
type BasicEndpoint struct {
	present bool
}

func (b *BasicEndpoint) Present() bool { return b.present }
func (b *BasicEndpoint) Close()        {}

var (
	_ Transport = (*BasicEndpoint)(nil)
	_ Transport = (*Endpoint)(nil)
)

// unsupported builds the InvalidArgument fault for an operation the basic
// transport lacks. BasicEndpoint implements only Present and Close, so no
// call site uses it.
func unsupported(op string) error {
	return faults.InvalidArgument(op + " unsupported on basic transport")
}
