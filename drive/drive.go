//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package drive

import (
	"time"

	"github.com/NVIDIA/nvidia-nvme-manager/events"
	"github.com/NVIDIA/nvidia-nvme-manager/logging"
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

// smartWarningSentinel forces the first SMART read after construction to
// always be treated as a change, per spec.md §4.3 "Construction".
const smartWarningSentinel = 0xFF

// pollInterval is the Drive State Machine's poll-tick period.
const pollInterval = 5 * time.Second

// Metrics receives sanitize-progress observations as the sanitize
// sub-state machine advances. metrics.Registry satisfies this implicitly;
// a nil Registry already no-ops every method.
type Metrics interface {
	ObserveSanitizeProgress(eid uint8, percent uint8)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSanitizeProgress(uint8, uint8) {}

// Association is one object-bus association tuple.
type Association struct {
	Forward string
	Reverse string
	Target  string
}

// Faults is the "NVMe Status" bus property group's per-condition
// booleans, derived from the combined SMART critical-warning byte.
type Faults struct {
	BackupDevice bool
	Temperature  bool
	Degraded     bool
	Media        bool
	Capacity     bool
}

// ExternalFaults holds the five latched booleans the object bus may set
// directly; spec.md §9 "Latched externals" — there is no clear path,
// they remain set until the bus writer clears them.
type ExternalFaults struct {
	BackupDevice bool
	Temperature  bool
	Degraded     bool
	Media        bool
	Capacity     bool
}

// SanitizeCapabilities is the set of erase methods a drive supports,
// derived from Identify Controller's SANICAP field.
type SanitizeCapabilities map[SanitizeMethod]bool

// Has reports whether m is in the capability set.
func (c SanitizeCapabilities) Has(m SanitizeMethod) bool { return c[m] }

// Drive is one managed drive's complete Drive Record, per spec.md §3.
// It is owned exclusively by the reactor goroutine that runs Discovery
// and the poll loop; nothing here is internally locked, matching the
// single-threaded cooperative concurrency model of spec.md §5.
type Drive struct {
	log      logging.Logger
	events   *events.PubSub
	endpoint *nvmemi.Endpoint
	metrics  Metrics

	EID uint8

	// Identity
	VendorID         uint16
	Manufacturer     string
	Serial           string
	Model            string
	FirmwareRevision string
	CapacityBytes    uint64

	// Topology
	I2CBus       int
	LocationCode string
	LocationType LocationType
	FormFactor   FormFactor

	// Link
	MaxSpeedGbps     uint32
	CurrentSpeedGbps uint32

	// Capability
	PrimaryController  uint16
	SanitizeCapability SanitizeCapabilities
	NODMMAS            bool

	// Health state
	Functional           bool
	Health               Health
	SmartWarning         uint8
	DriveLifeUsedPercent uint8
	Faults               Faults
	External             ExternalFaults

	// Operation state
	Operation            OperationKind
	OperationStatus       OperationStatus
	EstimatedElapsedSecs  uint32
	SelectedMethod        SanitizeMethod
	Progress              uint8

	// Presence
	Present bool

	// Associations
	Associations []Association

	// Lifecycle
	State          LifecycleState
	Activity       ActivityState
	OperationState OperationalState

	identifyAttempt int
}

// New constructs a Drive Record in its just-discovered shape, per
// spec.md §4.3 "Construction": not functional yet, sentinel SMART
// warning so the first poll always publishes, but "assumed functional"
// so no spurious Critical event fires before the first real poll.
func New(eid uint8, endpoint *nvmemi.Endpoint, ps *events.PubSub, m Metrics, log logging.Logger) *Drive {
	log = logging.MustLogger(log)
	if m == nil {
		m = noopMetrics{}
	}
	d := &Drive{
		log:                log,
		events:             ps,
		endpoint:           endpoint,
		metrics:            m,
		EID:                eid,
		SanitizeCapability: make(SanitizeCapabilities),
		SmartWarning:       smartWarningSentinel,
		State:              StateAbsent,
	}
	d.publishFunctionalAssumption()
	return d
}

// Close releases the drive's MI endpoint session. Any MI completions
// already in flight remain safe to deliver: they hold no reference back
// into the drive map, only into this Drive, which callers must not reuse
// after Close.
func (d *Drive) Close() {
	d.endpoint.Close()
}

// transition moves the drive to next, logging and refusing the move
// without changing state when it is illegal.
func (d *Drive) transition(next LifecycleState) {
	if isTransitionIllegal(d.State, next) {
		d.log.Errorf("illegal drive lifecycle transition %s -> %s for EID %d", d.State, next, d.EID)
		return
	}
	if d.State != next {
		d.log.Debugf("drive EID %d: %s -> %s", d.EID, d.State, next)
	}
	d.State = next
}

// publishFunctionalAssumption marks the optimistic startup state: called
// once, immediately after New, before the first Initialize begins.
func (d *Drive) publishFunctionalAssumption() {
	d.Functional = true
	d.OperationState = OperationalNone
	d.Health = HealthOK
}

// driveNamePrefix is the fixed prefix used to build event Args[0] and
// matches the object path segment this daemon publishes drives under.
const driveNamePrefix = "Drive"
