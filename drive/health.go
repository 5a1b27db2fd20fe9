//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package drive

import (
	"github.com/NVIDIA/nvidia-nvme-manager/events"
	"github.com/NVIDIA/nvidia-nvme-manager/faults"
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

// SMART critical-warning byte bit positions, fixed by the base NVMe
// specification (spec.md glossary "SMART critical-warning byte").
const (
	bitAvailableSpare    = 1 << 0
	bitTemperature       = 1 << 1
	bitReliabilityDegraded = 1 << 2
	bitMediaReadOnly     = 1 << 3
	bitVolatileBackup    = 1 << 4
	bitPMRReadOnly       = 1 << 5
)

// functionalBit is the Subsystem Status (nss) bit indicating the drive
// is functional, per spec.md §4.4.
const functionalBit = 0x20

var warningMessages = []struct {
	bit     uint8
	message string
}{
	{bitPMRReadOnly, "Persistent Memory Region has become read-only or unreliable"},
	{bitVolatileBackup, "volatile memory backup device has failed"},
	{bitAvailableSpare, "available spare capacity has fallen below the threshold"},
	{bitReliabilityDegraded, "NVM subsystem reliability has been degraded"},
	{bitMediaReadOnly, "all of the media has been placed in read only mode"},
	{bitTemperature, "temperature is over or under the threshold"},
}

// onSubsystemHealth is the Subsystem Health Poll completion: publishes
// PDLU-derived media life left and feeds the nss functional bit into
// markFunctional (spec.md §4.4).
func (d *Drive) onSubsystemHealth(err error, res interface{}) {
	if err != nil {
		d.log.Errorf("EID %d: Subsystem Health Poll failed: %s", d.EID, err)
		return
	}
	health, ok := res.(nvmemi.SubsystemHealth)
	if !ok {
		return
	}

	d.DriveLifeUsedPercent = health.PercentDriveLife
	d.markFunctional(health.NSS&functionalBit != 0)
}

// PredictedMediaLifeLeftPercent implements
// `100 - min(PDLU, 100)` for any PDLU in [0,255], per spec.md §8.
func (d *Drive) PredictedMediaLifeLeftPercent() uint8 {
	pdlu := d.DriveLifeUsedPercent
	if pdlu > 100 {
		pdlu = 100
	}
	return 100 - pdlu
}

// onSmartLogPage is the SMART log page completion: combines the SMART
// critical-warning byte with the latched external faults and runs the
// health fusion algorithm of spec.md §4.4.
func (d *Drive) onSmartLogPage(err error, res interface{}) {
	if err != nil {
		d.log.Errorf("EID %d: SMART log read failed: %s", d.EID, err)
		return
	}
	data, ok := res.([]byte)
	if !ok || len(data) == 0 {
		return
	}
	d.applySmartWarning(data[0])
}

func (d *Drive) externalFaultBits() uint8 {
	var b uint8
	if d.External.BackupDevice {
		b |= bitVolatileBackup
	}
	if d.External.Temperature {
		b |= bitTemperature
	}
	if d.External.Degraded {
		b |= bitReliabilityDegraded
	}
	if d.External.Media {
		b |= bitMediaReadOnly
	}
	if d.External.Capacity {
		b |= bitAvailableSpare
	}
	return b
}

// applySmartWarning implements spec.md §4.4's health fusion: combine the
// SMART byte with latched externals, and if it differs from the stored
// value, publish fault booleans and health, then emit one event per
// newly-set bit. A byte equal to the stored value is a no-op: no
// property write, no event (spec.md §8 "Health transition monotonicity").
func (d *Drive) applySmartWarning(smart uint8) {
	combined := smart | d.externalFaultBits()
	if combined == d.SmartWarning {
		return
	}

	// The construction sentinel stands for "nothing seen yet", so every
	// bit of the first combined byte counts as newly set.
	prev := d.SmartWarning
	if prev == smartWarningSentinel {
		prev = 0
	}
	newlySet := combined &^ prev

	d.Faults = Faults{
		BackupDevice: combined&bitVolatileBackup != 0,
		Temperature:  combined&bitTemperature != 0,
		Degraded:     combined&bitReliabilityDegraded != 0,
		Media:        combined&bitMediaReadOnly != 0,
		Capacity:     combined&bitAvailableSpare != 0,
	}
	if combined != 0 {
		d.Health = HealthWarning
	} else {
		d.Health = HealthOK
	}

	for _, w := range warningMessages {
		if newlySet&w.bit == 0 {
			continue
		}
		rec := events.NewResourceError(events.SeverityWarning, driveNamePrefix, int(d.EID), w.message, "")
		d.publish(rec)
	}

	d.SmartWarning = combined
}

// markFunctional implements spec.md §4.4's functional-transition logic.
// At most one Critical "Drive Failure" event is emitted per true->false
// transition (spec.md §8).
func (d *Drive) markFunctional(functional bool) {
	if functional == d.Functional {
		return
	}
	d.Functional = functional

	if functional {
		d.OperationState = OperationalNone
		d.Health = HealthOK
		return
	}

	d.OperationState = OperationalFault
	d.Health = HealthCritical
	rec := events.NewResourceError(events.SeverityCritical, driveNamePrefix, int(d.EID),
		"Drive Failure", string(faults.ResolutionDriveFailure))
	d.publish(rec)
}

func (d *Drive) publish(rec events.Record) {
	if d.events == nil {
		return
	}
	d.events.Publish(rec)
}
