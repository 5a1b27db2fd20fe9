//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package drive

import (
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

// DriveType and DriveProtocol are the fixed values this daemon always
// publishes for an NVMe-MI managed drive (spec.md §4.3 "Initialize").
const (
	DriveType     = "SSD"
	DriveProtocol = "NVMe"
)

// maxIdentifyAttempts bounds Identify retries before the drive state
// machine gives up and continues with link info (spec.md §4.3/§9).
const maxIdentifyAttempts = 3

// nodmmasAdditionalModification is the SANICAP NODMMAS value meaning "a
// no-deallocate sanitize additionally modifies media after completion",
// per the base NVMe specification.
const nodmmasAdditionalModification = 2

// Initialize begins (or retries) the Probing sequence: Scan Controllers,
// then Identify, then PCIe Port Info, then polling, per spec.md §4.3.
func (d *Drive) Initialize() {
	d.transition(StateProbing)
	d.Activity = ActivityNone

	if err := d.endpoint.ScanControllers(d.onScanComplete); err != nil {
		d.log.Errorf("EID %d: submit Scan Controllers: %s", d.EID, err)
		d.initializeFailed()
	}
}

func (d *Drive) onScanComplete(err error, res interface{}) {
	if err != nil {
		d.log.Noticef("EID %d: Scan Controllers failed: %s", d.EID, err)
		d.initializeFailed()
		return
	}
	handles, _ := res.([]uint16)
	if len(handles) == 0 {
		d.log.Noticef("EID %d: Scan Controllers returned no handles", d.EID)
		d.initializeFailed()
		return
	}

	d.Present = true
	d.PrimaryController = handles[len(handles)-1]
	d.identifyAttempt = 0
	d.runIdentify()
}

// initializeFailed marks the drive absent; the next poll tick (driven by
// the server's shared ticker) re-enters Initialize.
func (d *Drive) initializeFailed() {
	d.Present = false
	d.transition(StateAbsent)
}

func (d *Drive) runIdentify() {
	d.identifyAttempt++
	if err := d.endpoint.AdminIdentify(d.onIdentifyComplete); err != nil {
		d.log.Errorf("EID %d: submit Admin Identify: %s", d.EID, err)
		d.finishIdentify()
	}
}

func (d *Drive) onIdentifyComplete(err error, res interface{}) {
	if err != nil {
		if d.identifyAttempt < maxIdentifyAttempts {
			d.runIdentify()
			return
		}
		d.log.Noticef("EID %d: identify failed after %d attempts, continuing with link info: %s",
			d.EID, d.identifyAttempt, err)
		d.finishIdentify()
		return
	}

	ic, _ := res.(nvmemi.IdentifyController)
	d.VendorID = ic.VendorID
	d.Manufacturer = nvmemi.ManufacturerFor(ic.VendorID)
	d.Serial = ic.SerialNumber
	d.Model = ic.ModelNumber
	d.FirmwareRevision = ic.FirmwareRevision
	d.CapacityBytes = ic.TotalCapacity

	caps := nvmemi.ParseSANICAP(ic.SANICAP)
	d.SanitizeCapability = SanitizeCapabilities{
		MethodCryptoErase: caps.CryptoErase,
		MethodBlockErase:  caps.BlockErase,
		MethodOverwrite:   caps.Overwrite,
	}
	d.NODMMAS = caps.NODMMAS == nodmmasAdditionalModification

	d.finishIdentify()
}

func (d *Drive) finishIdentify() {
	d.identifyAttempt = 0
	if err := d.endpoint.PCIePortInfo(d.onPortInfoComplete); err != nil {
		d.log.Errorf("EID %d: submit PCIe Port Info: %s", d.EID, err)
		d.beginPolling()
	}
}

func (d *Drive) onPortInfoComplete(err error, res interface{}) {
	if err != nil {
		d.log.Noticef("EID %d: PCIe Port Info failed: %s", d.EID, err)
	} else if pi, ok := res.(nvmemi.PortInfo); ok {
		d.MaxSpeedGbps = uint32(pi.MaxLinkSpeedGBs * float64(pi.MaxLaneWidth))
		d.CurrentSpeedGbps = uint32(pi.CurLinkSpeedGBs * float64(pi.CurLaneWidth))
	}
	d.beginPolling()
}

func (d *Drive) beginPolling() {
	d.transition(StatePresent)
	d.Activity = ActivityPolling
}

// Tick runs one poll-tick's worth of work, per spec.md §4.3 "Poll tick
// (every 5 seconds)". The server's shared ticker calls this for every
// drive in the map once per pollInterval.
func (d *Drive) Tick() {
	if !d.Present {
		d.Initialize()
		return
	}
	if d.Activity == ActivityOperatingSanitize && d.OperationStatus == OperationStatusInProgress {
		d.pollSanitize()
		return
	}
	d.pollHealth()
}

func (d *Drive) pollHealth() {
	if err := d.endpoint.SubsystemHealthPoll(d.onSubsystemHealth); err != nil {
		d.log.Errorf("EID %d: submit Subsystem Health Poll: %s", d.EID, err)
	}
	if err := d.endpoint.AdminGetLogPage(nvmemi.LIDSMART, 0, 0, d.onSmartLogPage); err != nil {
		d.log.Errorf("EID %d: submit SMART log read: %s", d.EID, err)
	}
}
