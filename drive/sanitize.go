//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package drive

import (
	"github.com/NVIDIA/nvidia-nvme-manager/faults"
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

// overwritePattern is the fixed pattern spec.md §4.3 requires for the
// Admin Sanitize overwrite method.
const overwritePattern = ^uint32(0x04030201)

// sanitizeFallbackEstimateSecs substitutes for an estimated-time field
// that reads back as 0xFFFFFFFF ("not reported"), per spec.md §4.3.
const sanitizeFallbackEstimateSecs = 300

func methodToAction(m SanitizeMethod) nvmemi.SanitizeAction {
	switch m {
	case MethodBlockErase:
		return nvmemi.SanitizeActionBlockErase
	case MethodCryptoErase:
		return nvmemi.SanitizeActionCryptoErase
	default:
		return nvmemi.SanitizeActionOverwrite
	}
}

// RequestErase starts a sanitize operation, per spec.md §4.3 "Sanitize
// request". Returns NotAllowed if an operation is already in progress.
// If method is unsupported it is logged and dropped without error
// (spec.md: "log and return without error").
func (d *Drive) RequestErase(passes uint16, method SanitizeMethod) error {
	if d.OperationStatus == OperationStatusInProgress {
		return faults.ErrNotAllowed
	}
	if !d.SanitizeCapability.Has(method) {
		d.log.Noticef("EID %d: erase method %s not supported, ignoring request", d.EID, method)
		return nil
	}

	pattern := uint32(0)
	passArg := uint16(0)
	if method == MethodOverwrite {
		pattern = overwritePattern
		passArg = passes
	}

	action := methodToAction(method)
	return d.endpoint.AdminSanitize(action, passArg, pattern, func(err error, _ interface{}) {
		d.onSanitizeStarted(err, method)
	})
}

func (d *Drive) onSanitizeStarted(err error, method SanitizeMethod) {
	if err != nil {
		d.log.Errorf("EID %d: Admin Sanitize failed: %s", d.EID, err)
		return
	}
	d.Operation = OperationSanitize
	d.OperationStatus = OperationStatusInProgress
	d.Activity = ActivityOperatingSanitize
	d.EstimatedElapsedSecs = 0
	d.SelectedMethod = method
	d.Progress = 0
}

// pollSanitize reads the Sanitize Status log page and advances the
// sub-state machine, per spec.md §4.3 "Sanitize monitoring".
func (d *Drive) pollSanitize() {
	if err := d.endpoint.AdminGetLogPage(nvmemi.LIDSanitizeStatus, 0, 0, d.onSanitizeStatus); err != nil {
		d.log.Errorf("EID %d: submit Sanitize Status read: %s", d.EID, err)
	}
}

func (d *Drive) onSanitizeStatus(err error, res interface{}) {
	if err != nil {
		d.log.Errorf("EID %d: Sanitize Status read failed: %s", d.EID, err)
		return
	}
	data, ok := res.([]byte)
	if !ok {
		return
	}
	status, perr := nvmemi.ParseSanitizeStatus(data)
	if perr != nil {
		d.log.Errorf("EID %d: parse Sanitize Status: %s", d.EID, perr)
		return
	}

	switch {
	case status.Terminal() && status.Successful():
		d.OperationStatus = OperationStatusCompleted
		d.Progress = 100
		d.Activity = ActivityPolling
	case status.Terminal():
		d.OperationStatus = OperationStatusFailed
		d.Progress = 0
		d.Activity = ActivityPolling
	default:
		d.EstimatedElapsedSecs += uint32(pollInterval.Seconds())
		end := d.estimatedEndSeconds(status)
		if end == 0 {
			end = sanitizeFallbackEstimateSecs
		}
		percent := d.EstimatedElapsedSecs * 100 / end
		if percent > 99 {
			percent = 99
		}
		d.Progress = uint8(percent)
	}
	d.metrics.ObserveSanitizeProgress(d.EID, d.Progress)
}

// estimatedEndSeconds implements spec.md §8's selection property:
// {Crypto,Block,Overwrite} x {false:(etce,etbe,eto), true:(etcend,etbend,etond)}.
// A field reading 0xFFFFFFFF ("not reported") is treated as unavailable.
func (d *Drive) estimatedEndSeconds(s nvmemi.SanitizeStatus) uint32 {
	var v uint32
	switch {
	case d.SelectedMethod == MethodCryptoErase && !d.NODMMAS:
		v = s.ETCE
	case d.SelectedMethod == MethodCryptoErase && d.NODMMAS:
		v = s.ETCEND
	case d.SelectedMethod == MethodBlockErase && !d.NODMMAS:
		v = s.ETBE
	case d.SelectedMethod == MethodBlockErase && d.NODMMAS:
		v = s.ETBEND
	case d.SelectedMethod == MethodOverwrite && !d.NODMMAS:
		v = s.ETO
	default:
		v = s.ETOND
	}
	if v == 0xFFFFFFFF {
		return 0
	}
	return v
}
