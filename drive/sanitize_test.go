//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package drive

import (
	"testing"

	"github.com/NVIDIA/nvidia-nvme-manager/faults"
	"github.com/NVIDIA/nvidia-nvme-manager/nvmemi"
)

// TestEstimatedEndSeconds_FieldSelection is the property from spec.md §8:
// for every (method, nodmmas) pair, exactly the documented field is used.
func TestEstimatedEndSeconds_FieldSelection(t *testing.T) {
	status := nvmemi.SanitizeStatus{
		ETCE: 1, ETBE: 2, ETO: 3,
		ETCEND: 10, ETBEND: 20, ETOND: 30,
	}

	for name, tc := range map[string]struct {
		method  SanitizeMethod
		nodmmas bool
		want    uint32
	}{
		"crypto, no nodmmas":    {MethodCryptoErase, false, 1},
		"crypto, nodmmas":       {MethodCryptoErase, true, 10},
		"block, no nodmmas":     {MethodBlockErase, false, 2},
		"block, nodmmas":        {MethodBlockErase, true, 20},
		"overwrite, no nodmmas": {MethodOverwrite, false, 3},
		"overwrite, nodmmas":    {MethodOverwrite, true, 30},
	} {
		t.Run(name, func(t *testing.T) {
			d := newBareDrive()
			d.SelectedMethod = tc.method
			d.NODMMAS = tc.nodmmas
			if got := d.estimatedEndSeconds(status); got != tc.want {
				t.Fatalf("estimatedEndSeconds() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEstimatedEndSeconds_NotReportedFallsBackToZero(t *testing.T) {
	d := newBareDrive()
	d.SelectedMethod = MethodOverwrite
	status := nvmemi.SanitizeStatus{ETO: 0xFFFFFFFF}
	if got := d.estimatedEndSeconds(status); got != 0 {
		t.Fatalf("got %d, want 0 (caller substitutes fallback)", got)
	}
}

func TestRequestErase_BusyRejectsWithoutIssuingCommand(t *testing.T) {
	d := newBareDrive()
	d.OperationStatus = OperationStatusInProgress
	d.SanitizeCapability = SanitizeCapabilities{MethodBlockErase: true}

	err := d.RequestErase(1, MethodBlockErase)
	if !faults.ErrNotAllowed.Equals(err) {
		t.Fatalf("got %v, want ErrNotAllowed", err)
	}
}

func TestRequestErase_UnsupportedMethodIsQuiet(t *testing.T) {
	d := newBareDrive()
	d.SanitizeCapability = SanitizeCapabilities{MethodBlockErase: true}

	err := d.RequestErase(1, MethodCryptoErase)
	if err != nil {
		t.Fatalf("got %v, want nil (logged and dropped)", err)
	}
}

func TestOnSanitizeStatus_TerminalSuccessCompletesProgress(t *testing.T) {
	d := newBareDrive()
	d.Operation = OperationSanitize
	d.OperationStatus = OperationStatusInProgress
	d.Activity = ActivityOperatingSanitize
	d.SelectedMethod = MethodBlockErase

	data := make([]byte, 32)
	data[2] = 0x1 // SSTAT status = CompleteSuccess

	d.onSanitizeStatus(nil, data)

	if d.OperationStatus != OperationStatusCompleted {
		t.Fatalf("OperationStatus = %s, want Completed", d.OperationStatus)
	}
	if d.Progress != 100 {
		t.Fatalf("Progress = %d, want 100", d.Progress)
	}
	if d.Activity != ActivityPolling {
		t.Fatalf("Activity = %s, want Polling", d.Activity)
	}
}

func TestOnSanitizeStatus_InProgressCapsProgressAt99(t *testing.T) {
	d := newBareDrive()
	d.Operation = OperationSanitize
	d.OperationStatus = OperationStatusInProgress
	d.Activity = ActivityOperatingSanitize
	d.SelectedMethod = MethodOverwrite
	d.EstimatedElapsedSecs = 495 // close to a 500s estimate

	data := make([]byte, 32)
	data[2] = 0x2 // InProgress
	data[8] = 0xf4
	data[9] = 0x01 // ETO = 500 (little endian)

	d.onSanitizeStatus(nil, data)

	if d.Progress > 99 {
		t.Fatalf("Progress = %d, want <= 99", d.Progress)
	}
	if d.OperationStatus != OperationStatusInProgress {
		t.Fatalf("OperationStatus = %s, want InProgress", d.OperationStatus)
	}
}
