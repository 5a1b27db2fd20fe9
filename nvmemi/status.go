//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package nvmemi

import (
	"syscall"

	"github.com/NVIDIA/nvidia-nvme-manager/faults"
)

// Status is an NVMe-MI response status code, carried in a positive library
// return value. The closed set of human-readable strings below mirrors
// spec.md §4.2 exactly.
type Status uint8

// Status code values from the NVMe-MI Management Interface specification
// that this daemon distinguishes by name.
const (
	StatusSuccess                    Status = 0x00
	StatusMoreProcessingRequired     Status = 0x01
	StatusInternalError              Status = 0x02
	StatusInvalidOpcode              Status = 0x03
	StatusInvalidParameter           Status = 0x04
	StatusInvalidCommandSize         Status = 0x05
	StatusInvalidInputSize           Status = 0x06
	StatusAccessDenied                Status = 0x07
	StatusVPDUpdatesExceeded          Status = 0x20
	StatusPCIeInaccessible            Status = 0x21
	StatusMEBSanitized                Status = 0x22
	StatusEnclosureServicesFailure    Status = 0x23
	StatusEnclosureServicesTransferFailure Status = 0x24
	StatusEnclosureFailure            Status = 0x25
	StatusEnclosureServicesTransferRefused Status = 0x26
	StatusEnclosureFuncUnsupported    Status = 0x27
	StatusEnclosureServicesUnavailable Status = 0x28
	StatusEnclosureDegraded           Status = 0x29
	StatusSanitizeInProgress          Status = 0x2A
)

var statusStrings = map[Status]string{
	StatusSuccess:                           "Success",
	StatusMoreProcessingRequired:            "More Processing Required",
	StatusInternalError:                     "Internal Error",
	StatusInvalidOpcode:                     "Invalid Opcode",
	StatusInvalidParameter:                  "Invalid Parameter",
	StatusInvalidCommandSize:                "Invalid Command Size",
	StatusInvalidInputSize:                  "Invalid Input Size",
	StatusAccessDenied:                      "Access Denied",
	StatusVPDUpdatesExceeded:                "VPD Updates Exceeded",
	StatusPCIeInaccessible:                  "PCIe Inaccessible",
	StatusMEBSanitized:                      "MEB Sanitized",
	StatusEnclosureServicesFailure:          "Enclosure Services Failure",
	StatusEnclosureServicesTransferFailure:  "Enclosure Services Transfer Failure",
	StatusEnclosureFailure:                  "Enclosure Services Failure",
	StatusEnclosureServicesTransferRefused:  "Enclosure Services Transfer Refused",
	StatusEnclosureFuncUnsupported:          "Enclosure Services Func Unsupported",
	StatusEnclosureServicesUnavailable:      "Enclosure Services Unavailable",
	StatusEnclosureDegraded:                 "Enclosure Services Degraded",
	StatusSanitizeInProgress:                "Sanitize In Progress",
}

func (s Status) String() string {
	if str, ok := statusStrings[s]; ok {
		return str
	}
	return "Unknown Status"
}

// translateReturn implements the error discipline shared by every command
// in spec.md §4.2: a negative library return is an OS error from the
// captured errno; a positive return is a protocol status mapped to
// BadMessage; zero is success.
func translateReturn(ret int, errno syscall.Errno) error {
	switch {
	case ret < 0:
		return faults.Os(errno)
	case ret > 0:
		return faults.BadMessage(uint8(ret), Status(ret).String())
	default:
		return nil
	}
}

// fwCommitSuccess is the set of positive FW Commit return values that are
// not errors, per spec.md §4.2.
var fwCommitSuccess = map[int]string{
	0x00: "Success",
	0x80: "NeedsConvReset",
	0x81: "NeedsSubsysReset",
	0x82: "NeedsReset",
}

// translateFWCommitReturn applies the FW Commit specific success set
// before falling back to the generic status mapping.
func translateFWCommitReturn(ret int, errno syscall.Errno) error {
	if ret < 0 {
		return faults.Os(errno)
	}
	if _, ok := fwCommitSuccess[ret]; ok {
		return nil
	}
	return faults.BadMessage(uint8(ret), Status(ret).String())
}
