//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package faults

import (
	"fmt"
	"syscall"
)

const domainTransport = "nvmemi:transport"

// ErrNoSuchDevice is returned when the targeted endpoint is missing or the
// MI transport worker has already been torn down. Callers must treat this
// as transient.
var ErrNoSuchDevice = &Fault{
	Domain:      domainTransport,
	Code:        CodeNoSuchDevice,
	Description: "endpoint missing or MI transport worker shut down",
	Resolution:  ResolutionUnknown,
}

// ErrTimeout is returned when a raw admin transfer exceeds its per-call
// timeout.
var ErrTimeout = &Fault{
	Domain:      domainTransport,
	Code:        CodeTimeout,
	Description: "MI command exceeded its timeout",
	Resolution:  ResolutionUnknown,
}

// ErrNotAllowed is returned when a sanitize request arrives while an
// operation is already in progress.
var ErrNotAllowed = &Fault{
	Domain:      "drive:lifecycle",
	Code:        CodeNotAllowed,
	Description: "operation already in progress",
	Resolution:  ResolutionEmpty,
}

// BadMessage wraps a non-zero NVMe-MI protocol status code with its
// human-readable description from the fixed status table.
func BadMessage(status uint8, desc string) *Fault {
	return &Fault{
		Domain:      "nvmemi:command",
		Code:        CodeBadMessage,
		Description: fmt.Sprintf("status 0x%02x: %s", status, desc),
		Resolution:  ResolutionEmpty,
	}
}

// Os wraps a negative library return value, captured as an OS errno.
func Os(errno syscall.Errno) *Fault {
	return &Fault{
		Domain:      "nvmemi:command",
		Code:        CodeOs,
		Description: errno.Error(),
		Resolution:  ResolutionEmpty,
	}
}

// InvalidArgument reports a caller precondition violation (unknown log
// page LID, unsupported telemetry LSP, oversized security-receive
// transfer length, and similar).
func InvalidArgument(msg string) *Fault {
	return &Fault{
		Domain:      "nvmemi:command",
		Code:        CodeInvalidArgument,
		Description: msg,
		Resolution:  ResolutionEmpty,
	}
}
