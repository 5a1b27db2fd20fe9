//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package faults

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Resolution represents a potential fault resolution, surfaced to operators
// via the object-bus event log.
type Resolution string

const (
	// ResolutionEmpty is equivalent to an empty string.
	ResolutionEmpty = Resolution("")
	// ResolutionUnknown indicates there is no known resolution.
	ResolutionUnknown = Resolution("no known resolution")
	// ResolutionDriveFailure is the fixed resolution string published with
	// the Critical "Drive Failure" event (functional true->false).
	ResolutionDriveFailure = Resolution("Check cable connection and reseat drive. Replace drive if problem persists.")
)

func (r Resolution) String() string {
	return string(r)
}

const (
	unknownDomainStr      = "unknown"
	unknownDescriptionStr = "unknown fault"
)

// UnknownFault represents an unclassified fault.
var UnknownFault = &Fault{Code: CodeUnknown, Resolution: ResolutionUnknown}

// Fault represents one of the closed-set error kinds raised by the command
// surface or drive lifecycle, with an optional resolution string. It
// implements the error interface and can be used interchangeably with
// ordinary errors.
type Fault struct {
	Domain      string
	Code        Code
	Description string
	Resolution  Resolution
}

func sanitizeDomain(in string) string {
	if in == "" {
		return unknownDomainStr
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(in, ":", " ")), "_")
}

func sanitizeDescription(in string) string {
	if in == "" {
		return unknownDescriptionStr
	}
	return in
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: code = %d description = %q",
		sanitizeDomain(f.Domain), f.Code, sanitizeDescription(f.Description))
}

// Equals reports whether raw resolves to a Fault with the same Code.
func (f *Fault) Equals(raw error) bool {
	other, ok := errors.Cause(raw).(*Fault)
	if !ok {
		return false
	}
	return f.Code == other.Code
}

// ShowResolutionFor returns the resolution string for raw, or the unknown
// resolution placeholder if raw is not a Fault or carries no resolution.
func ShowResolutionFor(raw error) string {
	const fmtStr = "%s: code = %d resolution = %q"

	f, ok := errors.Cause(raw).(*Fault)
	if !ok {
		return fmt.Sprintf(fmtStr, unknownDomainStr, CodeUnknown, ResolutionUnknown)
	}
	if f.Resolution == ResolutionEmpty {
		return fmt.Sprintf(fmtStr, sanitizeDomain(f.Domain), f.Code, ResolutionUnknown)
	}
	return fmt.Sprintf(fmtStr, sanitizeDomain(f.Domain), f.Code, f.Resolution)
}
